package photo

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/anthonynsimon/bild/transform"
	"github.com/barasher/go-exiftool"
	"github.com/karrick/godirwalk"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/franz/photo-janitor/internal/util"
)

// ImageExtensions are the default supported image file extensions
var ImageExtensions = []string{
	".jpg",
	".jpeg",
	".png",
	".gif",
	".bmp",
	".tif",
	".tiff",
	".heic",
	".webp",
}

const exifDateLayout = "2006:01:02 15:04:05"

// FSLibrary is a filesystem-backed Library. It walks a directory tree,
// reads capture metadata via exiftool and decodes pixels on demand.
type FSLibrary struct {
	root       string
	extensions map[string]bool
	retry      *util.RetryConfig
	maxEdge    int

	mu    sync.RWMutex
	paths map[string]string // record ID -> absolute path
}

// DefaultMaxDecodeEdge caps decoded buffers at this edge length
const DefaultMaxDecodeEdge = 1600

// FSConfig holds filesystem library configuration
type FSConfig struct {
	Root           string
	AdditionalExts []string
	Retry          *util.RetryConfig
	MaxDecodeEdge  int // 0 uses DefaultMaxDecodeEdge, negative disables
}

// NewFSLibrary creates a filesystem-backed photo library rooted at cfg.Root
func NewFSLibrary(cfg *FSConfig) *FSLibrary {
	extMap := make(map[string]bool)
	for _, ext := range ImageExtensions {
		extMap[strings.ToLower(ext)] = true
	}
	for _, ext := range cfg.AdditionalExts {
		extMap[strings.ToLower(ext)] = true
	}

	retry := cfg.Retry
	if retry == nil {
		retry = util.DefaultRetryConfig()
	}
	maxEdge := cfg.MaxDecodeEdge
	if maxEdge == 0 {
		maxEdge = DefaultMaxDecodeEdge
	}

	return &FSLibrary{
		root:       cfg.Root,
		extensions: extMap,
		retry:      retry,
		maxEdge:    maxEdge,
		paths:      make(map[string]string),
	}
}

// ListPhotos walks the library root and returns a record per image file,
// ordered by path. Files whose metadata cannot be read are still listed;
// their capture time falls back to the file mtime and their camera model
// stays unknown.
func (l *FSLibrary) ListPhotos(ctx context.Context) ([]Record, error) {
	var paths []string

	err := godirwalk.Walk(l.root, &godirwalk.Options{
		Unsorted: true, // sorted below, after the walk
		Callback: func(path string, de *godirwalk.Dirent) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if de.IsDir() {
				if strings.HasPrefix(de.Name(), ".") && path != l.root {
					return filepath.SkipDir
				}
				return nil
			}
			if l.isImageFile(path) {
				paths = append(paths, path)
			}
			return nil
		},
		ErrorCallback: func(path string, err error) godirwalk.ErrorAction {
			util.WarnLog("Error accessing path %s: %v", path, err)
			return godirwalk.SkipNode
		},
	})
	if err != nil {
		return nil, fmt.Errorf("walk failed: %w", err)
	}

	sort.Strings(paths)

	et, err := exiftool.NewExiftool()
	if err != nil {
		// Metadata extraction is best-effort: without exiftool every
		// record falls back to filesystem metadata.
		util.WarnLog("exiftool unavailable, using file mtimes: %v", err)
		et = nil
	} else {
		defer et.Close()
	}

	records := make([]Record, 0, len(paths))
	for _, path := range paths {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		rec, err := l.readRecord(path, et)
		if err != nil {
			util.WarnLog("Skipping %s: %v", path, err)
			continue
		}
		records = append(records, rec)
	}

	l.mu.Lock()
	for _, rec := range records {
		l.paths[rec.ID] = rec.Path
	}
	l.mu.Unlock()

	util.DebugLog("Listed %d photos under %s", len(records), l.root)
	return records, nil
}

// readRecord builds a Record for one file from EXIF plus filesystem metadata
func (l *FSLibrary) readRecord(path string, et *exiftool.Exiftool) (Record, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Record{}, fmt.Errorf("stat failed: %w", err)
	}

	rec := Record{
		ID:          RecordID(path),
		Path:        path,
		Taken:       info.ModTime(),
		PixelFormat: strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."),
		SizeBytes:   info.Size(),
	}

	if et == nil {
		return rec, nil
	}

	fis := et.ExtractMetadata(path)
	fi := fis[0]
	if fi.Err != nil {
		util.DebugLog("exiftool failed for %s: %v", path, fi.Err)
		return rec, nil
	}

	if model, err := fi.GetString("Model"); err == nil {
		rec.CameraModel = strings.TrimSpace(model)
	}
	if w, err := fi.GetInt("ImageWidth"); err == nil {
		rec.Width = int(w)
	}
	if h, err := fi.GetInt("ImageHeight"); err == nil {
		rec.Height = int(h)
	}
	if ds, err := fi.GetString("DateTimeOriginal"); err == nil {
		if taken, err := time.ParseInLocation(exifDateLayout, ds, time.Local); err == nil {
			rec.Taken = taken
		}
	}

	return rec, nil
}

// ReadPixels decodes the pixel buffer for a previously listed photo.
// Transient I/O failures are retried; all failures wrap util.ErrImageRead.
func (l *FSLibrary) ReadPixels(ctx context.Context, id string) (image.Image, error) {
	l.mu.RLock()
	path, ok := l.paths[id]
	l.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown photo %s", util.ErrImageRead, id)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	img, err := util.RetryWithBackoff(l.retry, func() (image.Image, error) {
		return imgio.Open(path)
	}, fmt.Sprintf("decode(%s)", filepath.Base(path)))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", util.ErrImageRead, filepath.Base(path), err)
	}

	return downscale(img, l.maxEdge), nil
}

// downscale caps the longest image edge at maxEdge, preserving aspect
// ratio. Analysis metrics are relative, so working on a bounded buffer
// keeps memory flat on large originals without changing verdict order.
func downscale(img image.Image, maxEdge int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxEdge <= 0 || (w <= maxEdge && h <= maxEdge) {
		return img
	}
	if w >= h {
		h = h * maxEdge / w
		w = maxEdge
	} else {
		w = w * maxEdge / h
		h = maxEdge
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return transform.Resize(img, w, h, transform.Lanczos)
}

// isImageFile checks if a file has a supported image extension
func (l *FSLibrary) isImageFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return l.extensions[ext]
}
