package photo

import (
	"context"
	"crypto/sha1"
	"fmt"
	"image"
	"time"
)

// Record describes one photo supplied to the analysis engine.
// Records are immutable once loaded for a scan; the engine references
// them but never owns or mutates them.
type Record struct {
	ID          string    // unique, stable identifier
	Path        string    // file path or external reference
	Taken       time.Time // capture timestamp
	CameraModel string    // empty means unknown; unknown never matches unknown
	PixelFormat string    // e.g. "jpeg", "png", "heic"
	Width       int
	Height      int
	SizeBytes   int64
}

// Resolution returns the total pixel count, used as a quality tie-breaker.
func (r Record) Resolution() int {
	return r.Width * r.Height
}

// Library is the photo-store collaborator the engine consumes.
// Implementations supply records and decoded pixel buffers; the engine
// only derives metrics from them.
type Library interface {
	// ListPhotos returns all photo records in a stable order.
	ListPhotos(ctx context.Context) ([]Record, error)

	// ReadPixels returns the decoded pixel buffer for a photo.
	// Failures wrap util.ErrImageRead.
	ReadPixels(ctx context.Context, id string) (image.Image, error)
}

// RecordID creates a stable photo identifier from a library path.
// SHA1 of the path keeps identifiers stable across scans even when
// file size or mtime change (e.g. after metadata edits).
func RecordID(path string) string {
	h := sha1.New()
	fmt.Fprint(h, path)
	return fmt.Sprintf("%x", h.Sum(nil))
}
