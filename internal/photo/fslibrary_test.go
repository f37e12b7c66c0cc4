package photo

import (
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/franz/photo-janitor/internal/util"
)

func writePNG(t *testing.T, path string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	defer f.Close()

	img := image.NewGray(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 3)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("png encode failed: %v", err)
	}
}

func TestRecordID(t *testing.T) {
	a := RecordID("/photos/IMG_0001.jpg")
	b := RecordID("/photos/IMG_0001.jpg")
	c := RecordID("/photos/IMG_0002.jpg")

	if a != b {
		t.Error("same path produced different ids")
	}
	if a == c {
		t.Error("different paths produced the same id")
	}
	if len(a) != 40 {
		t.Errorf("id length = %d, want 40 hex chars", len(a))
	}
}

func TestListPhotos(t *testing.T) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "b.png"))
	writePNG(t, filepath.Join(root, "a.png"))
	writePNG(t, filepath.Join(root, "albums", "c.png"))

	// Non-image and hidden content must be ignored
	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	writePNG(t, filepath.Join(root, ".thumbnails", "thumb.png"))

	lib := NewFSLibrary(&FSConfig{Root: root})
	records, err := lib.ListPhotos(context.Background())
	if err != nil {
		t.Fatalf("ListPhotos failed: %v", err)
	}

	if len(records) != 3 {
		t.Fatalf("listed %d photos, want 3: %+v", len(records), records)
	}

	// Path-sorted order, stable across walks
	wantSuffix := []string{"a.png", filepath.Join("albums", "c.png"), "b.png"}
	for i, rec := range records {
		if filepath.Base(rec.Path) != filepath.Base(wantSuffix[i]) {
			t.Errorf("records[%d] = %s, want suffix %s", i, rec.Path, wantSuffix[i])
		}
		if rec.ID == "" {
			t.Errorf("records[%d] has no id", i)
		}
		if rec.Taken.IsZero() {
			t.Errorf("records[%d] has no capture time fallback", i)
		}
		if rec.SizeBytes <= 0 {
			t.Errorf("records[%d] has no size", i)
		}
		if rec.PixelFormat != "png" {
			t.Errorf("records[%d] pixel format = %s, want png", i, rec.PixelFormat)
		}
	}
}

func TestListPhotosExtensionFilter(t *testing.T) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "keep.png"))
	writePNG(t, filepath.Join(root, "custom.xyz"))

	// Default extensions skip .xyz
	lib := NewFSLibrary(&FSConfig{Root: root})
	records, err := lib.ListPhotos(context.Background())
	if err != nil {
		t.Fatalf("ListPhotos failed: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("listed %d photos, want 1", len(records))
	}

	// Additional extensions widen the filter
	lib = NewFSLibrary(&FSConfig{Root: root, AdditionalExts: []string{".xyz"}})
	records, err = lib.ListPhotos(context.Background())
	if err != nil {
		t.Fatalf("ListPhotos failed: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("listed %d photos, want 2 with .xyz allowed", len(records))
	}
}

func TestReadPixels(t *testing.T) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "a.png"))

	lib := NewFSLibrary(&FSConfig{Root: root})
	records, err := lib.ListPhotos(context.Background())
	if err != nil {
		t.Fatalf("ListPhotos failed: %v", err)
	}

	img, err := lib.ReadPixels(context.Background(), records[0].ID)
	if err != nil {
		t.Fatalf("ReadPixels failed: %v", err)
	}
	if img.Bounds().Dx() != 8 || img.Bounds().Dy() != 8 {
		t.Errorf("decoded bounds = %v, want 8x8", img.Bounds())
	}
}

func TestDownscale(t *testing.T) {
	testCases := []struct {
		name          string
		w, h, maxEdge int
		wantW, wantH  int
	}{
		{"small image untouched", 800, 600, 1600, 800, 600},
		{"landscape capped", 3200, 1600, 1600, 1600, 800},
		{"portrait capped", 1000, 4000, 1600, 400, 1600},
		{"disabled", 4000, 4000, -1, 4000, 4000},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			img := image.NewGray(image.Rect(0, 0, tc.w, tc.h))
			got := downscale(img, tc.maxEdge)
			b := got.Bounds()
			if b.Dx() != tc.wantW || b.Dy() != tc.wantH {
				t.Errorf("downscale(%dx%d, %d) = %dx%d, want %dx%d",
					tc.w, tc.h, tc.maxEdge, b.Dx(), b.Dy(), tc.wantW, tc.wantH)
			}
		})
	}
}

func TestReadPixelsUnknownID(t *testing.T) {
	lib := NewFSLibrary(&FSConfig{Root: t.TempDir()})

	if _, err := lib.ReadPixels(context.Background(), "never-listed"); !errors.Is(err, util.ErrImageRead) {
		t.Errorf("expected ErrImageRead, got %v", err)
	}
}

func TestReadPixelsCorruptFile(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "broken.jpg")
	if err := os.WriteFile(path, []byte("not an image"), 0644); err != nil {
		t.Fatal(err)
	}

	lib := NewFSLibrary(&FSConfig{Root: root, Retry: &util.RetryConfig{MaxAttempts: 1}})
	records, err := lib.ListPhotos(context.Background())
	if err != nil {
		t.Fatalf("ListPhotos failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("listed %d photos, want 1", len(records))
	}

	if _, err := lib.ReadPixels(context.Background(), records[0].ID); !errors.Is(err, util.ErrImageRead) {
		t.Errorf("expected ErrImageRead for corrupt file, got %v", err)
	}
}
