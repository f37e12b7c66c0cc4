package analyze

import (
	"context"
	"errors"
	"fmt"
	"image"
	"testing"
	"time"

	"github.com/franz/photo-janitor/internal/photo"
	"github.com/franz/photo-janitor/internal/util"
)

var baseTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// fakeLibrary serves generated images and fails on request
type fakeLibrary struct {
	records  []photo.Record
	broken   map[string]bool
	slow     time.Duration
	patterns map[string]uint8 // per-photo checker period, 0 = flat
}

func (l *fakeLibrary) ListPhotos(ctx context.Context) ([]photo.Record, error) {
	return l.records, nil
}

func (l *fakeLibrary) ReadPixels(ctx context.Context, id string) (image.Image, error) {
	if l.slow > 0 {
		time.Sleep(l.slow)
	}
	if l.broken[id] {
		return nil, fmt.Errorf("%w: %s: simulated decode failure", util.ErrImageRead, id)
	}

	img := image.NewGray(image.Rect(0, 0, 32, 32))
	period := int(l.patterns[id])
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			v := uint8(128)
			if period > 0 && (x/period+y/period)%2 == 0 {
				v = 255
			}
			img.Pix[y*img.Stride+x] = v
		}
	}
	return img, nil
}

func burstRecords(n int) []photo.Record {
	records := make([]photo.Record, n)
	for i := range records {
		records[i] = photo.Record{
			ID:          fmt.Sprintf("p%02d", i),
			Path:        fmt.Sprintf("/photos/p%02d.jpg", i),
			Taken:       baseTime.Add(time.Duration(i) * time.Second),
			CameraModel: "Canon EOS R5",
			Width:       32,
			Height:      32,
			SizeBytes:   1024,
		}
	}
	return records
}

func testScheduler(t *testing.T, lib photo.Library, cfg Config) *Scheduler {
	t.Helper()
	s, err := New(&SchedulerConfig{Library: lib, Config: cfg})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s
}

func TestRunProducesCompleteSession(t *testing.T) {
	records := burstRecords(4)
	lib := &fakeLibrary{records: records}
	s := testScheduler(t, lib, DefaultConfig())

	sess, err := s.Run(context.Background(), records, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if sess.ID == "" {
		t.Error("session has no id")
	}
	if sess.LibraryFingerprint == "" {
		t.Error("session has no library fingerprint")
	}
	if sess.TotalPhotos != 4 {
		t.Errorf("total photos = %d, want 4", sess.TotalPhotos)
	}
	if len(sess.QualityResults) != 4 {
		t.Errorf("quality results = %d, want 4", len(sess.QualityResults))
	}
	if len(sess.Unanalyzable) != 0 {
		t.Errorf("unanalyzable = %v, want none", sess.Unanalyzable)
	}
	// Identical flat images in one burst window form a single cluster
	if len(sess.Clusters) != 1 {
		t.Fatalf("clusters = %d, want 1", len(sess.Clusters))
	}
	if len(sess.Clusters[0].Members) != 4 {
		t.Errorf("cluster members = %v, want all 4", sess.Clusters[0].Members)
	}
	if sess.PhotoSizes["p00"] != 1024 {
		t.Errorf("photo size = %d, want 1024", sess.PhotoSizes["p00"])
	}
}

func TestRunUnreadablePhotoDoesNotAbort(t *testing.T) {
	records := burstRecords(5)
	lib := &fakeLibrary{
		records: records,
		broken:  map[string]bool{"p02": true},
	}
	s := testScheduler(t, lib, DefaultConfig())

	sess, err := s.Run(context.Background(), records, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(sess.QualityResults) != 4 {
		t.Errorf("quality results = %d, want 4", len(sess.QualityResults))
	}
	if len(sess.Unanalyzable) != 1 || sess.Unanalyzable[0] != "p02" {
		t.Errorf("unanalyzable = %v, want [p02]", sess.Unanalyzable)
	}
	// The broken photo is excluded from clustering, the rest still group
	if len(sess.Clusters) != 1 {
		t.Fatalf("clusters = %d, want 1", len(sess.Clusters))
	}
	for _, id := range sess.Clusters[0].Members {
		if id == "p02" {
			t.Error("unanalyzable photo appeared in a cluster")
		}
	}
}

func TestRunDeterministicAcrossConcurrency(t *testing.T) {
	records := burstRecords(12)
	patterns := make(map[string]uint8)
	for i, rec := range records {
		patterns[rec.ID] = uint8(i % 3 * 4) // mix of flat and textured photos
	}
	lib := &fakeLibrary{records: records, patterns: patterns}

	var sessions []string
	for _, workers := range []int{1, 4, 8} {
		cfg := DefaultConfig()
		cfg.Concurrency = workers
		cfg.BatchSize = 5
		s := testScheduler(t, lib, cfg)

		sess, err := s.Run(context.Background(), records, nil)
		if err != nil {
			t.Fatalf("Run with %d workers failed: %v", workers, err)
		}

		key := fmt.Sprintf("%v|%d", sess.Clusters, len(sess.QualityResults))
		sessions = append(sessions, key)
	}

	for i := 1; i < len(sessions); i++ {
		if sessions[i] != sessions[0] {
			t.Errorf("concurrency changed the outcome:\n%s\nvs\n%s", sessions[0], sessions[i])
		}
	}
}

func TestRunCancellation(t *testing.T) {
	records := burstRecords(10)
	lib := &fakeLibrary{records: records, slow: 10 * time.Millisecond}

	cfg := DefaultConfig()
	cfg.BatchSize = 2
	cfg.Concurrency = 1
	s := testScheduler(t, lib, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(15 * time.Millisecond)
		cancel()
	}()

	sess, err := s.Run(ctx, records, nil)
	if !errors.Is(err, util.ErrCancelled) {
		t.Errorf("expected ErrCancelled, got %v", err)
	}
	if sess != nil {
		t.Error("cancelled run must not return a partial session")
	}
}

func TestRunProgressEvents(t *testing.T) {
	records := burstRecords(10)
	lib := &fakeLibrary{records: records}

	cfg := DefaultConfig()
	cfg.BatchSize = 4
	s := testScheduler(t, lib, cfg)

	var progress []Progress
	sink := func(p Progress) { progress = append(progress, p) }

	if _, err := s.Run(context.Background(), records, sink); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// Chunks of 4 over 10 photos: 4, 8, 10
	want := []Progress{{4, 10}, {8, 10}, {10, 10}}
	if len(progress) != len(want) {
		t.Fatalf("progress events = %v, want %v", progress, want)
	}
	for i := range want {
		if progress[i] != want[i] {
			t.Errorf("progress[%d] = %v, want %v", i, progress[i], want[i])
		}
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	lib := &fakeLibrary{}

	testCases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero batch size", func(c *Config) { c.BatchSize = 0 }},
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }},
		{"bad sensitivity", func(c *Config) { c.ExposureSensitivity = 2 }},
		{"bad noise threshold", func(c *Config) { c.NoiseThreshold = -1 }},
		{"bad time gap", func(c *Config) { c.MaxTimeGap = 0 }},
		{"bad similarity", func(c *Config) { c.SimilarityThreshold = 1.5 }},
		{"non-monotonic bands", func(c *Config) { c.BlurBands.Blurry = c.BlurBands.SlightlyBlurry + 1 }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			if _, err := New(&SchedulerConfig{Library: lib, Config: cfg}); !errors.Is(err, util.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestLibraryFingerprint(t *testing.T) {
	cfg := DefaultConfig()
	records := burstRecords(3)

	fp1 := cfg.LibraryFingerprint(records)
	if fp1 == "" {
		t.Fatal("empty fingerprint")
	}

	// Order independence
	reversed := []photo.Record{records[2], records[1], records[0]}
	if fp2 := cfg.LibraryFingerprint(reversed); fp2 != fp1 {
		t.Errorf("fingerprint depends on record order: %s vs %s", fp1, fp2)
	}

	// Adding a photo changes it
	if fp3 := cfg.LibraryFingerprint(burstRecords(4)); fp3 == fp1 {
		t.Error("fingerprint did not change with library contents")
	}

	// Changing a threshold changes it
	altered := cfg
	altered.SimilarityThreshold = 0.5
	if fp4 := altered.LibraryFingerprint(records); fp4 == fp1 {
		t.Error("fingerprint did not change with thresholds")
	}
}
