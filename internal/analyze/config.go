package analyze

import (
	"crypto/sha1"
	"fmt"
	"sort"
	"time"

	"github.com/franz/photo-janitor/internal/cluster"
	"github.com/franz/photo-janitor/internal/photo"
	"github.com/franz/photo-janitor/internal/quality"
	"github.com/franz/photo-janitor/internal/util"
)

// Config is the full analysis configuration surface. Every option has a
// default; invalid values reject the run before any work starts.
type Config struct {
	BlurBands           quality.Bands
	ExposureSensitivity float64       // [0,1]
	NoiseThreshold      float64       // [0,1], photos above count as noisy
	BatchSize           int           // photos per chunk, bounds memory
	Concurrency         int           // parallel workers per chunk
	MaxTimeGap          time.Duration // cluster bucket gap
	SimilarityThreshold float64       // [0,1] fingerprint distance cutoff
}

// DefaultConfig returns the default analysis configuration
func DefaultConfig() Config {
	return Config{
		BlurBands:           quality.DefaultBands(),
		ExposureSensitivity: 0.5,
		NoiseThreshold:      0.3,
		BatchSize:           5000,
		Concurrency:         4,
		MaxTimeGap:          10 * time.Second,
		SimilarityThreshold: 0.3,
	}
}

// Validate checks every option. A config error is fatal for the run.
func (c Config) Validate() error {
	if err := c.BlurBands.Validate(); err != nil {
		return err
	}
	if c.ExposureSensitivity < 0 || c.ExposureSensitivity > 1 {
		return fmt.Errorf("%w: exposure_sensitivity must be in [0,1], got %.2f",
			util.ErrInvalidConfig, c.ExposureSensitivity)
	}
	if c.NoiseThreshold < 0 || c.NoiseThreshold > 1 {
		return fmt.Errorf("%w: noise_threshold must be in [0,1], got %.2f",
			util.ErrInvalidConfig, c.NoiseThreshold)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: batch_size must be positive, got %d",
			util.ErrInvalidConfig, c.BatchSize)
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("%w: concurrency must be positive, got %d",
			util.ErrInvalidConfig, c.Concurrency)
	}
	return c.clusterConfig().Validate()
}

func (c Config) clusterConfig() cluster.Config {
	return cluster.Config{
		MaxTimeGap:          c.MaxTimeGap,
		SimilarityThreshold: c.SimilarityThreshold,
	}
}

func (c Config) qualityConfig() *quality.Config {
	return &quality.Config{
		Bands:               c.BlurBands,
		ExposureSensitivity: c.ExposureSensitivity,
	}
}

// LibraryFingerprint hashes the scanned photo-set composition together
// with the active thresholds. Two scans over different scopes, or the
// same scope under different thresholds, never collide in the cache.
func (c Config) LibraryFingerprint(records []photo.Record) string {
	ids := make([]string, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
	}
	sort.Strings(ids)

	h := sha1.New()
	for _, id := range ids {
		fmt.Fprintf(h, "%s\n", id)
	}
	fmt.Fprintf(h, "%.4f|%.4f|%.4f|%.4f|%.4f|%.4f|%.4f",
		c.BlurBands.VeryBlurry, c.BlurBands.Blurry, c.BlurBands.SlightlyBlurry,
		c.ExposureSensitivity, c.NoiseThreshold,
		c.MaxTimeGap.Seconds(), c.SimilarityThreshold)

	return fmt.Sprintf("%x", h.Sum(nil))
}
