package quality

import (
	"fmt"
	"image"

	"github.com/anthonynsimon/bild/effect"

	"github.com/franz/photo-janitor/internal/util"
)

// Verdict is the discrete quality classification derived from blur score
type Verdict string

const (
	VerdictSharp          Verdict = "sharp"
	VerdictSlightlyBlurry Verdict = "slightly_blurry"
	VerdictBlurry         Verdict = "blurry"
	VerdictVeryBlurry     Verdict = "very_blurry"
)

// Rank orders verdicts for representative selection: higher is better
func (v Verdict) Rank() int {
	switch v {
	case VerdictSharp:
		return 3
	case VerdictSlightlyBlurry:
		return 2
	case VerdictBlurry:
		return 1
	default:
		return 0
	}
}

// Bands holds the blur classification thresholds. Each value is the
// exclusive upper bound of its band; scores at or above SlightlyBlurry
// classify as sharp. Bands must be strictly increasing so that every
// score maps to exactly one verdict.
type Bands struct {
	VeryBlurry     float64 `json:"very_blurry"`     // below this = very_blurry
	Blurry         float64 `json:"blurry"`          // below this = blurry
	SlightlyBlurry float64 `json:"slightly_blurry"` // below this = slightly_blurry
}

// DefaultBands returns the default blur thresholds
func DefaultBands() Bands {
	return Bands{
		VeryBlurry:     50,
		Blurry:         100,
		SlightlyBlurry: 200,
	}
}

// Validate checks band monotonicity
func (b Bands) Validate() error {
	if b.VeryBlurry <= 0 || b.Blurry <= b.VeryBlurry || b.SlightlyBlurry <= b.Blurry {
		return fmt.Errorf("%w: blur bands must be strictly increasing (got %.1f/%.1f/%.1f)",
			util.ErrInvalidConfig, b.VeryBlurry, b.Blurry, b.SlightlyBlurry)
	}
	return nil
}

// Classify maps a blur score to its verdict
func (b Bands) Classify(blurScore float64) Verdict {
	switch {
	case blurScore < b.VeryBlurry:
		return VerdictVeryBlurry
	case blurScore < b.Blurry:
		return VerdictBlurry
	case blurScore < b.SlightlyBlurry:
		return VerdictSlightlyBlurry
	default:
		return VerdictSharp
	}
}

// Result holds the quality metrics for one analyzed photo.
// Never mutated after creation.
type Result struct {
	PhotoID       string  `json:"photo_id"`
	BlurScore     float64 `json:"blur_score"`     // Laplacian variance, higher = sharper
	ExposureScore float64 `json:"exposure_score"` // [-1,1], 0 = balanced, negative = under
	NoiseScore    float64 `json:"noise_score"`    // [0,1], higher = noisier
	Verdict       Verdict `json:"verdict"`
}

// Scorer computes blur, exposure and noise metrics for decoded images
type Scorer struct {
	bands               Bands
	exposureSensitivity float64
}

// Config holds scorer configuration
type Config struct {
	Bands               Bands
	ExposureSensitivity float64 // [0,1], width of the histogram tails examined
}

// New creates a Scorer, rejecting invalid configuration before any work starts
func New(cfg *Config) (*Scorer, error) {
	bands := cfg.Bands
	if bands == (Bands{}) {
		bands = DefaultBands()
	}
	if err := bands.Validate(); err != nil {
		return nil, err
	}
	if cfg.ExposureSensitivity < 0 || cfg.ExposureSensitivity > 1 {
		return nil, fmt.Errorf("%w: exposure_sensitivity must be in [0,1], got %.2f",
			util.ErrInvalidConfig, cfg.ExposureSensitivity)
	}
	sens := cfg.ExposureSensitivity
	if sens == 0 {
		sens = 0.5
	}
	return &Scorer{bands: bands, exposureSensitivity: sens}, nil
}

// Bands returns the active blur thresholds
func (s *Scorer) Bands() Bands {
	return s.bands
}

// Analyze computes a QualityResult for one photo. The pixel buffer must
// be non-empty and at least 2x2 pixels.
func (s *Scorer) Analyze(photoID string, img image.Image) (*Result, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: photo %s: empty pixel buffer", util.ErrImageRead, photoID)
	}
	bounds := img.Bounds()
	if bounds.Dx() < 2 || bounds.Dy() < 2 {
		return nil, fmt.Errorf("%w: photo %s: pixel buffer %dx%d is below the 2x2 minimum",
			util.ErrImageRead, photoID, bounds.Dx(), bounds.Dy())
	}

	lum := lumaPlane(img)

	blur := laplacianVariance(lum)
	exposure := s.exposureScore(lum)
	noise := noiseScore(lum)

	return &Result{
		PhotoID:       photoID,
		BlurScore:     blur,
		ExposureScore: exposure,
		NoiseScore:    noise,
		Verdict:       s.bands.Classify(blur),
	}, nil
}

// BatchItem pairs a photo identifier with its decoded pixels
type BatchItem struct {
	PhotoID string
	Image   image.Image
}

// Failure records a photo that could not be analyzed
type Failure struct {
	PhotoID string
	Err     error
}

// AnalyzeBatch applies Analyze to each item independently. An individual
// failure never aborts the batch; it is recorded and the batch continues.
func (s *Scorer) AnalyzeBatch(items []BatchItem) ([]*Result, []Failure) {
	results := make([]*Result, 0, len(items))
	var failures []Failure
	for _, item := range items {
		res, err := s.Analyze(item.PhotoID, item.Image)
		if err != nil {
			util.WarnLog("Photo %s unanalyzable: %v", item.PhotoID, err)
			failures = append(failures, Failure{PhotoID: item.PhotoID, Err: err})
			continue
		}
		results = append(results, res)
	}
	return results, failures
}

// lumaPlane converts an image to a row-major grayscale plane (0-255)
func lumaPlane(img image.Image) [][]float64 {
	gray := effect.Grayscale(img)
	bounds := gray.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	lum := make([][]float64, h)
	for y := range h {
		lum[y] = make([]float64, w)
		row := gray.Pix[y*gray.Stride:]
		for x := range w {
			// Grayscale output has r == g == b
			lum[y][x] = float64(row[x*4])
		}
	}
	return lum
}

// laplacianVariance computes the variance of the 4-neighbor Laplacian
// response over the interior of the image. Low variance means few edges,
// i.e. a blurry image.
func laplacianVariance(lum [][]float64) float64 {
	h := len(lum)
	w := len(lum[0])

	var sum, sumSq float64
	n := 0
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			lap := lum[y-1][x] + lum[y+1][x] + lum[y][x-1] + lum[y][x+1] - 4*lum[y][x]
			sum += lap
			sumSq += lap * lap
			n++
		}
	}
	if n == 0 {
		// 2x2 images have no interior; fall back to the full-image
		// intensity variance so tiny buffers still get a score
		for y := range h {
			for x := range w {
				sum += lum[y][x]
				sumSq += lum[y][x] * lum[y][x]
				n++
			}
		}
	}

	mean := sum / float64(n)
	return sumSq/float64(n) - mean*mean
}

// exposureScore builds a 256-bin luminance histogram and scores exposure
// as (fraction in top tail) - (fraction in bottom tail). Positive means
// overexposed, negative underexposed, 0 balanced.
func (s *Scorer) exposureScore(lum [][]float64) float64 {
	var hist [256]int
	total := 0
	for _, row := range lum {
		for _, v := range row {
			idx := int(v)
			if idx > 255 {
				idx = 255
			}
			hist[idx]++
			total++
		}
	}
	if total == 0 {
		return 0
	}

	// Tail width scales with sensitivity: 0.5 examines the outer 32 bins
	tailBins := int(s.exposureSensitivity * 64)
	if tailBins < 1 {
		tailBins = 1
	}

	var bottom, top int
	for i := 0; i < tailBins; i++ {
		bottom += hist[i]
		top += hist[255-i]
	}

	return (float64(top) - float64(bottom)) / float64(total)
}

// noiseScore estimates sensor noise as the mean absolute Laplacian
// response in flat (low-gradient) regions only, so fine detail is not
// mistaken for noise. Normalized to [0,1].
func noiseScore(lum [][]float64) float64 {
	h := len(lum)
	w := len(lum[0])

	const flatGradient = 8.0 // below this the neighborhood counts as flat

	var sum float64
	n := 0
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			gx := lum[y][x+1] - lum[y][x-1]
			gy := lum[y+1][x] - lum[y-1][x]
			if gx < 0 {
				gx = -gx
			}
			if gy < 0 {
				gy = -gy
			}
			if gx+gy >= flatGradient {
				continue
			}
			lap := lum[y-1][x] + lum[y+1][x] + lum[y][x-1] + lum[y][x+1] - 4*lum[y][x]
			if lap < 0 {
				lap = -lap
			}
			sum += lap
			n++
		}
	}
	if n == 0 {
		return 0
	}

	// Max |Laplacian| is 4*255; in practice flat-region responses are
	// tiny, so scale against a realistic ceiling of one full step
	score := (sum / float64(n)) / 255.0
	if score > 1 {
		score = 1
	}
	return score
}
