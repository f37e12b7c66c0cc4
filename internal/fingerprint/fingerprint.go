// Package fingerprint computes compact visual similarity fingerprints
// for photos. The fingerprint is a 64-bit DCT-based perceptual hash:
// identical pixel buffers always produce identical hashes, and
// near-identical images (small crops, recompression) land within a
// small Hamming distance of each other.
package fingerprint

import (
	"fmt"
	"image"
	"math"
	"math/bits"
	"sort"
	"strconv"

	"golang.org/x/image/draw"
)

// hashBits is the fingerprint width in bits
const hashBits = 64

// Fingerprint is a photo's similarity fingerprint
type Fingerprint struct {
	PhotoID string `json:"photo_id"`
	Hash    uint64 `json:"-"`
	Hex     string `json:"hash"` // hex form for persistence
}

// New builds a Fingerprint for a photo from its decoded pixel buffer
func New(photoID string, img image.Image) Fingerprint {
	h := Compute(img)
	return Fingerprint{
		PhotoID: photoID,
		Hash:    h,
		Hex:     Format(h),
	}
}

// Compute computes the 64-bit perceptual hash of an image.
// Deterministic: the same pixels always yield the same hash.
func Compute(img image.Image) uint64 {
	// 1. Resize to 32x32 for DCT processing
	resized := resize(img, 32, 32)

	// 2. Convert to grayscale
	gray := toGrayscale(resized)

	// 3. Compute the 32x32 DCT
	dct := computeDCT(gray)

	// 4. Keep the top-left 8x8 low-frequency coefficients,
	//    excluding the DC component (0,0)
	lowFreq := make([]float64, 0, hashBits)
	for u := range 8 {
		for v := range 8 {
			if u == 0 && v == 0 {
				continue
			}
			lowFreq = append(lowFreq, dct[u][v])
		}
	}
	lowFreq = append(lowFreq, dct[8][0]) // pad to 64 values

	// 5. Each bit: 1 if the coefficient is above the median
	median := computeMedian(lowFreq)
	var hash uint64
	for i := range hashBits {
		if lowFreq[i] > median {
			hash |= 1 << (63 - i)
		}
	}

	return hash
}

// HammingDistance counts differing bits between two hashes
func HammingDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// Distance returns the normalized distance between two hashes in [0,1].
// Symmetric; zero iff the hashes are equal.
func Distance(a, b uint64) float64 {
	return float64(HammingDistance(a, b)) / float64(hashBits)
}

// Format renders a hash as a 16-digit hex string
func Format(h uint64) string {
	return fmt.Sprintf("%016x", h)
}

// Parse reads a hash back from its hex form
func Parse(s string) (uint64, error) {
	h, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid fingerprint %q: %w", s, err)
	}
	return h, nil
}

// resize scales an image to the given dimensions
func resize(img image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}

// toGrayscale converts an image to a 2D array of luma values (0-255)
func toGrayscale(img *image.RGBA) [][]float64 {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	gray := make([][]float64, width)
	for x := range width {
		gray[x] = make([]float64, height)
		for y := range height {
			r, g, b, _ := img.At(x, y).RGBA()
			// ITU-R BT.601 luma formula
			gray[x][y] = 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
		}
	}

	return gray
}

// computeDCT computes the 2D DCT-II of a square grayscale image
func computeDCT(gray [][]float64) [][]float64 {
	size := len(gray)
	dct := make([][]float64, size)
	for i := range dct {
		dct[i] = make([]float64, size)
	}

	// Precompute cosine values
	cosTable := make([][]float64, size)
	for i := range cosTable {
		cosTable[i] = make([]float64, size)
		for j := range size {
			cosTable[i][j] = math.Cos(math.Pi * float64(i) * (2*float64(j) + 1) / (2 * float64(size)))
		}
	}

	for u := range size {
		for v := range size {
			var sum float64
			for x := range size {
				for y := range size {
					sum += gray[x][y] * cosTable[u][x] * cosTable[v][y]
				}
			}
			dct[u][v] = sum
		}
	}

	return dct
}

// computeMedian returns the median value of a slice
func computeMedian(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}
