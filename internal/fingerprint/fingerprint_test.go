package fingerprint

import (
	"image"
	"image/color"
	"testing"
)

func gradientImage(w, h int, shift uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8((x*255/w + int(shift)) % 256)
			img.Set(x, y, color.RGBA{R: v, G: uint8(y * 255 / h), B: v / 2, A: 255})
		}
	}
	return img
}

func TestHammingDistance(t *testing.T) {
	testCases := []struct {
		name     string
		a, b     uint64
		expected int
	}{
		{"identical", 0xdeadbeefdeadbeef, 0xdeadbeefdeadbeef, 0},
		{"one bit", 0x0, 0x1, 1},
		{"high bit", 0x0, 1 << 63, 1},
		{"all bits", 0x0, ^uint64(0), 64},
		{"half bits", 0x0, 0xffffffff00000000, 32},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := HammingDistance(tc.a, tc.b); got != tc.expected {
				t.Errorf("HammingDistance(%x, %x) = %d, want %d", tc.a, tc.b, got, tc.expected)
			}
			// symmetric
			if got := HammingDistance(tc.b, tc.a); got != tc.expected {
				t.Errorf("HammingDistance(%x, %x) = %d, want %d", tc.b, tc.a, got, tc.expected)
			}
		})
	}
}

func TestDistanceNormalized(t *testing.T) {
	if d := Distance(0, 0); d != 0 {
		t.Errorf("Distance(0,0) = %f, want 0", d)
	}
	if d := Distance(0, ^uint64(0)); d != 1 {
		t.Errorf("Distance(0,^0) = %f, want 1", d)
	}
	if d := Distance(0, 0xffffffff00000000); d != 0.5 {
		t.Errorf("half-bit distance = %f, want 0.5", d)
	}
}

func TestComputeDeterministic(t *testing.T) {
	img := gradientImage(100, 80, 0)

	h1 := Compute(img)
	h2 := Compute(img)
	if h1 != h2 {
		t.Errorf("same pixels produced different hashes: %x vs %x", h1, h2)
	}
}

func TestComputeDiscriminates(t *testing.T) {
	a := Compute(gradientImage(100, 80, 0))

	// Inverted image: structurally different content
	inv := image.NewRGBA(image.Rect(0, 0, 100, 80))
	for y := 0; y < 80; y++ {
		for x := 0; x < 100; x++ {
			v := uint8(255 - x*255/100)
			inv.Set(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	b := Compute(inv)

	if HammingDistance(a, b) == 0 {
		t.Error("different images produced identical hashes")
	}
}

func TestComputeSurvivesResize(t *testing.T) {
	// The same scene at two resolutions should land close together
	small := Compute(gradientImage(64, 48, 0))
	large := Compute(gradientImage(640, 480, 0))

	if d := HammingDistance(small, large); d > 16 {
		t.Errorf("resized copies differ by %d bits, want <= 16", d)
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	testCases := []uint64{0, 1, 0xdeadbeefcafebabe, ^uint64(0)}

	for _, h := range testCases {
		s := Format(h)
		if len(s) != 16 {
			t.Errorf("Format(%x) = %q, want 16 hex digits", h, s)
		}
		got, err := Parse(s)
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", s, err)
		}
		if got != h {
			t.Errorf("round trip %x -> %q -> %x", h, s, got)
		}
	}

	if _, err := Parse("not-a-hash"); err == nil {
		t.Error("expected error for invalid hex")
	}
}

func TestNew(t *testing.T) {
	img := gradientImage(32, 32, 0)
	fp := New("photo-1", img)

	if fp.PhotoID != "photo-1" {
		t.Errorf("PhotoID = %q, want photo-1", fp.PhotoID)
	}
	if fp.Hex != Format(fp.Hash) {
		t.Errorf("Hex %q does not match hash %x", fp.Hex, fp.Hash)
	}
}
