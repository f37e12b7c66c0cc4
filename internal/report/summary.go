package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/franz/photo-janitor/internal/quality"
	"github.com/franz/photo-janitor/internal/session"
)

// Summary represents the outcome of one analysis run in the terms the
// user cares about: photos, verdicts and reclaimable space.
type Summary struct {
	SessionID   string        `json:"session_id"`
	Fingerprint string        `json:"library_fingerprint"`
	CreatedAt   time.Time     `json:"created_at"`
	Duration    time.Duration `json:"duration_ns,omitempty"`

	TotalPhotos  int `json:"total_photos"`
	Analyzed     int `json:"analyzed"`
	Unanalyzable int `json:"unanalyzable"`

	ByVerdict   map[quality.Verdict]int `json:"by_verdict"`
	NoisyPhotos int                     `json:"noisy_photos"`

	Clusters         int   `json:"clusters"`
	DuplicatePhotos  int   `json:"duplicate_photos"` // cluster members that are not the representative
	PotentialSavings int64 `json:"potential_savings_bytes"`
}

// BuildSummary derives a Summary from a published session.
// Photos above noiseThreshold count as noisy.
func BuildSummary(s *session.Session, noiseThreshold float64, duration time.Duration) *Summary {
	sum := &Summary{
		SessionID:    s.ID,
		Fingerprint:  s.LibraryFingerprint,
		CreatedAt:    s.CreatedAt,
		Duration:     duration,
		TotalPhotos:  s.TotalPhotos,
		Analyzed:     len(s.QualityResults),
		Unanalyzable: len(s.Unanalyzable),
		ByVerdict:    make(map[quality.Verdict]int),
		Clusters:     len(s.Clusters),
	}

	for _, qr := range s.QualityResults {
		sum.ByVerdict[qr.Verdict]++
		if qr.NoiseScore > noiseThreshold {
			sum.NoisyPhotos++
		}
	}

	for _, c := range s.Clusters {
		for _, id := range c.Members {
			if id == c.Representative {
				continue
			}
			sum.DuplicatePhotos++
			sum.PotentialSavings += s.PhotoSizes[id]
		}
	}

	return sum
}

// Render writes the summary in human-readable form
func (s *Summary) Render(w io.Writer) {
	line := strings.Repeat("=", 58)
	fmt.Fprintln(w, line)
	fmt.Fprintf(w, "Analysis session %s\n", s.SessionID)
	fmt.Fprintf(w, "Library fingerprint: %s\n", s.Fingerprint)
	fmt.Fprintf(w, "Completed %s in %s\n",
		s.CreatedAt.Format("2006-01-02 15:04:05"), s.Duration.Round(time.Millisecond))
	fmt.Fprintln(w, line)

	fmt.Fprintf(w, "Photos:       %s considered, %s analyzed, %s unanalyzable\n",
		humanize.Comma(int64(s.TotalPhotos)),
		humanize.Comma(int64(s.Analyzed)),
		humanize.Comma(int64(s.Unanalyzable)))

	fmt.Fprintf(w, "Quality:      %d sharp, %d slightly blurry, %d blurry, %d very blurry\n",
		s.ByVerdict[quality.VerdictSharp],
		s.ByVerdict[quality.VerdictSlightlyBlurry],
		s.ByVerdict[quality.VerdictBlurry],
		s.ByVerdict[quality.VerdictVeryBlurry])

	if s.NoisyPhotos > 0 {
		fmt.Fprintf(w, "Noise:        %d photos above the noise threshold\n", s.NoisyPhotos)
	}

	fmt.Fprintf(w, "Duplicates:   %d clusters, %d removable photos\n",
		s.Clusters, s.DuplicatePhotos)
	fmt.Fprintf(w, "Reclaimable:  %s\n", humanize.Bytes(uint64(s.PotentialSavings)))
	fmt.Fprintln(w, line)
}
