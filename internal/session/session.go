// Package session defines the immutable analysis session and the
// versioned cache that exposes one consistent result to any number of
// concurrent consumers.
package session

import (
	"fmt"
	"time"

	"github.com/franz/photo-janitor/internal/cluster"
	"github.com/franz/photo-janitor/internal/quality"
)

// Session is one complete, immutable analysis result for a library
// fingerprint. Sessions are replaced, never edited in place: a new scan
// produces a new session that atomically supersedes the old one.
type Session struct {
	ID                 string             `json:"id"`
	LibraryFingerprint string             `json:"library_fingerprint"`
	CreatedAt          time.Time          `json:"created_at"`
	QualityResults     []*quality.Result  `json:"quality_results"`
	Clusters           []cluster.Cluster  `json:"clusters"`
	TotalPhotos        int                `json:"total_photos"`
	Unanalyzable       []string           `json:"unanalyzable,omitempty"` // photo ids that failed analysis
	PhotoSizes         map[string]int64   `json:"photo_sizes,omitempty"`  // file sizes for savings estimates
}

// FindCluster returns the cluster with the given id, or false
func (s *Session) FindCluster(id string) (cluster.Cluster, bool) {
	for _, c := range s.Clusters {
		if c.ID == id {
			return c, true
		}
	}
	return cluster.Cluster{}, false
}

// DuplicateCount returns the number of photos that are cluster members
// but not representatives, i.e. candidates for removal
func (s *Session) DuplicateCount() int {
	n := 0
	for _, c := range s.Clusters {
		n += len(c.Members) - 1
	}
	return n
}

// ResolvedCluster pairs a cluster id with its resolved member photo
// identifiers. The member list is never an empty placeholder.
type ResolvedCluster struct {
	ClusterID string   `json:"cluster_id"`
	Members   []string `json:"members"`
}

// Filtered is a sub-session derived from a Session and a caller-supplied
// cluster selection, carrying resolved member ids per cluster.
type Filtered struct {
	SessionID          string            `json:"session_id"`
	LibraryFingerprint string            `json:"library_fingerprint"`
	CreatedAt          time.Time         `json:"created_at"`
	Clusters           []ResolvedCluster `json:"clusters"`
}

// PhotoCount returns the total number of resolved member photos
func (f *Filtered) PhotoCount() int {
	n := 0
	for _, c := range f.Clusters {
		n += len(c.Members)
	}
	return n
}

// Validation reasons surfaced to callers. The two cases are deliberately
// distinct so the user can tell a bad request from an empty resolution.
const (
	ReasonNoClustersSelected = "no clusters selected"
	ReasonNoResolvedPhotos   = "selected clusters resolved to zero photos"
)

// ValidationError is a request-boundary error, recoverable by the caller
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", e.Reason)
}
