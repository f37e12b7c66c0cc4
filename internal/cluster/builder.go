// Package cluster groups photo records into duplicate and near-duplicate
// clusters using capture time, camera model and visual similarity.
// Build is a pure function of its inputs: identical records, results,
// fingerprints and config always produce identical clusters in identical
// order, regardless of input ordering.
package cluster

import (
	"fmt"
	"sort"
	"time"

	"github.com/franz/photo-janitor/internal/fingerprint"
	"github.com/franz/photo-janitor/internal/photo"
	"github.com/franz/photo-janitor/internal/quality"
	"github.com/franz/photo-janitor/internal/util"
)

// Config holds clustering configuration
type Config struct {
	MaxTimeGap          time.Duration // max gap between consecutive photos in a bucket
	SimilarityThreshold float64       // max fingerprint distance counted as similar, [0,1]
}

// DefaultConfig returns the default clustering configuration
func DefaultConfig() Config {
	return Config{
		MaxTimeGap:          10 * time.Second,
		SimilarityThreshold: 0.3,
	}
}

// Validate checks configuration bounds
func (c Config) Validate() error {
	if c.MaxTimeGap <= 0 {
		return fmt.Errorf("%w: max_time_gap must be positive, got %v", util.ErrInvalidConfig, c.MaxTimeGap)
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("%w: similarity_threshold must be in [0,1], got %.2f", util.ErrInvalidConfig, c.SimilarityThreshold)
	}
	return nil
}

// GroupingReason explains to the user why a cluster's photos were grouped
type GroupingReason struct {
	TimeSpanSeconds float64 `json:"time_span_seconds"`
	SameCamera      bool    `json:"same_camera"`
	SimilarityScore float64 `json:"similarity_score"` // best pairwise similarity, 0 when unmeasurable
}

// Cluster is a group of >= 2 photos judged to be duplicates or
// near-duplicates. Members are ordered by capture time (id tie-break)
// and never empty.
type Cluster struct {
	ID             string         `json:"id"`
	Members        []string       `json:"members"`
	Representative string         `json:"representative"`
	MatchScore     float64        `json:"match_score"`
	Reason         GroupingReason `json:"reason"`
}

// NewCluster constructs a Cluster, enforcing the >= 2 member invariant
// at creation time. A cluster with fewer members cannot exist.
func NewCluster(id string, members []string, representative string, matchScore float64, reason GroupingReason) (Cluster, error) {
	if len(members) < 2 {
		return Cluster{}, fmt.Errorf("cluster %s: needs at least 2 members, got %d", id, len(members))
	}
	return Cluster{
		ID:             id,
		Members:        members,
		Representative: representative,
		MatchScore:     matchScore,
		Reason:         reason,
	}, nil
}

// Build groups records into duplicate clusters.
//
// Records without a quality result (unanalyzable photos) are excluded.
// Records without a fingerprint stay in their time-camera bucket, and
// such a bucket is kept unsplit rather than shattered by one bad hash.
func Build(records []photo.Record, results map[string]*quality.Result, prints map[string]uint64, cfg Config) []Cluster {
	// Canonical scan order: capture time, ties broken by identifier.
	// Makes grouping independent of input ordering.
	ordered := make([]photo.Record, 0, len(records))
	for _, rec := range records {
		if _, ok := results[rec.ID]; ok {
			ordered = append(ordered, rec)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].Taken.Equal(ordered[j].Taken) {
			return ordered[i].Taken.Before(ordered[j].Taken)
		}
		return ordered[i].ID < ordered[j].ID
	})

	var clusters []Cluster
	seq := 0

	for _, bucket := range timeCameraBuckets(ordered, cfg.MaxTimeGap) {
		for _, component := range splitBySimilarity(bucket, prints, cfg.SimilarityThreshold) {
			if len(component) < 2 {
				continue // singletons are never clusters
			}
			seq++
			clusters = append(clusters, buildCluster(seq, component, results, prints))
		}
	}

	return clusters
}

// timeCameraBuckets sweeps the ordered records and opens a bucket while
// consecutive photos are within maxGap and share the same camera model.
// An unknown camera model never matches anything, including another
// unknown.
func timeCameraBuckets(ordered []photo.Record, maxGap time.Duration) [][]photo.Record {
	var buckets [][]photo.Record
	var current []photo.Record

	flush := func() {
		if len(current) >= 2 {
			buckets = append(buckets, current)
		}
		current = nil
	}

	for _, rec := range ordered {
		if len(current) > 0 {
			prev := current[len(current)-1]
			sameCamera := prev.CameraModel != "" && prev.CameraModel == rec.CameraModel
			if sameCamera && rec.Taken.Sub(prev.Taken) <= maxGap {
				current = append(current, rec)
				continue
			}
			flush()
		}
		current = []photo.Record{rec}
	}
	flush()

	return buckets
}

// splitBySimilarity refines a bucket into connected components under the
// similarity threshold using union-find. If any member has no
// fingerprint, the bucket passes through unsplit: dropping one bad hash
// must not shatter a true duplicate group.
func splitBySimilarity(bucket []photo.Record, prints map[string]uint64, threshold float64) [][]photo.Record {
	for _, rec := range bucket {
		if _, ok := prints[rec.ID]; !ok {
			return [][]photo.Record{bucket}
		}
	}

	parent := make([]int, len(bucket))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			if ra > rb {
				ra, rb = rb, ra
			}
			parent[rb] = ra
		}
	}

	for i := 0; i < len(bucket); i++ {
		for j := i + 1; j < len(bucket); j++ {
			d := fingerprint.Distance(prints[bucket[i].ID], prints[bucket[j].ID])
			if d <= threshold {
				union(i, j)
			}
		}
	}

	// Components keep bucket order, keyed by their lowest member index
	componentOf := make(map[int][]photo.Record)
	var roots []int
	for i, rec := range bucket {
		root := find(i)
		if _, seen := componentOf[root]; !seen {
			roots = append(roots, root)
		}
		componentOf[root] = append(componentOf[root], rec)
	}
	sort.Ints(roots)

	components := make([][]photo.Record, 0, len(roots))
	for _, root := range roots {
		components = append(components, componentOf[root])
	}
	return components
}

// buildCluster assembles one Cluster from a connected component
func buildCluster(seq int, members []photo.Record, results map[string]*quality.Result, prints map[string]uint64) Cluster {
	ids := make([]string, len(members))
	for i, rec := range members {
		ids[i] = rec.ID
	}

	sameCamera := true
	for _, rec := range members[1:] {
		if rec.CameraModel == "" || rec.CameraModel != members[0].CameraModel {
			sameCamera = false
			break
		}
	}

	similarity := bestSimilarity(members, prints)

	reason := GroupingReason{
		TimeSpanSeconds: members[len(members)-1].Taken.Sub(members[0].Taken).Seconds(),
		SameCamera:      sameCamera,
		SimilarityScore: similarity,
	}

	c, err := NewCluster(
		fmt.Sprintf("cluster_%04d", seq),
		ids,
		selectRepresentative(members, results),
		similarity,
		reason,
	)
	if err != nil {
		// Unreachable: callers only pass components with >= 2 members
		util.ErrorLog("Dropping invalid cluster: %v", err)
		return Cluster{}
	}
	return c
}

// bestSimilarity returns the highest pairwise similarity (1 - distance)
// among members with fingerprints, 0 when fewer than two have one
func bestSimilarity(members []photo.Record, prints map[string]uint64) float64 {
	best := 0.0
	found := false
	for i := 0; i < len(members); i++ {
		hi, ok := prints[members[i].ID]
		if !ok {
			continue
		}
		for j := i + 1; j < len(members); j++ {
			hj, ok := prints[members[j].ID]
			if !ok {
				continue
			}
			sim := 1 - fingerprint.Distance(hi, hj)
			if !found || sim > best {
				best = sim
				found = true
			}
		}
	}
	return best
}

// selectRepresentative picks the "best" member of a cluster.
// Tie-breakers: best verdict rank, then higher resolution, then earliest
// capture time, then lexical identifier for a total deterministic order.
func selectRepresentative(members []photo.Record, results map[string]*quality.Result) string {
	winner := members[0]
	for _, candidate := range members[1:] {
		wr := results[winner.ID].Verdict.Rank()
		cr := results[candidate.ID].Verdict.Rank()
		switch {
		case cr > wr:
			winner = candidate
		case cr < wr:
			continue
		case candidate.Resolution() > winner.Resolution():
			winner = candidate
		case candidate.Resolution() < winner.Resolution():
			continue
		case candidate.Taken.Before(winner.Taken):
			winner = candidate
		case winner.Taken.Before(candidate.Taken):
			continue
		case candidate.ID < winner.ID:
			winner = candidate
		}
	}
	return winner.ID
}
