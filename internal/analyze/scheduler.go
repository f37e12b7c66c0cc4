// Package analyze drives bounded-parallel analysis over a photo set and
// assembles the result into one immutable session.
package analyze

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/franz/photo-janitor/internal/cluster"
	"github.com/franz/photo-janitor/internal/fingerprint"
	"github.com/franz/photo-janitor/internal/photo"
	"github.com/franz/photo-janitor/internal/quality"
	"github.com/franz/photo-janitor/internal/report"
	"github.com/franz/photo-janitor/internal/session"
	"github.com/franz/photo-janitor/internal/util"
)

// Progress is one progress event emitted after each processed chunk
type Progress struct {
	Processed int
	Total     int
}

// ProgressSink receives progress events during a run. May be nil.
type ProgressSink func(Progress)

// Scheduler runs the analysis pipeline: per-photo scoring and hashing
// with bounded parallelism, then one single-threaded clustering pass
// over the complete result set.
type Scheduler struct {
	library photo.Library
	scorer  *quality.Scorer
	logger  *report.EventLogger
	cfg     Config
}

// SchedulerConfig holds scheduler dependencies
type SchedulerConfig struct {
	Library photo.Library
	Logger  *report.EventLogger
	Config  Config
}

// New creates a Scheduler. Configuration is validated here, before any
// analysis work can start.
func New(cfg *SchedulerConfig) (*Scheduler, error) {
	if err := cfg.Config.Validate(); err != nil {
		return nil, err
	}
	scorer, err := quality.New(cfg.Config.qualityConfig())
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		library: cfg.Library,
		scorer:  scorer,
		logger:  cfg.Logger,
		cfg:     cfg.Config,
	}, nil
}

// photoOutcome is the per-photo analysis result, reassembled into
// canonical order before clustering so parallelism never changes the
// published session.
type photoOutcome struct {
	index  int
	result *quality.Result
	print  *fingerprint.Fingerprint
	err    error
}

// Run analyzes the given records and returns a complete, unpublished
// session. Cancellation is cooperative and checked between chunks; on
// cancellation partial results are discarded and util.ErrCancelled is
// returned, so nothing partial can ever be published.
func (s *Scheduler) Run(ctx context.Context, records []photo.Record, sink ProgressSink) (*session.Session, error) {
	start := time.Now()
	total := len(records)
	util.InfoLog("Starting analysis of %d photos", total)

	outcomes := make([]photoOutcome, total)
	processed := 0

	for chunkStart := 0; chunkStart < total; chunkStart += s.cfg.BatchSize {
		select {
		case <-ctx.Done():
			util.WarnLog("Analysis cancelled after %d/%d photos, discarding partial results", processed, total)
			return nil, fmt.Errorf("%w: %v", util.ErrCancelled, ctx.Err())
		default:
		}

		chunkEnd := chunkStart + s.cfg.BatchSize
		if chunkEnd > total {
			chunkEnd = total
		}

		s.processChunk(ctx, records, chunkStart, chunkEnd, outcomes)
		processed = chunkEnd

		if sink != nil {
			sink(Progress{Processed: processed, Total: total})
		}
	}

	// Final cancellation check so a cancel during the last chunk still
	// discards the run
	select {
	case <-ctx.Done():
		util.WarnLog("Analysis cancelled, discarding partial results")
		return nil, fmt.Errorf("%w: %v", util.ErrCancelled, ctx.Err())
	default:
	}

	results := make([]*quality.Result, 0, total)
	resultsByID := make(map[string]*quality.Result, total)
	prints := make(map[string]uint64)
	var unanalyzable []string

	// outcomes is indexed by canonical record order, so this loop
	// reassembles deterministic input for the cluster builder
	for i, out := range outcomes {
		id := records[i].ID
		if out.err != nil {
			s.logger.LogUnanalyzable(id, out.err)
			unanalyzable = append(unanalyzable, id)
			continue
		}
		results = append(results, out.result)
		resultsByID[id] = out.result
		if out.print != nil {
			prints[id] = out.print.Hash
		}
		s.logger.LogAnalyze(id, out.result.BlurScore, string(out.result.Verdict))
	}
	sort.Strings(unanalyzable)

	util.InfoLog("Analyzed %d photos (%d unanalyzable), clustering...", len(results), len(unanalyzable))

	clusters := cluster.Build(records, resultsByID, prints, s.cfg.clusterConfig())
	for _, c := range clusters {
		s.logger.LogCluster(c.ID, c.Representative, len(c.Members),
			fmt.Sprintf("span=%.1fs same_camera=%t similarity=%.2f",
				c.Reason.TimeSpanSeconds, c.Reason.SameCamera, c.Reason.SimilarityScore))
	}

	sizes := make(map[string]int64, total)
	for _, rec := range records {
		sizes[rec.ID] = rec.SizeBytes
	}

	sess := &session.Session{
		ID:                 uuid.NewString(),
		LibraryFingerprint: s.cfg.LibraryFingerprint(records),
		CreatedAt:          time.Now(),
		QualityResults:     results,
		Clusters:           clusters,
		TotalPhotos:        total,
		Unanalyzable:       unanalyzable,
		PhotoSizes:         sizes,
	}

	util.SuccessLog("Analysis complete: %d photos, %d clusters in %s",
		total, len(clusters), time.Since(start).Round(time.Millisecond))

	return sess, nil
}

// processChunk analyzes records[start:end] with bounded parallelism.
// In-flight photos always complete; cancellation only takes effect at
// the next chunk boundary.
func (s *Scheduler) processChunk(ctx context.Context, records []photo.Record, start, end int, outcomes []photoOutcome) {
	indexes := make(chan int, end-start)
	for i := start; i < end; i++ {
		indexes <- i
	}
	close(indexes)

	var wg sync.WaitGroup
	var failures atomic.Int64

	for w := 0; w < s.cfg.Concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				out := s.analyzePhoto(ctx, records[i])
				out.index = i
				if out.err != nil {
					failures.Add(1)
				}
				outcomes[i] = out
			}
		}()
	}
	wg.Wait()

	if n := failures.Load(); n > 0 {
		util.DebugLog("Chunk [%d:%d): %d photos unanalyzable", start, end, n)
	}
}

// analyzePhoto scores and fingerprints one photo. A read or decode
// failure is recorded, never escalated: the batch always continues.
func (s *Scheduler) analyzePhoto(ctx context.Context, rec photo.Record) photoOutcome {
	img, err := s.library.ReadPixels(ctx, rec.ID)
	if err != nil {
		return photoOutcome{err: err}
	}

	result, err := s.scorer.Analyze(rec.ID, img)
	if err != nil {
		return photoOutcome{err: err}
	}

	fp := fingerprint.New(rec.ID, img)
	return photoOutcome{result: result, print: &fp}
}
