// Package pipeline feeds photos from a source through feature extraction and
// clustering, one batch at a time.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kozaktomas/samephoto/internal/cluster"
	"github.com/kozaktomas/samephoto/internal/fingerprint"
)

var (
	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("batch size must be positive")
	// ErrNoSource is returned by Run when the pipeline has no photo source.
	ErrNoSource = errors.New("no photo source")
)

// Source lists and loads photos. List returns identities in the order they should
// be clustered, most recent first by convention.
type Source interface {
	List(ctx context.Context) ([]string, error)
	Load(ctx context.Context, id string) (image.Image, error)
}

// Photo is an identified, decoded image.
type Photo struct {
	ID    string
	Image image.Image
}

// Progress phases.
const (
	PhaseExtracting = "extracting"
	PhaseClustering = "clustering"
	PhaseDone       = "done"
)

// Progress describes how far a run has got.
type Progress struct {
	Phase     string `json:"phase"`
	Batch     int    `json:"batch"`   // 1-based index of the current batch
	Batches   int    `json:"batches"` // total number of batches
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
	Groups    int    `json:"groups"` // groups found so far
}

// Options configures a pipeline.
type Options struct {
	Params     cluster.Params
	BatchSize  int
	Workers    int // extraction workers, defaults to GOMAXPROCS
	Resampler  fingerprint.Resampler
	Gray       fingerprint.GrayMode
	Logger     *slog.Logger
	OnProgress func(Progress) // optional, calls are serialized
}

// BatchResult is the outcome of clustering one batch.
type BatchResult struct {
	Groups  []cluster.Group `json:"groups"`
	Scanned int             `json:"scanned"`
	Skipped int             `json:"skipped"`
}

// Result accumulates the groups of every completed batch.
type Result struct {
	Groups   []cluster.Group `json:"groups"`
	Scanned  int             `json:"scanned"`
	Skipped  int             `json:"skipped"`
	Batches  int             `json:"batches"`
	Duration time.Duration   `json:"duration"`
}

// TotalImages returns the number of photos that ended up in a group.
func (r *Result) TotalImages() int {
	return cluster.TotalImages(r.Groups)
}

// Pipeline runs extraction and clustering over batches of photos.
type Pipeline struct {
	source    Source
	opts      Options
	engine    *cluster.Engine
	extractor fingerprint.Extractor
	logger    *slog.Logger

	progressMu sync.Mutex
}

// New validates opts and returns a pipeline reading from source. source may be
// nil when only ClusterBatch is used.
func New(source Source, opts Options) (*Pipeline, error) {
	engine, err := cluster.NewEngine(opts.Params)
	if err != nil {
		return nil, err
	}
	if opts.BatchSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBatchSize, opts.BatchSize)
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Pipeline{
		source: source,
		opts:   opts,
		engine: engine,
		extractor: fingerprint.Extractor{
			Size:      fingerprint.Size{Width: opts.Params.Width, Height: opts.Params.Height},
			Resampler: opts.Resampler,
			Gray:      opts.Gray,
		},
		logger: logger,
	}, nil
}

// Run lists the source and clusters it batch by batch. Groups never span
// batches. Cancellation is observed between loads and between batches; a batch
// interrupted by cancellation is discarded and the groups of the completed
// batches are returned together with the context error.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	if p.source == nil {
		return nil, ErrNoSource
	}

	start := time.Now()
	ids, err := p.source.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}

	result := &Result{}
	batches := (len(ids) + p.opts.BatchSize - 1) / p.opts.BatchSize
	tracker := &tracker{total: len(ids), batches: batches}

	p.logger.Info("scan started", "photos", len(ids), "batches", batches,
		"batch_size", p.opts.BatchSize, "workers", p.opts.Workers)

	for b := range batches {
		if err := ctx.Err(); err != nil {
			result.Duration = time.Since(start)
			return result, err
		}

		lo := b * p.opts.BatchSize
		hi := min(lo+p.opts.BatchSize, len(ids))
		chunk := ids[lo:hi]
		tracker.batch = b + 1

		vectors := p.extractAll(len(chunk), tracker, func(i int) (image.Image, error) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return p.source.Load(ctx, chunk[i])
		}, func(i int) string { return chunk[i] })

		if err := ctx.Err(); err != nil {
			p.logger.Info("scan cancelled, discarding batch", "batch", b+1)
			result.Duration = time.Since(start)
			return result, err
		}

		batch, err := p.clusterVectors(chunk, vectors, tracker)
		if err != nil {
			result.Duration = time.Since(start)
			return result, fmt.Errorf("batch %d: %w", b+1, err)
		}

		result.Groups = append(result.Groups, batch.Groups...)
		result.Scanned += batch.Scanned
		result.Skipped += batch.Skipped
		result.Batches++

		p.logger.Debug("batch clustered", "batch", b+1, "photos", batch.Scanned,
			"skipped", batch.Skipped, "groups", len(batch.Groups))
	}

	result.Duration = time.Since(start)
	tracker.phase = PhaseDone
	p.report(tracker)

	p.logger.Info("scan finished", "scanned", result.Scanned, "skipped", result.Skipped,
		"groups", len(result.Groups), "duration", result.Duration)

	return result, nil
}

// ClusterBatch extracts and clusters an already loaded batch in the supplied order.
func (p *Pipeline) ClusterBatch(photos []Photo) (*BatchResult, error) {
	tracker := &tracker{total: len(photos), batches: 1, batch: 1}
	ids := make([]string, len(photos))
	for i, photo := range photos {
		ids[i] = photo.ID
	}

	vectors := p.extractAll(len(photos), tracker, func(i int) (image.Image, error) {
		return photos[i].Image, nil
	}, func(i int) string { return ids[i] })

	return p.clusterVectors(ids, vectors, tracker)
}

// extractAll loads and extracts n photos on the worker pool. Each worker writes
// only its own slot; a nil slot marks a skipped photo.
func (p *Pipeline) extractAll(n int, t *tracker, load func(i int) (image.Image, error), id func(i int) string) []fingerprint.Vector {
	vectors := make([]fingerprint.Vector, n)

	var g errgroup.Group
	g.SetLimit(p.opts.Workers)

	for i := range n {
		g.Go(func() error {
			defer p.advance(t)

			img, err := load(i)
			if err != nil {
				p.logger.Debug("skipping photo", "id", id(i), "error", err)
				return nil
			}

			vec, ok := p.extractor.Extract(img)
			if !ok {
				p.logger.Debug("skipping photo", "id", id(i), "reason", "feature extraction failed")
				return nil
			}
			vectors[i] = vec
			return nil
		})
	}

	// Workers never fail, skipped photos are reported through nil slots.
	_ = g.Wait()
	return vectors
}

func (p *Pipeline) clusterVectors(ids []string, vectors []fingerprint.Vector, t *tracker) (*BatchResult, error) {
	items := make([]cluster.Item, 0, len(vectors))
	for i, vec := range vectors {
		if vec == nil {
			continue
		}
		items = append(items, cluster.Item{ID: ids[i], Vector: vec})
	}

	p.progressMu.Lock()
	t.phase = PhaseClustering
	p.progressMu.Unlock()
	p.report(t)

	groups, err := p.engine.Cluster(items)
	if err != nil {
		return nil, err
	}

	p.progressMu.Lock()
	t.groups += len(groups)
	p.progressMu.Unlock()
	p.report(t)

	return &BatchResult{
		Groups:  groups,
		Scanned: len(vectors),
		Skipped: len(vectors) - len(items),
	}, nil
}

// tracker holds run progress. Fields are guarded by Pipeline.progressMu.
type tracker struct {
	phase     string
	batch     int
	batches   int
	processed int
	total     int
	groups    int
}

func (p *Pipeline) advance(t *tracker) {
	p.progressMu.Lock()
	t.phase = PhaseExtracting
	t.processed++
	p.progressMu.Unlock()
	p.report(t)
}

func (p *Pipeline) report(t *tracker) {
	if p.opts.OnProgress == nil {
		return
	}

	p.progressMu.Lock()
	defer p.progressMu.Unlock()
	p.opts.OnProgress(Progress{
		Phase:     t.phase,
		Batch:     t.batch,
		Batches:   t.batches,
		Processed: t.processed,
		Total:     t.total,
		Groups:    t.groups,
	})
}
