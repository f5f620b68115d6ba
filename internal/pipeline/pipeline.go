package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/catchment-etl/internal/domain"
	"github.com/couchcryptid/catchment-etl/internal/observability"
)

// Source lists the catchment files to process, relative to the data directory.
type Source interface {
	List(ctx context.Context) ([]string, error)
}

// Transformer normalizes one catchment file and runs the models on it.
type Transformer interface {
	Transform(ctx context.Context, relPath string) (domain.CatchmentRun, error)
}

// Loader writes a finished catchment run to its destination.
// Load may be called concurrently for different catchments.
type Loader interface {
	Load(ctx context.Context, run domain.CatchmentRun) error
}

// Pipeline runs list → transform → load over every catchment file.
type Pipeline struct {
	source      Source
	transformer Transformer
	loader      Loader
	logger      *slog.Logger
	metrics     *observability.Metrics
	concurrency int
	ready       atomic.Bool

	mu        sync.Mutex
	processed []string
}

// New creates a Pipeline with the given stages and observability.
// concurrency bounds how many files are processed at once.
func New(s Source, t Transformer, l Loader, logger *slog.Logger, metrics *observability.Metrics, concurrency int) *Pipeline {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pipeline{
		source:      s,
		transformer: t,
		loader:      l,
		logger:      logger,
		metrics:     metrics,
		concurrency: concurrency,
	}
}

// CheckReadiness returns nil once a batch run has completed successfully,
// or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a run yet")
	}
	return nil
}

// Processed returns the catchments loaded so far, sorted.
func (p *Pipeline) Processed() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := append([]string(nil), p.processed...)
	sort.Strings(out)
	return out
}

// Run processes every listed file. The first failure cancels the remaining
// files and is returned; no retry is attempted.
func (p *Pipeline) Run(ctx context.Context) error {
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	paths, err := p.source.List(ctx)
	if err != nil {
		return fmt.Errorf("list catchment files: %w", err)
	}
	p.logger.Info("pipeline started", "files", len(paths), "concurrency", p.concurrency)
	start := time.Now()

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(p.concurrency)
	for _, path := range paths {
		group.Go(func() error {
			return p.processFile(groupCtx, path)
		})
	}
	if err := group.Wait(); err != nil {
		p.logger.Error("pipeline aborted", "error", err)
		return err
	}

	p.ready.Store(true)
	p.logger.Info("pipeline finished", "files", len(paths), "duration", time.Since(start))
	return nil
}

func (p *Pipeline) processFile(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()

	run, err := p.transformer.Transform(ctx, path)
	if err != nil {
		p.recordTransformError(err)
		p.logger.Error("transform failed", "path", path, "kind", domain.ErrorKind(err), "error", err)
		return fmt.Errorf("transform %s: %w", path, err)
	}
	p.metrics.RecordsNormalized.Add(float64(run.Table.Len()))
	for _, sim := range run.Simulations {
		p.metrics.ModelRuns.WithLabelValues(sim.Model).Inc()
	}

	if err := p.loader.Load(ctx, run); err != nil {
		p.logger.Error("load failed", "catchment", run.Catchment, "error", err)
		return fmt.Errorf("load %s: %w", run.Catchment, err)
	}
	p.metrics.ResultsLoaded.Add(float64(len(run.Results)))
	p.metrics.FilesProcessed.Inc()
	p.metrics.FileProcessingDuration.Observe(time.Since(start).Seconds())

	p.mu.Lock()
	p.processed = append(p.processed, run.Catchment)
	p.mu.Unlock()

	p.logger.Info("catchment processed",
		"catchment", run.Catchment,
		"records", run.Table.Len(),
		"results", len(run.Results),
		"duration", time.Since(start),
	)
	return nil
}

// recordTransformError counts err as a model or normalization failure.
// Cancellation is not a failure of the file and is not counted.
func (p *Pipeline) recordTransformError(err error) {
	var modelErr *domain.ModelError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
	case errors.As(err, &modelErr):
		p.metrics.ModelErrors.WithLabelValues(modelErr.Model).Inc()
	default:
		p.metrics.NormalizeErrors.WithLabelValues(domain.ErrorKind(err)).Inc()
	}
}
