package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/docmirror/internal/config"
)

// BatchProcessor mirrors several documentation sites concurrently.
// It uses errgroup to manage goroutines and respect concurrency limits.
// Each site still runs its own strictly sequential crawl.
//
// Design decision: We use a separate BatchProcessor rather than adding batch
// functionality to Pipeline because:
// 1. It keeps the Pipeline focused on single-site execution
// 2. The crawl loop stays single threaded; only whole sites overlap
// 3. It provides cleaner separation of concerns
type BatchProcessor struct {
	// pipelineFactory creates a new pipeline for each site.
	// We use a factory to ensure each site gets a fresh pipeline instance.
	pipelineFactory func() *Pipeline

	// concurrency is the maximum number of concurrent sites.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent sites.
// Default is config.DefaultBatchSize if not specified.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
//
// The pipelineFactory function is called for each site to create a fresh
// pipeline instance. This ensures that pipeline state doesn't leak between
// sites.
func NewBatchProcessor(pipelineFactory func() *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     config.DefaultBatchSize,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatchWithCallback mirrors every configuration and calls callback
// for each finished run, including failed runs, so results stream out as
// sites complete. The error return is non-nil only when the batch was
// cancelled before every site started.
//
// Design decision: We use errgroup.SetLimit rather than a worker pool
// because it's simpler and errgroup handles the concurrency correctly.
//
// The callback receives the run and the index of its configuration. It is
// called from the goroutine that finished the run, so it must be safe for
// concurrent use. Sites whose root URL cannot be parsed are reported
// through the callback with Err set.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	configs []*config.Config,
	callback func(run *Run, index int),
) error {
	startTime := time.Now()
	bp.logger.Info("starting batch processing",
		"total_sites", len(configs),
		"concurrency", bp.concurrency,
	)
	defer func() {
		bp.logger.Info("batch processing complete",
			"total_sites", len(configs),
			"elapsed", time.Since(startTime),
		)
	}()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, cfg := range configs {
		g.Go(func() error {
			// Check for cancellation before starting
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			run, err := NewRun(cfg)
			if err != nil {
				bp.logger.Warn("skipping site", "root", cfg.RootURL, "error", err)
				callback(&Run{Config: cfg, Err: err, ErrorMessage: err.Error(), StartedAt: time.Now()}, i)
				return nil
			}

			bp.logger.Info("mirroring site",
				"root", run.Root,
				"index", i+1,
				"total", len(configs),
			)

			// Don't return the error to errgroup: one broken site must not
			// cancel the others. The error is recorded in the run.
			if err := bp.pipelineFactory().Execute(ctx, run); err != nil {
				bp.logger.Warn("site mirror failed", "root", run.Root, "error", err)
			}

			callback(run, i)
			return nil
		})
	}

	return g.Wait()
}
