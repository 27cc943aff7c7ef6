package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/docmirror/internal/config"
	"github.com/nao1215/docmirror/internal/crawler"
	"github.com/nao1215/docmirror/internal/model"
	"github.com/nao1215/docmirror/internal/robots"
)

// Run carries one mirror run through the pipeline. Each step reads the
// configuration and the results of earlier steps and adds its own.
type Run struct {
	// Config is the resolved configuration of this run. It is owned by
	// the run; batch runs get their own clone.
	Config *config.Config

	// Root is the canonical root URL derived from Config.RootURL.
	Root string

	// StartedAt is when the run was created.
	StartedAt time.Time

	// Robots is the robots.txt policy. Nil until the robots step ran.
	Robots *robots.Rules

	// State is the crawl state. Nil until the crawl step ran.
	State *crawler.State

	// Interrupted is set when the context was cancelled during the run.
	Interrupted bool

	// Manifest is the summary written at the end of the crawl.
	Manifest model.Manifest

	// ManifestPath is where manifest.json was written. Empty when the
	// manifest step did not run.
	ManifestPath string

	// HistoryID is the run ID in the history database, 0 when the run
	// was not stored.
	HistoryID int64

	// Changed lists the URLs of pages whose content differs from the previous run
	// of the same root. Nil when there is no previous run.
	Changed []string

	// PerformedSteps lists the names of the steps that executed.
	PerformedSteps []string

	// Err is the error that stopped the run, if any.
	Err error

	// ErrorMessage is Err as text, kept for display.
	ErrorMessage string
}

// NewRun creates a Run for cfg. The root URL is canonicalized here so
// every step sees the same form.
func NewRun(cfg *config.Config) (*Run, error) {
	root, err := crawler.NormalizeSeed(cfg.RootURL)
	if err != nil {
		return nil, fmt.Errorf("invalid root URL %q: %w", cfg.RootURL, err)
	}
	return &Run{
		Config:    cfg,
		Root:      root,
		StartedAt: time.Now(),
	}, nil
}

// Record returns the run as it is stored in the history database.
func (r *Run) Record() *model.RunRecord {
	record := &model.RunRecord{
		ID:        r.HistoryID,
		OutputDir: r.Config.OutputDir,
		Manifest:  r.Manifest,
	}
	if r.State != nil {
		record.Pages = r.State.Stats.Pages
	}
	return record
}

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, with each step receiving the run that
// previous steps filled in.
//
// Design decision: We use an interface rather than function types because:
// 1. It allows steps to carry collaborators (HTTP clients, backends)
// 2. It provides a Name() method for logging and debugging
// 3. Tests can substitute single steps
type Step interface {
	// Do executes the pipeline step.
	// Returns an error if the step fails critically; non-critical errors
	// are logged by the step and nil is returned.
	Do(ctx context.Context, run *Run) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Finalizer is implemented by steps that record the outcome of a run.
// Such steps still execute after the context is cancelled, so an
// interrupted crawl leaves a manifest behind.
type Finalizer interface {
	Step

	// RunAfterCancel reports whether the step runs after cancellation.
	RunAfterCancel() bool
}

// Pipeline orchestrates the execution of multiple steps.
// It maintains a list of steps and executes them in order.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger
}

// Option is a function that configures a Pipeline.
// This follows the functional options pattern for clean API design.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
// If not set, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddStep after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
// Steps are executed in the order they are added.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all pipeline steps in sequence.
//
// Design decision: We check the context before each step rather than
// during, because steps handle their own cancellation. Once the context
// is done only steps implementing Finalizer still run; Execute then
// returns the context error.
//
// A failing step stops the pipeline and its error is returned: a crawl
// step fails only when the backend could not start, and a manifest for a
// crawl that never happened would be misleading.
func (p *Pipeline) Execute(ctx context.Context, run *Run) error {
	p.logger.Debug("starting pipeline",
		"root", run.Root,
		"steps", p.StepNames(),
	)

	for _, step := range p.steps {
		if ctx.Err() != nil {
			run.Interrupted = true
			if !runsAfterCancel(step) {
				p.logger.Warn("skipping step after cancellation",
					"step", step.Name(),
					"reason", ctx.Err(),
				)
				continue
			}
		}

		p.logger.Debug("executing step",
			"step", step.Name(),
			"root", run.Root,
		)

		if err := step.Do(ctx, run); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"root", run.Root,
				"error", err,
			)

			run.Err = err
			run.ErrorMessage = err.Error()
			return err
		}

		p.logger.Debug("step completed",
			"step", step.Name(),
			"root", run.Root,
		)

		run.PerformedSteps = append(run.PerformedSteps, step.Name())
	}

	if run.Interrupted {
		return ctx.Err()
	}
	return nil
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}

func runsAfterCancel(step Step) bool {
	f, ok := step.(Finalizer)
	return ok && f.RunAfterCancel()
}
