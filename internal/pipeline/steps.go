package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nao1215/docmirror/internal/crawler"
	"github.com/nao1215/docmirror/internal/database"
	"github.com/nao1215/docmirror/internal/extract"
	"github.com/nao1215/docmirror/internal/model"
	"github.com/nao1215/docmirror/internal/render"
	"github.com/nao1215/docmirror/internal/report"
	"github.com/nao1215/docmirror/internal/robots"
)

// RobotsStep loads robots.txt for the root host.
// A load failure is not fatal: the run continues with robots checking
// disabled and a warning is logged.
type RobotsStep struct {
	// client fetches robots.txt. Nil means a client bounded by the page
	// timeout of the run.
	client *http.Client

	// logger for structured logging.
	logger *slog.Logger
}

// RobotsStepOption configures a RobotsStep.
type RobotsStepOption func(*RobotsStep)

// WithRobotsClient sets the HTTP client used to fetch robots.txt.
func WithRobotsClient(client *http.Client) RobotsStepOption {
	return func(s *RobotsStep) {
		s.client = client
	}
}

// WithRobotsLogger sets a custom logger for the robots step.
func WithRobotsLogger(logger *slog.Logger) RobotsStepOption {
	return func(s *RobotsStep) {
		s.logger = logger
	}
}

// NewRobotsStep creates a new robots.txt loading step.
func NewRobotsStep(opts ...RobotsStepOption) *RobotsStep {
	s := &RobotsStep{logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *RobotsStep) Name() string {
	return "robots"
}

// Do loads the robots policy into run.Robots.
func (s *RobotsStep) Do(ctx context.Context, run *Run) error {
	if !run.Config.RespectRobots {
		s.logger.Debug("robots.txt checking disabled by configuration")
		run.Robots = robots.Disabled()
		return nil
	}

	client := s.client
	if client == nil {
		client = &http.Client{Timeout: run.Config.Timeout}
	}

	rules, err := robots.Load(ctx, client, run.Root, run.Config.UserAgent)
	if err != nil {
		s.logger.Warn("robots.txt could not be loaded; robots checking disabled for this run",
			"root", run.Root,
			"error", err,
		)
		run.Robots = robots.Disabled()
		return nil
	}

	run.Robots = rules
	return nil
}

// BackendFactory creates a render backend. render.New is the default.
type BackendFactory func(name string, opts render.Options) (render.Backend, error)

// CrawlStep starts the render backend and runs the crawl loop.
//
// Design decision: Backend creation and start failures are returned as
// errors. The pipeline stops on them, so no manifest is written for a
// crawl that never started. Page level failures never reach this step;
// the Spider records them in the crawl stats.
type CrawlStep struct {
	// newBackend creates the render backend named in the config.
	newBackend BackendFactory

	// converter turns fetched pages into Markdown. Nil means an
	// extract.Renderer built from the run's content selector.
	converter crawler.Converter

	// observer receives one event per popped URL.
	observer crawler.Observer

	// sleep replaces the politeness delay, mainly in tests.
	sleep crawler.SleepFunc

	// logger for structured logging.
	logger *slog.Logger
}

// CrawlStepOption configures a CrawlStep.
type CrawlStepOption func(*CrawlStep)

// WithBackendFactory replaces render.New.
func WithBackendFactory(factory BackendFactory) CrawlStepOption {
	return func(s *CrawlStep) {
		if factory != nil {
			s.newBackend = factory
		}
	}
}

// WithConverter sets the page converter.
func WithConverter(converter crawler.Converter) CrawlStepOption {
	return func(s *CrawlStep) {
		s.converter = converter
	}
}

// WithCrawlObserver sets the progress observer.
func WithCrawlObserver(observer crawler.Observer) CrawlStepOption {
	return func(s *CrawlStep) {
		s.observer = observer
	}
}

// WithCrawlSleep replaces the function used for the politeness delay.
func WithCrawlSleep(sleep crawler.SleepFunc) CrawlStepOption {
	return func(s *CrawlStep) {
		s.sleep = sleep
	}
}

// WithCrawlLogger sets a custom logger for the crawl step.
func WithCrawlLogger(logger *slog.Logger) CrawlStepOption {
	return func(s *CrawlStep) {
		s.logger = logger
	}
}

// NewCrawlStep creates a new crawl step.
func NewCrawlStep(opts ...CrawlStepOption) *CrawlStep {
	s := &CrawlStep{
		newBackend: render.New,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do executes the crawl. Cancellation is not an error: the partial state
// is kept and run.Interrupted is set.
func (s *CrawlStep) Do(ctx context.Context, run *Run) error {
	cfg := run.Config

	backend, err := s.newBackend(cfg.Backend, render.Options{
		UserAgent:      cfg.UserAgent,
		Headless:       cfg.Headless,
		WaitUntil:      cfg.WaitUntil,
		Headers:        cfg.Headers,
		Cookie:         cfg.Cookie,
		DismissCookies: cfg.DismissCookies,
		Client:         &http.Client{Timeout: cfg.Timeout},
		Logger:         s.logger,
	})
	if err != nil {
		return err
	}

	if err := backend.Start(ctx); err != nil {
		return fmt.Errorf("failed to start %s backend: %w", backend.Name(), err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			s.logger.Warn("failed to close render backend", "backend", backend.Name(), "error", err)
		}
	}()

	converter := s.converter
	if converter == nil {
		converter = extract.NewRenderer(
			extract.WithSelector(cfg.ContentSelector),
			extract.WithLogger(s.logger),
		)
	}

	opts := []crawler.SpiderOption{
		crawler.WithOutputDir(cfg.OutputDir),
		crawler.WithMaxPages(cfg.MaxPages),
		crawler.WithDelay(cfg.Delay),
		crawler.WithTimeout(cfg.Timeout),
		crawler.WithKeepQuery(cfg.KeepQuery),
		crawler.WithStrictScope(cfg.StrictScope),
		crawler.WithSpiderIgnorePatterns(cfg.IgnorePatterns),
		crawler.WithObserver(s.observer),
		crawler.WithSleep(s.sleep),
		crawler.WithLogger(s.logger),
	}
	if run.Robots != nil {
		opts = append(opts, crawler.WithRobots(run.Robots))
	}

	spider, err := crawler.NewSpider(run.Root, backend, converter, opts...)
	if err != nil {
		return fmt.Errorf("failed to create spider: %w", err)
	}

	run.State = crawler.NewState(spider.SeedURLs(run.Root, cfg.Seeds))
	if err := spider.Crawl(ctx, run.State); err != nil {
		return err
	}
	if ctx.Err() != nil {
		run.Interrupted = true
	}
	return nil
}

// ManifestStep finalizes the crawl stats and writes manifest.json.
// It runs after cancellation so interrupted crawls are still recorded.
type ManifestStep struct {
	// now returns the completion time.
	now func() time.Time
}

// ManifestStepOption configures a ManifestStep.
type ManifestStepOption func(*ManifestStep)

// WithClock replaces time.Now for the generated_at timestamp.
func WithClock(now func() time.Time) ManifestStepOption {
	return func(s *ManifestStep) {
		if now != nil {
			s.now = now
		}
	}
}

// NewManifestStep creates a new manifest writing step.
func NewManifestStep(opts ...ManifestStepOption) *ManifestStep {
	s := &ManifestStep{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *ManifestStep) Name() string {
	return "manifest"
}

// RunAfterCancel implements Finalizer.
func (s *ManifestStep) RunAfterCancel() bool {
	return true
}

// Do writes the manifest of run.State into the output directory.
// A run interrupted before the crawl started has nothing to record.
func (s *ManifestStep) Do(_ context.Context, run *Run) error {
	if run.State == nil {
		if run.Interrupted {
			return nil
		}
		return errors.New("no crawl state to record")
	}

	run.Manifest = model.Finalize(run.State.Stats, model.RunInfo{
		RootURL:   run.Root,
		UserAgent: run.Config.UserAgent,
		Delay:     run.Config.Delay,
	}, s.now())

	path, err := report.WriteManifest(run.Config.OutputDir, run.Manifest)
	if err != nil {
		return err
	}
	run.ManifestPath = path
	return nil
}

// HistoryStep stores the finished run in the history database.
// Storage problems are logged and never fail the run: the mirror and its
// manifest are already on disk at this point.
type HistoryStep struct {
	// logger for structured logging.
	logger *slog.Logger
}

// HistoryStepOption configures a HistoryStep.
type HistoryStepOption func(*HistoryStep)

// WithHistoryLogger sets a custom logger for the history step.
func WithHistoryLogger(logger *slog.Logger) HistoryStepOption {
	return func(s *HistoryStep) {
		s.logger = logger
	}
}

// NewHistoryStep creates a new history recording step.
func NewHistoryStep(opts ...HistoryStepOption) *HistoryStep {
	s := &HistoryStep{logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *HistoryStep) Name() string {
	return "history"
}

// RunAfterCancel implements Finalizer.
func (s *HistoryStep) RunAfterCancel() bool {
	return true
}

// Do saves the run and the list of pages that changed since the previous
// run of the same root.
func (s *HistoryStep) Do(ctx context.Context, run *Run) error {
	if !run.Config.SaveHistory || run.ManifestPath == "" {
		return nil
	}

	// The run is recorded even when it was interrupted.
	ctx = context.WithoutCancel(ctx)

	db, err := database.Open(run.Config.DBDir, database.DefaultOptions())
	if err != nil {
		s.logger.Warn("failed to open history database", "dir", run.Config.DBDir, "error", err)
		return nil
	}
	defer func() {
		if err := db.Close(); err != nil {
			s.logger.Warn("failed to close history database", "error", err)
		}
	}()

	id, err := db.SaveRun(ctx, run.Record())
	if err != nil {
		s.logger.Warn("failed to save run history", "root", run.Root, "error", err)
		return nil
	}
	run.HistoryID = id

	changed, err := db.ChangedPages(ctx, id)
	if err != nil {
		s.logger.Warn("failed to compare with previous run", "run", id, "error", err)
		return nil
	}
	run.Changed = changed
	if changed != nil {
		s.logger.Debug("pages changed since previous run", "run", id, "changed", len(changed))
	}
	return nil
}

// DefaultPipelineConfig holds the collaborators of the default pipeline.
// Run settings come from the config of each Run, so one pipeline
// configuration serves every site of a batch.
type DefaultPipelineConfig struct {
	// Observer receives crawl progress events.
	Observer crawler.Observer

	// BackendFactory creates render backends. Nil means render.New.
	BackendFactory BackendFactory

	// Converter replaces the default extract.Renderer.
	Converter crawler.Converter

	// RobotsClient fetches robots.txt.
	RobotsClient *http.Client

	// Sleep replaces the politeness delay.
	Sleep crawler.SleepFunc

	// Clock replaces time.Now for the manifest timestamp.
	Clock func() time.Time
}

// DefaultPipelineOption configures a DefaultPipelineConfig.
type DefaultPipelineOption func(*DefaultPipelineConfig)

// WithPipelineObserver sets the crawl progress observer.
func WithPipelineObserver(observer crawler.Observer) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Observer = observer
	}
}

// WithPipelineBackendFactory sets the render backend factory.
func WithPipelineBackendFactory(factory BackendFactory) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.BackendFactory = factory
	}
}

// WithPipelineConverter sets the page converter.
func WithPipelineConverter(converter crawler.Converter) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Converter = converter
	}
}

// WithPipelineRobotsClient sets the HTTP client used for robots.txt.
func WithPipelineRobotsClient(client *http.Client) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.RobotsClient = client
	}
}

// WithPipelineSleep replaces the politeness delay.
func WithPipelineSleep(sleep crawler.SleepFunc) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Sleep = sleep
	}
}

// WithPipelineClock replaces time.Now for the manifest timestamp.
func WithPipelineClock(now func() time.Time) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Clock = now
	}
}

// DefaultPipeline creates a pipeline with all default steps configured:
// robots, crawl, manifest and history.
//
// Design decision: We provide a default pipeline because:
// 1. Every mirror run needs the same steps in the same order
// 2. Reduces boilerplate in CLI
// 3. Batch runs can create a fresh pipeline per site cheaply
//
// The first parameter accepts pipeline options (WithLogger, etc).
// The variadic parameter accepts collaborator options (WithPipelineObserver, etc).
func DefaultPipeline(pipelineOpts []Option, configOpts ...DefaultPipelineOption) *Pipeline {
	p := New(pipelineOpts...)

	cfg := &DefaultPipelineConfig{}
	for _, opt := range configOpts {
		opt(cfg)
	}

	p.AddSteps(
		NewRobotsStep(
			WithRobotsClient(cfg.RobotsClient),
			WithRobotsLogger(p.logger),
		),
		NewCrawlStep(
			WithBackendFactory(cfg.BackendFactory),
			WithConverter(cfg.Converter),
			WithCrawlObserver(cfg.Observer),
			WithCrawlSleep(cfg.Sleep),
			WithCrawlLogger(p.logger),
		),
		NewManifestStep(WithClock(cfg.Clock)),
		NewHistoryStep(WithHistoryLogger(p.logger)),
	)

	return p
}
