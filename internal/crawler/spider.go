package crawler

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/sha3"

	"github.com/nao1215/docmirror/internal/model"
)

// Fetcher loads a URL and returns the rendered page.
// Implementations must honour ctx for cancellation and deadlines.
type Fetcher interface {
	// Fetch renders the page at u.
	Fetch(ctx context.Context, u string) (*model.Page, error)

	// Name identifies the backend; it tags non-timeout fetch failures.
	Name() string
}

// Converter turns a rendered page into the Markdown document to save.
type Converter interface {
	Render(page *model.Page) (string, error)
}

// RobotsPolicy answers whether a canonical URL may be fetched.
type RobotsPolicy interface {
	Allowed(u string) bool
}

// allowAll is the robots policy used when none is configured.
type allowAll struct{}

func (allowAll) Allowed(string) bool { return true }

// Outcome is the terminal state of one popped URL.
type Outcome int

const (
	// OutcomeSaved means the page was written and its links harvested.
	OutcomeSaved Outcome = iota
	// OutcomeOutOfScope means the URL failed the scope predicate.
	OutcomeOutOfScope
	// OutcomeBlocked means robots.txt disallowed the URL.
	OutcomeBlocked
	// OutcomeTimeout means the fetch exceeded the per-page timeout.
	OutcomeTimeout
	// OutcomeFetchError means the backend failed for another reason.
	OutcomeFetchError
	// OutcomeConvertError means the page could not be rendered as Markdown.
	OutcomeConvertError
	// OutcomeWriteError means the Markdown file could not be written.
	OutcomeWriteError
	// OutcomeCancelled means the run was interrupted during the fetch.
	OutcomeCancelled
)

// String returns a short lowercase name for the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeSaved:
		return "saved"
	case OutcomeOutOfScope:
		return "out-of-scope"
	case OutcomeBlocked:
		return "robots"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeFetchError:
		return "fetch-error"
	case OutcomeConvertError:
		return "convert-error"
	case OutcomeWriteError:
		return "write-error"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Failed reports whether the outcome produces a failure record.
func (o Outcome) Failed() bool {
	switch o {
	case OutcomeTimeout, OutcomeFetchError, OutcomeConvertError, OutcomeWriteError:
		return true
	default:
		return false
	}
}

// Event describes the outcome of one popped URL for progress reporting.
type Event struct {
	// Kind is the terminal outcome.
	Kind Outcome

	// URL is the canonical URL that was popped.
	URL string

	// Path is the output path relative to the output directory,
	// set only for saved pages.
	Path string

	// Reason carries the error text for failures.
	Reason string
}

// Observer receives one Event per popped URL.
type Observer func(Event)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration)

// sleepContext is the default SleepFunc.
func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// State is the mutable state of one crawl: the frontier and the stats.
// It is owned by the goroutine driving the Spider and passed explicitly
// to Step and Crawl, which makes the loop testable one URL at a time.
type State struct {
	// Frontier holds pending and visited URLs.
	Frontier *Frontier

	// Stats accumulates counters and failures.
	Stats model.CrawlStats
}

// NewState creates a State whose frontier is seeded with the given
// canonical URLs in order.
func NewState(seeds []string) *State {
	f := NewFrontier()
	f.EnqueueSeed(seeds...)
	st := &State{Frontier: f}
	st.Stats.Discovered = f.Discovered()
	return st
}

// Spider drives the crawl loop: it pops URLs from the frontier, applies
// scope and robots policy, fetches, converts and saves each page, and
// offers the page's links back to the frontier.
//
// The loop is strictly sequential. One URL is fully fetched, converted
// and written before the next is popped.
type Spider struct {
	// fetcher renders pages.
	fetcher Fetcher

	// converter renders fetched pages as Markdown.
	converter Converter

	// canon, scope and mapper are derived from the root URL.
	canon  *Canonicalizer
	scope  *Scope
	mapper *PathMapper

	// robots gates fetches; allowAll when robots checking is off.
	robots RobotsPolicy

	// outputDir is the root of the Markdown tree.
	outputDir string

	// maxPages caps downloads; 0 means no cap.
	maxPages int

	// delay is applied after each saved page.
	delay time.Duration

	// timeout bounds a single fetch; 0 means no per-page bound.
	timeout time.Duration

	// keepQuery, strict and ignorePatterns configure canon, scope and
	// mapper when the Spider is built.
	keepQuery      bool
	strict         bool
	ignorePatterns []string

	observer Observer
	sleep    SleepFunc
	logger   *slog.Logger
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithOutputDir sets the directory Markdown files are written to.
func WithOutputDir(dir string) SpiderOption {
	return func(s *Spider) {
		s.outputDir = dir
	}
}

// WithMaxPages sets the maximum number of pages to download.
// Zero or negative means no cap.
func WithMaxPages(maxPages int) SpiderOption {
	return func(s *Spider) {
		s.maxPages = maxPages
	}
}

// WithDelay sets the delay applied after each saved page.
func WithDelay(d time.Duration) SpiderOption {
	return func(s *Spider) {
		s.delay = d
	}
}

// WithTimeout sets the per-page fetch timeout.
func WithTimeout(d time.Duration) SpiderOption {
	return func(s *Spider) {
		s.timeout = d
	}
}

// WithKeepQuery treats distinct query strings as distinct documents.
func WithKeepQuery(keep bool) SpiderOption {
	return func(s *Spider) {
		s.keepQuery = keep
	}
}

// WithStrictScope toggles path-segment boundary matching for scope.
func WithStrictScope(strict bool) SpiderOption {
	return func(s *Spider) {
		s.strict = strict
	}
}

// WithSpiderIgnorePatterns sets URL path globs that are treated as out of scope.
func WithSpiderIgnorePatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.ignorePatterns = patterns
	}
}

// WithRobots sets the robots policy. A nil policy allows everything.
func WithRobots(policy RobotsPolicy) SpiderOption {
	return func(s *Spider) {
		if policy != nil {
			s.robots = policy
		}
	}
}

// WithObserver sets a callback that receives one Event per popped URL.
func WithObserver(observer Observer) SpiderOption {
	return func(s *Spider) {
		s.observer = observer
	}
}

// WithSleep replaces the function used for the politeness delay.
func WithSleep(sleep SleepFunc) SpiderOption {
	return func(s *Spider) {
		if sleep != nil {
			s.sleep = sleep
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSpider creates a Spider for the given canonical root URL.
func NewSpider(root string, fetcher Fetcher, converter Converter, opts ...SpiderOption) (*Spider, error) {
	s := &Spider{
		fetcher:   fetcher,
		converter: converter,
		robots:    allowAll{},
		outputDir: ".",
		strict:    true,
		sleep:     sleepContext,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	var err error
	if s.canon, err = NewCanonicalizer(root, s.keepQuery); err != nil {
		return nil, err
	}
	if s.scope, err = NewScope(root, WithStrictBoundary(s.strict), WithIgnorePatterns(s.ignorePatterns)); err != nil {
		return nil, err
	}
	if s.mapper, err = NewPathMapper(root, s.keepQuery); err != nil {
		return nil, err
	}
	return s, nil
}

// SeedURLs returns the canonical URLs the frontier starts with.
// Non-empty seeds replace the root; they resolve against the root and
// unparseable seeds are dropped with a warning. With no seeds the root
// itself is the only entry.
func (s *Spider) SeedURLs(root string, seeds []string) []string {
	if len(seeds) == 0 {
		return []string{root}
	}
	out := make([]string, 0, len(seeds))
	for _, raw := range seeds {
		u, ok := s.canon.Normalize(raw, "")
		if !ok {
			s.logger.Warn("ignoring malformed seed URL", "seed", raw)
			continue
		}
		out = append(out, u)
	}
	return out
}

// Crawl runs Step until the frontier is exhausted, the page cap is reached
// or ctx is cancelled. The run duration is recorded in st.Stats.
// A cancelled context is not an error: the partial stats stay valid.
func (s *Spider) Crawl(ctx context.Context, st *State) error {
	if st == nil || st.Frontier == nil {
		return errors.New("crawl state is not initialized")
	}
	if err := os.MkdirAll(s.outputDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	start := time.Now()
	for {
		if _, ok := s.Step(ctx, st); !ok {
			break
		}
	}
	st.Stats.Duration += time.Since(start)
	st.Stats.Discovered = st.Frontier.Discovered()

	if ctx.Err() != nil {
		s.logger.Warn("crawl interrupted", "pending", st.Frontier.Len())
	}
	return nil
}

// Step processes exactly one URL from the frontier.
// It returns false without popping when ctx is done, the frontier is empty
// or the page cap has been reached.
func (s *Spider) Step(ctx context.Context, st *State) (Outcome, bool) {
	if ctx.Err() != nil {
		return 0, false
	}
	if s.maxPages > 0 && st.Stats.Downloaded >= s.maxPages {
		return 0, false
	}

	u, ok := st.Frontier.Pop()
	if !ok {
		return 0, false
	}
	st.Frontier.MarkVisited(u)

	outcome, ev := s.process(ctx, st, u)
	st.Stats.Discovered = st.Frontier.Discovered()

	if s.observer != nil {
		s.observer(ev)
	}
	return outcome, true
}

// process runs one popped URL through the policy gates and the
// fetch/convert/write pipeline and records the result in st.
func (s *Spider) process(ctx context.Context, st *State, u string) (Outcome, Event) {
	ev := Event{URL: u}

	if !s.scope.InScope(u) {
		s.logger.Debug("skipping out-of-scope URL", "url", u)
		st.Stats.RecordSkipped()
		ev.Kind = OutcomeOutOfScope
		return ev.Kind, ev
	}
	if !s.robots.Allowed(u) {
		s.logger.Debug("skipping URL disallowed by robots.txt", "url", u)
		st.Stats.RecordSkipped()
		ev.Kind = OutcomeBlocked
		return ev.Kind, ev
	}

	page, err := s.fetch(ctx, u)
	if err != nil {
		if ctx.Err() != nil {
			ev.Kind = OutcomeCancelled
			ev.Reason = err.Error()
			return ev.Kind, ev
		}
		ev.Reason = err.Error()
		if isTimeout(err) {
			s.logger.Warn("page load timed out", "url", u, "timeout", s.timeout)
			st.Stats.RecordFailure(model.ReasonTimeout, u)
			ev.Kind = OutcomeTimeout
		} else {
			s.logger.Warn("page load failed", "url", u, "backend", s.fetcher.Name(), "error", err)
			st.Stats.RecordFailure(model.FailureReason(s.fetcher.Name()), u)
			ev.Kind = OutcomeFetchError
		}
		return ev.Kind, ev
	}

	markdown, err := s.converter.Render(page)
	if err != nil {
		s.logger.Warn("failed to convert page", "url", u, "error", err)
		st.Stats.RecordFailure(model.ReasonConvert, u)
		ev.Kind = OutcomeConvertError
		ev.Reason = err.Error()
		return ev.Kind, ev
	}

	record, err := s.save(u, markdown)
	if err != nil {
		s.logger.Warn("failed to write page", "url", u, "error", err)
		st.Stats.RecordFailure(model.ReasonWrite, u)
		ev.Kind = OutcomeWriteError
		ev.Reason = err.Error()
		return ev.Kind, ev
	}
	st.Stats.RecordSaved(record)
	s.logger.Info("saved page", "url", u, "path", record.Path)

	added := s.harvest(page, st.Frontier)
	s.logger.Debug("harvested links", "url", u, "new", added)

	s.sleep(ctx, s.delay)

	ev.Kind = OutcomeSaved
	ev.Path = record.Path
	return ev.Kind, ev
}

// fetch calls the backend under the per-page timeout.
func (s *Spider) fetch(ctx context.Context, u string) (*model.Page, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	page, err := s.fetcher.Fetch(ctx, u)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, fmt.Errorf("backend %s returned no page for %s", s.fetcher.Name(), u)
	}
	if page.URL == "" {
		page.URL = u
	}
	return page, nil
}

// save writes markdown to the path mapped from u.
func (s *Spider) save(u, markdown string) (model.PageRecord, error) {
	rel, err := s.mapper.ToPath(u)
	if err != nil {
		return model.PageRecord{}, err
	}

	dst := filepath.Join(s.outputDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dst), 0750); err != nil {
		return model.PageRecord{}, fmt.Errorf("failed to create directory: %w", err)
	}
	data := []byte(markdown)
	if err := os.WriteFile(dst, data, 0600); err != nil {
		return model.PageRecord{}, fmt.Errorf("failed to write %s: %w", rel, err)
	}

	sum := sha3.Sum256(data)
	return model.PageRecord{
		URL:   u,
		Path:  rel,
		Title: leadingTitle(markdown),
		Hash:  hex.EncodeToString(sum[:]),
		Bytes: len(data),
	}, nil
}

// harvest offers every in-scope link of page to the frontier in document
// order and returns how many were newly enqueued.
func (s *Spider) harvest(page *model.Page, f *Frontier) int {
	parser, err := NewParser(page.BaseURL())
	if err != nil {
		s.logger.Debug("cannot parse page URL for links", "url", page.BaseURL(), "error", err)
		return 0
	}
	result, err := parser.Parse(strings.NewReader(page.HTML))
	if err != nil {
		s.logger.Debug("failed to parse page for links", "url", page.URL, "error", err)
		return 0
	}

	added := 0
	for _, href := range result.Links {
		link, ok := s.canon.Normalize(href, result.Base)
		if !ok || !s.scope.InScope(link) {
			continue
		}
		if f.OfferLink(link) {
			added++
		}
	}
	return added
}

// isTimeout reports whether err is a deadline or transport timeout.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

// leadingTitle returns the text of a leading "# " heading, if any.
func leadingTitle(markdown string) string {
	line, _, _ := strings.Cut(markdown, "\n")
	if !strings.HasPrefix(line, "# ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(line, "# "))
}
