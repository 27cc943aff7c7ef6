package crawler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/docmirror/internal/model"
)

// fakeFetcher serves canned HTML and errors keyed by URL.
type fakeFetcher struct {
	mu      sync.Mutex
	pages   map[string]string
	errs    map[string]error
	fetched []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, u string) (*model.Page, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, u)
	f.mu.Unlock()

	if err, ok := f.errs[u]; ok {
		return nil, err
	}
	body, ok := f.pages[u]
	if !ok {
		return nil, fmt.Errorf("404 for %s", u)
	}
	return &model.Page{URL: u, HTML: body, Title: "Page " + u}, nil
}

func (f *fakeFetcher) Name() string { return "fake" }

// fakeConverter renders the page title and URL as Markdown.
type fakeConverter struct {
	fail map[string]bool
}

func (c fakeConverter) Render(page *model.Page) (string, error) {
	if c.fail[page.URL] {
		return "", errors.New("conversion failed")
	}
	return "# " + page.Title + "\n\n" + page.URL + "\n", nil
}

// denyRobots blocks the listed URLs.
type denyRobots map[string]bool

func (d denyRobots) Allowed(u string) bool { return !d[u] }

func links(hrefs ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, h := range hrefs {
		fmt.Fprintf(&b, `<a href="%s">link</a>`, h)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func newTestSpider(t *testing.T, fetcher Fetcher, conv Converter, opts ...SpiderOption) (*Spider, string) {
	t.Helper()

	dir := t.TempDir()
	opts = append([]SpiderOption{
		WithOutputDir(dir),
		WithSleep(func(context.Context, time.Duration) {}),
	}, opts...)
	s, err := NewSpider("https://example.com/docs", fetcher, conv, opts...)
	if err != nil {
		t.Fatalf("failed to create spider: %v", err)
	}
	return s, dir
}

// TestSpiderCrawl tests end-to-end crawl behaviour against fakes.
func TestSpiderCrawl(t *testing.T) {
	t.Parallel()

	t.Run("dedups equivalent links and filters other hosts", func(t *testing.T) {
		t.Parallel()

		fetcher := &fakeFetcher{pages: map[string]string{
			"https://example.com/docs":       links("/docs/guide", "/docs/guide/", "https://other.com/x"),
			"https://example.com/docs/guide": links("/docs", "#top"),
		}}
		s, dir := newTestSpider(t, fetcher, fakeConverter{})

		st := NewState(s.SeedURLs("https://example.com/docs", nil))
		if err := s.Crawl(context.Background(), st); err != nil {
			t.Fatalf("crawl failed: %v", err)
		}

		if st.Stats.Discovered != 2 {
			t.Errorf("expected 2 discovered, got %d", st.Stats.Discovered)
		}
		if st.Stats.Downloaded != 2 {
			t.Errorf("expected 2 downloaded, got %d", st.Stats.Downloaded)
		}
		if st.Stats.Skipped != 0 {
			t.Errorf("expected 0 skipped, got %d", st.Stats.Skipped)
		}
		for _, u := range fetcher.fetched {
			if strings.Contains(u, "other.com") {
				t.Errorf("out-of-scope URL was fetched: %s", u)
			}
		}

		for _, rel := range []string{"index.md", "guide/index.md"} {
			if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(rel))); err != nil {
				t.Errorf("expected %s to be written: %v", rel, err)
			}
		}
	})

	t.Run("visits links breadth-first in document order", func(t *testing.T) {
		t.Parallel()

		fetcher := &fakeFetcher{pages: map[string]string{
			"https://example.com/docs":   links("/docs/a", "/docs/b", "/docs/c"),
			"https://example.com/docs/a": links("/docs/d"),
			"https://example.com/docs/b": links(),
			"https://example.com/docs/c": links(),
			"https://example.com/docs/d": links(),
		}}
		s, _ := newTestSpider(t, fetcher, fakeConverter{})

		st := NewState(s.SeedURLs("https://example.com/docs", nil))
		if err := s.Crawl(context.Background(), st); err != nil {
			t.Fatalf("crawl failed: %v", err)
		}

		want := []string{
			"https://example.com/docs",
			"https://example.com/docs/a",
			"https://example.com/docs/b",
			"https://example.com/docs/c",
			"https://example.com/docs/d",
		}
		if strings.Join(fetcher.fetched, " ") != strings.Join(want, " ") {
			t.Errorf("unexpected visit order:\n got %v\nwant %v", fetcher.fetched, want)
		}
	})

	t.Run("every discovered URL reaches one outcome", func(t *testing.T) {
		t.Parallel()

		fetcher := &fakeFetcher{
			pages: map[string]string{
				"https://example.com/docs":   links("/docs/a", "/docs/b", "/docs/c", "/docs/d", "/docs/e"),
				"https://example.com/docs/a": links("/docs", "/docs/a"),
				"https://example.com/docs/e": links(),
			},
			errs: map[string]error{
				"https://example.com/docs/b": context.DeadlineExceeded,
			},
		}
		s, _ := newTestSpider(t, fetcher, fakeConverter{fail: map[string]bool{"https://example.com/docs/e": true}},
			WithRobots(denyRobots{"https://example.com/docs/d": true}),
		)

		st := NewState(s.SeedURLs("https://example.com/docs", nil))
		if err := s.Crawl(context.Background(), st); err != nil {
			t.Fatalf("crawl failed: %v", err)
		}

		if got := st.Stats.Downloaded + st.Stats.Skipped; got != st.Stats.Discovered {
			t.Errorf("downloaded+skipped = %d, discovered = %d", got, st.Stats.Discovered)
		}

		seen := make(map[string]int)
		for _, u := range fetcher.fetched {
			seen[u]++
			if seen[u] > 1 {
				t.Errorf("URL fetched more than once: %s", u)
			}
		}

		want := []string{
			"timeout: https://example.com/docs/b",
			"fake: https://example.com/docs/c",
			"convert: https://example.com/docs/e",
		}
		if len(st.Stats.Failures) != len(want) {
			t.Fatalf("expected failures %v, got %v", want, st.Stats.Failures)
		}
		for i := range want {
			if st.Stats.Failures[i].String() != want[i] {
				t.Errorf("failure %d: expected %q, got %q", i, want[i], st.Stats.Failures[i].String())
			}
		}
	})

	t.Run("page cap stops after one download", func(t *testing.T) {
		t.Parallel()

		fetcher := &fakeFetcher{pages: map[string]string{
			"https://example.com/docs":   links("/docs/a", "/docs/b"),
			"https://example.com/docs/a": links(),
			"https://example.com/docs/b": links(),
		}}
		s, _ := newTestSpider(t, fetcher, fakeConverter{}, WithMaxPages(1))

		st := NewState(s.SeedURLs("https://example.com/docs", nil))
		if err := s.Crawl(context.Background(), st); err != nil {
			t.Fatalf("crawl failed: %v", err)
		}

		if st.Stats.Downloaded != 1 {
			t.Errorf("expected 1 downloaded, got %d", st.Stats.Downloaded)
		}
		if st.Stats.Discovered != 3 {
			t.Errorf("expected 3 discovered, got %d", st.Stats.Discovered)
		}
		if len(fetcher.fetched) != 1 {
			t.Errorf("expected 1 fetch, got %v", fetcher.fetched)
		}
	})

	t.Run("seeds replace the root", func(t *testing.T) {
		t.Parallel()

		fetcher := &fakeFetcher{pages: map[string]string{
			"https://example.com/docs/a": links(),
			"https://example.com/docs/b": links(),
		}}
		s, _ := newTestSpider(t, fetcher, fakeConverter{})

		seeds := s.SeedURLs("https://example.com/docs", []string{"a/", "https://example.com/docs/b#x", "%zz"})
		st := NewState(seeds)
		if err := s.Crawl(context.Background(), st); err != nil {
			t.Fatalf("crawl failed: %v", err)
		}

		if len(fetcher.fetched) != 2 {
			t.Fatalf("expected 2 fetches, got %v", fetcher.fetched)
		}
		for _, u := range fetcher.fetched {
			if u == "https://example.com/docs" {
				t.Error("root must not be fetched when seeds are given")
			}
		}
	})

	t.Run("cancelled context stops before the next pop", func(t *testing.T) {
		t.Parallel()

		fetcher := &fakeFetcher{pages: map[string]string{
			"https://example.com/docs": links("/docs/a"),
		}}
		s, _ := newTestSpider(t, fetcher, fakeConverter{})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		st := NewState(s.SeedURLs("https://example.com/docs", nil))
		if err := s.Crawl(ctx, st); err != nil {
			t.Fatalf("crawl failed: %v", err)
		}
		if len(fetcher.fetched) != 0 {
			t.Errorf("expected no fetches, got %v", fetcher.fetched)
		}
		if st.Frontier.Len() != 1 {
			t.Errorf("expected seed to remain queued, got %d", st.Frontier.Len())
		}
	})
}

// TestSpiderStep tests single-URL transitions.
func TestSpiderStep(t *testing.T) {
	t.Parallel()

	t.Run("timeout is recorded and the loop continues", func(t *testing.T) {
		t.Parallel()

		fetcher := &fakeFetcher{
			pages: map[string]string{"https://example.com/docs/b": links()},
			errs:  map[string]error{"https://example.com/docs/a": fmt.Errorf("navigate: %w", context.DeadlineExceeded)},
		}
		s, _ := newTestSpider(t, fetcher, fakeConverter{})
		st := NewState([]string{"https://example.com/docs/a", "https://example.com/docs/b"})

		outcome, ok := s.Step(context.Background(), st)
		if !ok || outcome != OutcomeTimeout {
			t.Fatalf("expected timeout outcome, got %v (%v)", outcome, ok)
		}
		if st.Stats.Skipped != 1 || len(st.Stats.Failures) != 1 {
			t.Errorf("expected one skip with one failure, got %+v", st.Stats)
		}
		if st.Stats.Failures[0].Reason != model.ReasonTimeout {
			t.Errorf("expected timeout reason, got %q", st.Stats.Failures[0].Reason)
		}

		outcome, ok = s.Step(context.Background(), st)
		if !ok || outcome != OutcomeSaved {
			t.Errorf("expected next URL to be saved, got %v (%v)", outcome, ok)
		}
	})

	t.Run("out-of-scope seed is skipped silently", func(t *testing.T) {
		t.Parallel()

		fetcher := &fakeFetcher{}
		var events []Event
		s, _ := newTestSpider(t, fetcher, fakeConverter{}, WithObserver(func(e Event) { events = append(events, e) }))
		st := NewState([]string{"https://other.com/docs"})

		outcome, ok := s.Step(context.Background(), st)
		if !ok || outcome != OutcomeOutOfScope {
			t.Fatalf("expected out-of-scope, got %v (%v)", outcome, ok)
		}
		if st.Stats.Skipped != 1 || len(st.Stats.Failures) != 0 {
			t.Errorf("expected silent skip, got %+v", st.Stats)
		}
		if len(fetcher.fetched) != 0 {
			t.Error("out-of-scope URL must not be fetched")
		}
		if len(events) != 1 || events[0].Kind != OutcomeOutOfScope {
			t.Errorf("expected one out-of-scope event, got %+v", events)
		}
	})

	t.Run("delay only follows saved pages", func(t *testing.T) {
		t.Parallel()

		fetcher := &fakeFetcher{pages: map[string]string{"https://example.com/docs/a": links()}}
		var sleeps int
		s, err := NewSpider("https://example.com/docs", fetcher, fakeConverter{},
			WithOutputDir(t.TempDir()),
			WithDelay(time.Second),
			WithRobots(denyRobots{"https://example.com/docs/blocked": true}),
			WithSleep(func(_ context.Context, d time.Duration) {
				if d != time.Second {
					t.Errorf("unexpected delay %v", d)
				}
				sleeps++
			}),
		)
		if err != nil {
			t.Fatalf("failed to create spider: %v", err)
		}
		st := NewState([]string{
			"https://example.com/docs/blocked",
			"https://other.com/x",
			"https://example.com/docs/missing",
			"https://example.com/docs/a",
		})
		if err := s.Crawl(context.Background(), st); err != nil {
			t.Fatalf("crawl failed: %v", err)
		}
		if sleeps != 1 {
			t.Errorf("expected 1 delay, got %d", sleeps)
		}
	})

	t.Run("saved page records hash and title", func(t *testing.T) {
		t.Parallel()

		fetcher := &fakeFetcher{pages: map[string]string{"https://example.com/docs/guide/setup": links()}}
		s, dir := newTestSpider(t, fetcher, fakeConverter{})
		st := NewState([]string{"https://example.com/docs/guide/setup"})

		if outcome, _ := s.Step(context.Background(), st); outcome != OutcomeSaved {
			t.Fatalf("expected saved, got %v", outcome)
		}
		rec := st.Stats.Pages[0]
		if rec.Path != "guide/setup/index.md" {
			t.Errorf("unexpected path %q", rec.Path)
		}
		if rec.Title != "Page https://example.com/docs/guide/setup" {
			t.Errorf("unexpected title %q", rec.Title)
		}
		if len(rec.Hash) != 64 {
			t.Errorf("expected 64 hex chars, got %q", rec.Hash)
		}
		data, err := os.ReadFile(filepath.Join(dir, "guide", "setup", "index.md"))
		if err != nil {
			t.Fatalf("failed to read output: %v", err)
		}
		if rec.Bytes != len(data) {
			t.Errorf("expected %d bytes, got %d", len(data), rec.Bytes)
		}
	})

	t.Run("empty frontier stops", func(t *testing.T) {
		t.Parallel()

		s, _ := newTestSpider(t, &fakeFetcher{}, fakeConverter{})
		if _, ok := s.Step(context.Background(), NewState(nil)); ok {
			t.Error("expected Step to report no work")
		}
	})
}

// TestOutcome tests outcome helpers.
func TestOutcome(t *testing.T) {
	t.Parallel()

	failed := map[Outcome]bool{
		OutcomeSaved:        false,
		OutcomeOutOfScope:   false,
		OutcomeBlocked:      false,
		OutcomeTimeout:      true,
		OutcomeFetchError:   true,
		OutcomeConvertError: true,
		OutcomeWriteError:   true,
		OutcomeCancelled:    false,
	}
	for o, want := range failed {
		if o.Failed() != want {
			t.Errorf("%s: Failed() = %v, want %v", o, o.Failed(), want)
		}
		if o.String() == "unknown" {
			t.Errorf("outcome %d has no name", int(o))
		}
	}
}
