package render

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/nao1215/docmirror/internal/model"
)

// chromium renders pages in a single reused Chrome tab.
type chromium struct {
	opts   Options
	logger *slog.Logger

	// tabCtx is the chromedp context of the tab; nil until Start.
	tabCtx context.Context

	// cancel closes the tab and the browser.
	cancel context.CancelFunc
}

func newChromium(opts Options) *chromium {
	return &chromium{opts: opts, logger: opts.Logger}
}

// Name implements Backend.
func (c *chromium) Name() string {
	return BackendChromium
}

// allocatorOptions returns the exec allocator flags for opts.
func allocatorOptions(opts Options) []chromedp.ExecAllocatorOption {
	execOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	execOpts = append(execOpts,
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(opts.ViewportWidth, opts.ViewportHeight),
	)
	if ua := strings.TrimSpace(opts.UserAgent); ua != "" {
		execOpts = append(execOpts, chromedp.UserAgent(ua))
	}
	if opts.ExecPath != "" {
		execOpts = append(execOpts, chromedp.ExecPath(opts.ExecPath))
	}
	return execOpts
}

// extraHeaders merges configured headers and the cookie.
func extraHeaders(opts Options) network.Headers {
	h := network.Headers{}
	for k, v := range opts.Headers {
		h[k] = v
	}
	if opts.Cookie != "" {
		h["Cookie"] = opts.Cookie
	}
	return h
}

// Start launches the browser and opens the tab used for every page.
// The browser outlives ctx; Close shuts it down.
func (c *chromium) Start(ctx context.Context) error {
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocatorOptions(c.opts)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(func(format string, args ...any) {
			c.logger.Debug("chromedp: "+fmt.Sprintf(format, args...))
		}),
	)
	c.cancel = func() {
		tabCancel()
		allocCancel()
	}

	actions := []chromedp.Action{network.Enable()}
	if h := extraHeaders(c.opts); len(h) > 0 {
		actions = append(actions, network.SetExtraHTTPHeaders(h))
	}

	// The first Run allocates the browser and must use the tab context
	// itself, otherwise the browser dies with the derived context.
	unlink := context.AfterFunc(ctx, c.cancel)
	defer unlink()

	if err := chromedp.Run(tabCtx, actions...); err != nil {
		c.cancel()
		c.cancel = nil
		return fmt.Errorf("failed to start chromium: %w", err)
	}

	c.tabCtx = tabCtx
	c.logger.Debug("chromium started",
		"headless", c.opts.Headless,
		"wait_until", c.opts.WaitUntil,
		"viewport", fmt.Sprintf("%dx%d", c.opts.ViewportWidth, c.opts.ViewportHeight),
	)
	return nil
}

// Fetch implements Backend.
func (c *chromium) Fetch(ctx context.Context, u string) (*model.Page, error) {
	if c.tabCtx == nil {
		return nil, ErrNotStarted
	}

	// Actions run on a child of the tab context so cancelling one page
	// does not close the tab. The caller's deadline and cancellation are
	// carried over.
	runCtx, cancel := context.WithCancel(c.tabCtx)
	defer cancel()
	if dl, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, dl)
		defer cancelDeadline()
	}
	unlink := context.AfterFunc(ctx, cancel)
	defer unlink()

	logger := c.logger.With("url", u, "wait_until", c.opts.WaitUntil)
	start := time.Now()

	if err := chromedp.Run(runCtx, navigateAction(u, c.opts.WaitUntil)); err != nil {
		return nil, timeoutError(runCtx, u, fmt.Errorf("navigate %s: %w", u, err))
	}

	if c.opts.DismissCookies {
		res, err := dismissCookies(runCtx, evaluateBool, c.opts.CookieStrategies)
		if err != nil {
			logger.Debug("cookie banner dismissal reported errors", "error", err)
		}
		if res.Clicked {
			logger.Debug("dismissed cookie banner", "strategy", res.Strategy)
		}
	}

	var html, title, finalURL string
	err := chromedp.Run(runCtx,
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.Title(&title),
		chromedp.Location(&finalURL),
	)
	if err != nil {
		return nil, timeoutError(runCtx, u, fmt.Errorf("read DOM of %s: %w", u, err))
	}

	page := &model.Page{
		URL:       u,
		FinalURL:  finalURL,
		HTML:      html,
		Title:     strings.TrimSpace(title),
		FetchedAt: time.Now(),
	}
	page.TruncateHTML()

	logger.Debug("chromium render complete",
		"latency_ms", time.Since(start).Milliseconds(),
		"final_url", finalURL,
		"html_bytes", len(html),
	)
	return page, nil
}

// Close implements Backend.
func (c *chromium) Close() error {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.tabCtx = nil
	return nil
}

// evaluateBool runs script in the page and decodes a boolean result.
func evaluateBool(ctx context.Context, script string) (bool, error) {
	var ok bool
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, &ok)); err != nil {
		return false, err
	}
	return ok, nil
}

// navigateAction loads u and returns once the wait-until policy is met.
// chromedp.Navigate blocks until the load event, so the earlier
// DOMContentLoaded policy issues the navigation itself.
func navigateAction(u, policy string) chromedp.Action {
	switch policy {
	case WaitDOMContentLoaded:
		return navigateUntilDOMContentLoaded(u, chromedp.ListenTarget)
	case WaitNetworkIdle:
		return chromedp.Tasks{chromedp.Navigate(u), waitForNetworkIdle(networkIdleWindow)}
	default:
		return chromedp.Navigate(u)
	}
}

// navigateUntilDOMContentLoaded starts loading u and waits for the
// DOMContentLoaded event of the new document. listen registers a tab event
// listener; it is chromedp.ListenTarget outside tests.
func navigateUntilDOMContentLoaded(u string, listen func(context.Context, func(ev interface{}))) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		listenCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		fired := make(chan struct{}, 1)
		listen(listenCtx, func(ev interface{}) {
			if _, ok := ev.(*page.EventDomContentEventFired); ok {
				select {
				case fired <- struct{}{}:
				default:
				}
			}
		})

		_, _, errorText, err := page.Navigate(u).Do(ctx)
		if err != nil {
			return err
		}
		if errorText != "" {
			return fmt.Errorf("page load error %s", errorText)
		}

		select {
		case <-fired:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

// waitForNetworkIdle polls the number of loaded resources until it stays
// unchanged for window. The context deadline bounds the wait.
func waitForNetworkIdle(window time.Duration) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()

		last := -1
		stableSince := time.Now()
		for {
			var count int
			if err := chromedp.Evaluate(`performance.getEntriesByType('resource').length`, &count).Do(ctx); err != nil {
				return err
			}
			if count != last {
				last = count
				stableSince = time.Now()
			} else if time.Since(stableSince) >= window {
				return nil
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})
}
