package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nao1215/docmirror/internal/model"
)

// Backend names.
const (
	// BackendChromium renders pages in headless Chrome.
	BackendChromium = "chromium"
	// BackendHTTP fetches pages with plain HTTP requests.
	BackendHTTP = "http"
)

// Wait-until policies for the chromium backend.
const (
	// WaitLoad waits for the load event.
	WaitLoad = "load"
	// WaitDOMContentLoaded waits for the DOMContentLoaded event only.
	WaitDOMContentLoaded = "domcontentloaded"
	// WaitNetworkIdle waits for the load event and then for resource
	// loading to settle.
	WaitNetworkIdle = "networkidle"
)

// Default viewport of the chromium backend.
const (
	DefaultViewportWidth  = 1400
	DefaultViewportHeight = 900
)

// networkIdleWindow is how long the resource count must stay unchanged
// for the network to count as idle.
const networkIdleWindow = 500 * time.Millisecond

var (
	// ErrUnsupportedBackend is returned by New for an unknown backend name.
	ErrUnsupportedBackend = errors.New("unsupported render backend")

	// ErrTimeout marks a page that did not load within its deadline.
	// It wraps context.DeadlineExceeded.
	ErrTimeout = fmt.Errorf("page load timed out: %w", context.DeadlineExceeded)

	// ErrNotStarted is returned by Fetch before Start succeeded.
	ErrNotStarted = errors.New("render backend not started")
)

// Backends lists the supported backend names.
func Backends() []string {
	return []string{BackendChromium, BackendHTTP}
}

// WaitPolicies lists the supported wait-until policies.
func WaitPolicies() []string {
	return []string{WaitLoad, WaitDOMContentLoaded, WaitNetworkIdle}
}

// Backend loads pages for the crawl loop.
type Backend interface {
	// Start prepares the backend, e.g. launches the browser.
	Start(ctx context.Context) error

	// Fetch loads u and returns the final HTML and title.
	// The deadline of ctx bounds the page load.
	Fetch(ctx context.Context, u string) (*model.Page, error)

	// Close releases everything Start acquired.
	Close() error

	// Name returns the backend name.
	Name() string
}

// Options configures a Backend.
type Options struct {
	// UserAgent is sent with every request.
	UserAgent string

	// Headless runs the browser without a window (chromium only).
	Headless bool

	// WaitUntil is one of WaitLoad, WaitDOMContentLoaded, WaitNetworkIdle
	// (chromium only). Empty means WaitNetworkIdle.
	WaitUntil string

	// Headers are extra request headers.
	Headers map[string]string

	// Cookie is sent as the Cookie header when non-empty.
	Cookie string

	// ViewportWidth and ViewportHeight size the browser window.
	ViewportWidth  int
	ViewportHeight int

	// DismissCookies enables cookie-banner dismissal (chromium only).
	DismissCookies bool

	// CookieStrategies overrides the default dismissal strategies.
	CookieStrategies []CookieStrategy

	// ExecPath is the browser binary; empty lets chromedp find one.
	ExecPath string

	// Client is the HTTP client of the http backend.
	Client *http.Client

	// Logger receives debug output. Nil means slog.Default().
	Logger *slog.Logger
}

// New creates the backend with the given name.
// Names are case-insensitive; "chrome" is accepted for chromium.
func New(name string, opts Options) (Backend, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.WaitUntil == "" {
		opts.WaitUntil = WaitNetworkIdle
	}
	if opts.ViewportWidth <= 0 {
		opts.ViewportWidth = DefaultViewportWidth
	}
	if opts.ViewportHeight <= 0 {
		opts.ViewportHeight = DefaultViewportHeight
	}
	if len(opts.CookieStrategies) == 0 {
		opts.CookieStrategies = DefaultCookieStrategies()
	}

	switch strings.ToLower(strings.TrimSpace(name)) {
	case BackendChromium, "chrome":
		if !validWait(opts.WaitUntil) {
			return nil, fmt.Errorf("invalid wait-until policy %q", opts.WaitUntil)
		}
		return newChromium(opts), nil
	case BackendHTTP:
		return newHTTP(opts), nil
	default:
		return nil, fmt.Errorf("%w: %q (supported: %s)", ErrUnsupportedBackend, name, strings.Join(Backends(), ", "))
	}
}

func validWait(w string) bool {
	for _, p := range WaitPolicies() {
		if w == p {
			return true
		}
	}
	return false
}

// timeoutError converts deadline errors into ErrTimeout for u.
func timeoutError(ctx context.Context, u string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrTimeout, u)
	}
	return err
}
