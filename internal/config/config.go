package config

import (
	"maps"
	"path/filepath"
	"slices"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/docmirror/internal/extract"
	"github.com/nao1215/docmirror/internal/render"
)

// Default configuration values.
const (
	// DefaultRootURL is the documentation tree mirrored when nothing else
	// is given.
	DefaultRootURL = "https://developer.atlassian.com/platform/forge/"

	// DefaultOutputDir is where Markdown files and manifest.json are written.
	DefaultOutputDir = "mirror"

	// DefaultDelay is the pause after each saved page. It keeps the crawl
	// polite towards documentation hosts without making it slow.
	DefaultDelay = 250 * time.Millisecond

	// DefaultTimeout bounds a single page load including the wait policy.
	DefaultTimeout = 20 * time.Second

	// DefaultUserAgent identifies docmirror in requests and robots.txt.
	DefaultUserAgent = "DocMirror/1.0 (+https://github.com/nao1215/docmirror)"

	// DefaultBatchSize runs one site at a time.
	DefaultBatchSize = 1

	// AppName is the application name used for XDG directory paths.
	AppName = "docmirror"
)

// Config holds all configuration options for a docmirror run.
// It is populated from built-in defaults, the config file and CLI flags,
// and passed through the application rather than kept in global state.
//
// Design decision: We use a single flat struct instead of nested structs.
// The number of options is manageable, and nesting would add complexity
// without significant benefit.
type Config struct {
	// RootURL is the scope root. It is canonicalized before crawling.
	RootURL string

	// Seeds are extra start URLs. Seeds outside the root scope are
	// dropped when the crawl starts.
	Seeds []string

	// OutputDir is the directory the Markdown tree is written to.
	OutputDir string

	// Delay is the pause after each saved page. Negative values are
	// floored to zero by Validate.
	Delay time.Duration

	// MaxPages caps the number of URLs popped from the frontier.
	// Zero means no cap.
	MaxPages int

	// UserAgent is sent by the render backend and used for robots.txt.
	UserAgent string

	// RespectRobots enables the robots.txt policy.
	RespectRobots bool

	// Timeout is the per-page load timeout.
	Timeout time.Duration

	// ContentSelector is the CSS selector tried first during extraction.
	// Empty skips straight to readability extraction.
	ContentSelector string

	// Backend names the render backend ("chromium" or "http").
	Backend string

	// Headless runs the browser without a window.
	Headless bool

	// WaitUntil is the load condition for the chromium backend.
	WaitUntil string

	// KeepQuery keeps query strings in canonical URLs and file names.
	KeepQuery bool

	// StrictScope requires paths to continue the root path at a segment
	// boundary. When false a plain prefix match is used.
	StrictScope bool

	// IgnorePatterns are glob patterns on the URL path that are treated
	// as out of scope.
	IgnorePatterns []string

	// Headers are extra request headers.
	Headers map[string]string

	// Cookie is sent with every page request.
	Cookie string

	// DismissCookies enables cookie banner dismissal in the browser.
	DismissCookies bool

	// Verbose enables detailed log output using slog.LevelDebug.
	Verbose bool

	// BatchSize is the number of sites mirrored concurrently.
	BatchSize int

	// ConfigFilePath is the path to the configuration file.
	// If empty, the search order of FindConfigFile applies.
	ConfigFilePath string

	// SiteConfigs holds site configurations loaded from the config file.
	SiteConfigs *File

	// DBDir is the directory of the run history database.
	// Defaults to the XDG data directory.
	DBDir string

	// SaveHistory stores finished runs in the history database.
	SaveHistory bool
}

// NewConfig creates a new Config with default values.
//
// Design decision: We use a constructor function instead of relying on
// zero values because many defaults are non-zero or true. This also
// serves as documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		RootURL:         DefaultRootURL,
		OutputDir:       DefaultOutputDir,
		Delay:           DefaultDelay,
		UserAgent:       DefaultUserAgent,
		RespectRobots:   true,
		Timeout:         DefaultTimeout,
		ContentSelector: extract.DefaultSelector,
		Backend:         render.BackendChromium,
		Headless:        true,
		WaitUntil:       render.WaitNetworkIdle,
		StrictScope:     true,
		DismissCookies:  true,
		BatchSize:       DefaultBatchSize,
		DBDir:           XDGDataDir(),
		SaveHistory:     true,
	}
}

// Clone returns a deep copy of c, so per-site overrides in a batch do not
// leak between sites.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Seeds = slices.Clone(c.Seeds)
	clone.IgnorePatterns = slices.Clone(c.IgnorePatterns)
	clone.Headers = maps.Clone(c.Headers)
	return &clone
}

// XDGDataDir returns the XDG data directory for docmirror.
// On Linux: ~/.local/share/docmirror
// On macOS: ~/Library/Application Support/docmirror
// On Windows: %LOCALAPPDATA%\docmirror
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for docmirror.
// On Linux: ~/.config/docmirror
// On macOS: ~/Library/Application Support/docmirror
// On Windows: %APPDATA%\docmirror
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid and returns the first
// problem found. A negative delay is not an error; it is floored to zero.
//
// Unknown render backends are reported by render.New when the run starts.
func (c *Config) Validate() error {
	if c.RootURL == "" {
		return ErrNoRootURL
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if !slices.Contains(render.WaitPolicies(), c.WaitUntil) {
		return ErrInvalidWaitUntil
	}

	if c.MaxPages < 0 {
		return ErrInvalidMaxPages
	}

	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	if c.Delay < 0 {
		c.Delay = 0
	}

	return nil
}
