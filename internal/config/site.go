package config

import (
	"maps"
	"time"
)

// SiteConfig holds the settings of one documentation site in the config
// file. Zero values mean "not set"; pointer fields distinguish an explicit
// false or zero from an omitted key.
type SiteConfig struct {
	// RootURL is the scope root of the site.
	RootURL string `yaml:"root_url,omitempty"`

	// OutputDir is where the site's Markdown tree is written.
	OutputDir string `yaml:"output_dir,omitempty"`

	// Seeds are extra start URLs.
	Seeds []string `yaml:"seeds,omitempty"`

	// ContentSelector is the CSS selector tried first during extraction.
	ContentSelector *string `yaml:"content_selector,omitempty"`

	// KeepQuery keeps query strings in canonical URLs.
	KeepQuery *bool `yaml:"keep_query,omitempty"`

	// MaxPages caps the number of visited URLs. Zero means no cap.
	MaxPages *int `yaml:"max_pages,omitempty"`

	// Delay is the pause after each saved page, e.g. "500ms".
	Delay *time.Duration `yaml:"delay,omitempty"`

	// Timeout is the per-page load timeout, e.g. "30s".
	Timeout *time.Duration `yaml:"timeout,omitempty"`

	// UserAgent overrides the User-Agent.
	UserAgent string `yaml:"user_agent,omitempty"`

	// Headers are custom HTTP headers to include in requests to this site.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Cookie is an HTTP cookie to use when crawling this site.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// IgnorePatterns are URL path patterns to skip during crawling.
	// Patterns are matched against the URL path using glob syntax.
	IgnorePatterns []string `yaml:"ignore_patterns,omitempty"`

	// Backend names the render backend.
	Backend string `yaml:"backend,omitempty"`

	// WaitUntil is the chromium load condition.
	WaitUntil string `yaml:"wait_until,omitempty"`

	// StrictScope toggles segment boundary scope matching.
	StrictScope *bool `yaml:"strict_scope,omitempty"`

	// RespectRobots toggles the robots.txt policy.
	RespectRobots *bool `yaml:"respect_robots,omitempty"`
}

// File represents the structure of the .docmirror configuration file.
type File struct {
	// Sites maps site names to their configurations.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults contains settings applied to every site unless the site
	// overrides them.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// HasSite reports whether name is defined in the file.
func (cf *File) HasSite(name string) bool {
	_, ok := cf.Sites[name]
	return ok
}

// GetSiteConfig returns the configuration for a site name merged over the
// file defaults. An unknown name yields the defaults alone.
func (cf *File) GetSiteConfig(name string) SiteConfig {
	result := cf.Defaults
	result.Headers = maps.Clone(cf.Defaults.Headers)

	site, ok := cf.Sites[name]
	if !ok {
		return result
	}

	if site.RootURL != "" {
		result.RootURL = site.RootURL
	}
	if site.OutputDir != "" {
		result.OutputDir = site.OutputDir
	}
	if len(site.Seeds) > 0 {
		result.Seeds = site.Seeds
	}
	if site.ContentSelector != nil {
		result.ContentSelector = site.ContentSelector
	}
	if site.KeepQuery != nil {
		result.KeepQuery = site.KeepQuery
	}
	if site.MaxPages != nil {
		result.MaxPages = site.MaxPages
	}
	if site.Delay != nil {
		result.Delay = site.Delay
	}
	if site.Timeout != nil {
		result.Timeout = site.Timeout
	}
	if site.UserAgent != "" {
		result.UserAgent = site.UserAgent
	}
	if len(site.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string)
		}
		maps.Copy(result.Headers, site.Headers)
	}
	if site.Cookie != "" {
		result.Cookie = site.Cookie
	}
	if len(site.IgnorePatterns) > 0 {
		result.IgnorePatterns = site.IgnorePatterns
	}
	if site.Backend != "" {
		result.Backend = site.Backend
	}
	if site.WaitUntil != "" {
		result.WaitUntil = site.WaitUntil
	}
	if site.StrictScope != nil {
		result.StrictScope = site.StrictScope
	}
	if site.RespectRobots != nil {
		result.RespectRobots = site.RespectRobots
	}

	return result
}

// Apply copies every field set in sc onto c.
func (c *Config) Apply(sc SiteConfig) {
	if sc.RootURL != "" {
		c.RootURL = sc.RootURL
	}
	if sc.OutputDir != "" {
		c.OutputDir = sc.OutputDir
	}
	if len(sc.Seeds) > 0 {
		c.Seeds = sc.Seeds
	}
	if sc.ContentSelector != nil {
		c.ContentSelector = *sc.ContentSelector
	}
	if sc.KeepQuery != nil {
		c.KeepQuery = *sc.KeepQuery
	}
	if sc.MaxPages != nil {
		c.MaxPages = *sc.MaxPages
	}
	if sc.Delay != nil {
		c.Delay = *sc.Delay
	}
	if sc.Timeout != nil {
		c.Timeout = *sc.Timeout
	}
	if sc.UserAgent != "" {
		c.UserAgent = sc.UserAgent
	}
	if len(sc.Headers) > 0 {
		if c.Headers == nil {
			c.Headers = make(map[string]string)
		}
		maps.Copy(c.Headers, sc.Headers)
	}
	if sc.Cookie != "" {
		c.Cookie = sc.Cookie
	}
	if len(sc.IgnorePatterns) > 0 {
		c.IgnorePatterns = sc.IgnorePatterns
	}
	if sc.Backend != "" {
		c.Backend = sc.Backend
	}
	if sc.WaitUntil != "" {
		c.WaitUntil = sc.WaitUntil
	}
	if sc.StrictScope != nil {
		c.StrictScope = *sc.StrictScope
	}
	if sc.RespectRobots != nil {
		c.RespectRobots = *sc.RespectRobots
	}
}
