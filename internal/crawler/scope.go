package crawler

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// Scope decides whether a canonical URL is eligible to be fetched.
// A URL is in scope when its host equals the root host and its path lies
// under the root's base path. Scope is read-only after construction.
type Scope struct {
	// host is the root host including any port.
	host string

	// basePath is the escaped root path without a trailing slash, or "/".
	basePath string

	// strict requires the path to continue with "/" after basePath, so
	// a root of /docs does not admit /docs2.
	strict bool

	// ignorePatterns are URL path globs that are never in scope.
	ignorePatterns []string
}

// ScopeOption configures a Scope.
type ScopeOption func(*Scope)

// WithStrictBoundary toggles path-segment boundary matching.
// When disabled the base path is matched as a plain string prefix.
func WithStrictBoundary(strict bool) ScopeOption {
	return func(s *Scope) {
		s.strict = strict
	}
}

// WithIgnorePatterns sets URL path patterns that are treated as out of scope.
// Patterns use glob syntax (e.g., "/admin/*", "*.pdf", "/changelog*").
func WithIgnorePatterns(patterns []string) ScopeOption {
	return func(s *Scope) {
		s.ignorePatterns = patterns
	}
}

// NewScope creates a Scope for the given canonical root URL.
// Strict boundary matching is enabled by default.
func NewScope(root string, opts ...ScopeOption) (*Scope, error) {
	u, err := url.Parse(root)
	if err != nil {
		return nil, fmt.Errorf("invalid root URL: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrNoHost, root)
	}

	s := &Scope{
		host:     u.Host,
		basePath: trimPath(u.EscapedPath()),
		strict:   true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// InScope reports whether u may be crawled.
// Unparseable URLs are never in scope.
func (s *Scope) InScope(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	if parsed.Host != s.host {
		return false
	}

	p := trimPath(parsed.EscapedPath())
	if !s.underBase(p) {
		return false
	}

	match := parsed.Path
	if match == "" {
		match = "/"
	}
	for _, pattern := range s.ignorePatterns {
		if matchPattern(pattern, match) {
			return false
		}
	}
	return true
}

// underBase reports whether the trimmed path p lies under the base path.
func (s *Scope) underBase(p string) bool {
	if s.basePath == "/" {
		return true
	}
	if !strings.HasPrefix(p, s.basePath) {
		return false
	}
	if !s.strict {
		return true
	}
	rest := p[len(s.basePath):]
	return rest == "" || strings.HasPrefix(rest, "/")
}

// trimPath strips a trailing slash and maps the empty path to "/".
func trimPath(p string) string {
	p = strings.TrimRight(p, "/")
	if p == "" {
		return "/"
	}
	return p
}

// matchPattern checks if a path matches a glob pattern.
// Patterns can use:
//   - * to match any sequence of non-separator characters
//   - ? to match any single character
//   - a trailing "/*" to match everything below a directory
//
// Examples:
//   - "/admin/*" matches "/admin/dashboard" and "/admin/users/list"
//   - "*.pdf" matches "/docs/file.pdf"
//   - "/api/v?" matches "/api/v1", "/api/v2"
func matchPattern(pattern, path string) bool {
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if strings.HasPrefix(path, prefix+"/") || path == prefix {
			return true
		}
	}

	if strings.HasPrefix(pattern, "*.") {
		if strings.HasSuffix(path, strings.TrimPrefix(pattern, "*")) {
			return true
		}
	}

	matched, err := filepath.Match(pattern, path)
	if err != nil {
		return false
	}
	if matched {
		return true
	}

	// Patterns without a slash also match the last path segment.
	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		matched, err := filepath.Match(pattern, filepath.Base(path))
		if err == nil && matched {
			return true
		}
	}

	return false
}
