package crawler

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrNoHost is returned by NormalizeSeed when the root URL has no host.
var ErrNoHost = errors.New("root URL has no host")

// NormalizeSeed canonicalizes the configured root URL.
// A missing scheme defaults to https, a missing path becomes "/", a trailing
// slash is stripped (except for the bare "/"), and query and fragment are
// always dropped because the root never carries them.
func NormalizeSeed(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw != "" && !strings.Contains(raw, "://") && !strings.HasPrefix(raw, "//") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid root URL %q: %w", raw, err)
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrNoHost, raw)
	}

	u.Host = strings.ToLower(u.Host)
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	setEscapedPath(u, cleanPath(u.EscapedPath()))

	return u.String(), nil
}

// Canonicalizer maps discovered links to canonical URLs.
// It is read-only after construction and safe to share.
type Canonicalizer struct {
	// root is the canonical root URL; relative links without a usable
	// base resolve against it.
	root *url.URL

	// keepQuery retains query strings instead of stripping them.
	keepQuery bool
}

// NewCanonicalizer creates a Canonicalizer for the given canonical root.
func NewCanonicalizer(root string, keepQuery bool) (*Canonicalizer, error) {
	u, err := url.Parse(root)
	if err != nil {
		return nil, fmt.Errorf("invalid root URL: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrNoHost, root)
	}
	return &Canonicalizer{root: u, keepQuery: keepQuery}, nil
}

// Normalize resolves raw against base and returns its canonical form.
// An empty base means the root URL with a trailing slash, so relative
// seeds resolve beneath the root. The second return value is false only
// when raw or base cannot be parsed; callers treat that as "not a
// followable link".
func (c *Canonicalizer) Normalize(raw, base string) (string, bool) {
	baseURL := c.rootDir()
	if base != "" {
		b, err := url.Parse(base)
		if err != nil {
			return "", false
		}
		baseURL = b
	}

	ref, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}

	u := baseURL.ResolveReference(ref)
	if u.Scheme == "" {
		u.Scheme = c.root.Scheme
	}
	if u.Host == "" && u.Opaque == "" {
		u.Host = c.root.Host
	}
	u.Host = strings.ToLower(u.Host)

	u.Fragment = ""
	u.RawFragment = ""
	if !c.keepQuery {
		u.RawQuery = ""
	}
	u.ForceQuery = false

	if u.Opaque == "" {
		setEscapedPath(u, cleanPath(u.EscapedPath()))
	}

	return u.String(), true
}

// rootDir returns the root URL with a trailing slash on its path.
func (c *Canonicalizer) rootDir() *url.URL {
	u := *c.root
	if !strings.HasSuffix(u.Path, "/") {
		setEscapedPath(&u, u.EscapedPath()+"/")
	}
	return &u
}

// cleanPath collapses repeated slashes, defaults an empty path to "/" and
// strips a trailing slash from every path other than "/".
func cleanPath(p string) string {
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if p != "/" {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

// setEscapedPath sets both Path and RawPath from an escaped path so that
// String() reproduces the escaping exactly. Keeping the escaped form makes
// canonicalization idempotent for percent-encoded paths.
func setEscapedPath(u *url.URL, escaped string) {
	unescaped, err := url.PathUnescape(escaped)
	if err != nil {
		u.Path = escaped
		u.RawPath = ""
		return
	}
	u.Path = unescaped
	u.RawPath = escaped
}
