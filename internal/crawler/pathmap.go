package crawler

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
)

// ErrUnsafePath is returned when a URL would map outside the output directory.
var ErrUnsafePath = errors.New("output path escapes the output directory")

// unsafeQueryChars matches runs of characters not allowed in a file stem.
var unsafeQueryChars = regexp.MustCompile(`[^0-9A-Za-z_-]+`)

// PathMapper derives output file paths from canonical URLs.
// It is a pure function of the URL and its configuration; it performs no
// filesystem I/O.
type PathMapper struct {
	// basePath is the escaped root path without a trailing slash, or "/".
	basePath string

	// keepQuery splices the sanitized query into the file stem.
	keepQuery bool
}

// NewPathMapper creates a PathMapper for the given canonical root URL.
func NewPathMapper(root string, keepQuery bool) (*PathMapper, error) {
	u, err := url.Parse(root)
	if err != nil {
		return nil, fmt.Errorf("invalid root URL: %w", err)
	}
	return &PathMapper{
		basePath:  trimPath(u.EscapedPath()),
		keepQuery: keepQuery,
	}, nil
}

// ToPath maps a canonical URL to a slash-separated path relative to the
// output directory.
//
// The base path prefix is stripped, then:
//   - an empty remainder becomes "index.md"
//   - a remainder ending in "/" gets "index.md" appended
//   - a last segment without an extension becomes "{segment}/index.md"
//   - otherwise the final extension is replaced with ".md"
//
// With query retention on, a non-empty query is sanitized and spliced into
// the stem as "{stem}__{query}.md".
func (m *PathMapper) ToPath(u string) (string, error) {
	parsed, err := url.Parse(u)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", u, err)
	}

	rel := parsed.EscapedPath()
	if m.basePath != "/" && strings.HasPrefix(rel, m.basePath) {
		rel = rel[len(m.basePath):]
	}
	rel = strings.TrimLeft(rel, "/")

	switch {
	case rel == "":
		rel = "index.md"
	case strings.HasSuffix(rel, "/"):
		rel += "index.md"
	case extension(path.Base(rel)) == "":
		rel += "/index.md"
	default:
		rel = rel[:strings.LastIndex(rel, ".")] + ".md"
	}

	if m.keepQuery && parsed.RawQuery != "" {
		safe := unsafeQueryChars.ReplaceAllString(parsed.RawQuery, "_")
		dot := strings.LastIndex(rel, ".")
		rel = rel[:dot] + "__" + safe + rel[dot:]
	}

	for _, seg := range strings.Split(rel, "/") {
		if seg == ".." || seg == "." {
			return "", fmt.Errorf("%w: %s", ErrUnsafePath, u)
		}
	}

	return rel, nil
}

// extension returns the suffix of a path segment including the dot.
// Leading dots do not start an extension, so ".hidden" has none, and a
// trailing dot is not an extension either.
func extension(name string) string {
	trimmed := strings.TrimLeft(name, ".")
	i := strings.LastIndex(trimmed, ".")
	if i < 0 || i == len(trimmed)-1 {
		return ""
	}
	return trimmed[i:]
}
