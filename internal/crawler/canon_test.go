package crawler

import (
	"errors"
	"testing"
)

// TestNormalizeSeed tests canonicalization of the configured root URL.
func TestNormalizeSeed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "missing scheme defaults to https", raw: "example.com/docs/", want: "https://example.com/docs"},
		{name: "missing path becomes root", raw: "https://example.com", want: "https://example.com/"},
		{name: "root path is kept", raw: "https://example.com/", want: "https://example.com/"},
		{name: "query and fragment are dropped", raw: "https://example.com/docs/?q=1#top", want: "https://example.com/docs"},
		{name: "host is lowercased", raw: "https://Example.COM/Docs", want: "https://example.com/Docs"},
		{name: "repeated slashes collapse", raw: "https://example.com//platform//forge/", want: "https://example.com/platform/forge"},
		{name: "http scheme is preserved", raw: "http://localhost:8080/docs", want: "http://localhost:8080/docs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := NormalizeSeed(tt.raw)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("NormalizeSeed(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}

	t.Run("missing host is an error", func(t *testing.T) {
		t.Parallel()

		_, err := NormalizeSeed("https:///docs")
		if !errors.Is(err, ErrNoHost) {
			t.Errorf("expected ErrNoHost, got %v", err)
		}
	})
}

// TestCanonicalizerNormalize tests link canonicalization.
func TestCanonicalizerNormalize(t *testing.T) {
	t.Parallel()

	const root = "https://example.com/docs"

	tests := []struct {
		name      string
		raw       string
		base      string
		keepQuery bool
		want      string
	}{
		{name: "absolute path", raw: "/docs/guide", base: root, want: "https://example.com/docs/guide"},
		{name: "trailing slash stripped", raw: "/docs/guide/", base: root, want: "https://example.com/docs/guide"},
		{name: "fragment stripped", raw: "/docs/guide#install", base: root, want: "https://example.com/docs/guide"},
		{name: "query stripped by default", raw: "/docs/x?v=2", base: root, want: "https://example.com/docs/x"},
		{name: "query kept when enabled", raw: "/docs/x?v=2&lang=en", base: root, keepQuery: true, want: "https://example.com/docs/x?v=2&lang=en"},
		{name: "relative to page", raw: "setup", base: "https://example.com/docs/guide/intro", want: "https://example.com/docs/guide/setup"},
		{name: "dot segments resolved", raw: "../api", base: "https://example.com/docs/guide/intro", want: "https://example.com/docs/api"},
		{name: "empty base resolves under root", raw: "guide", base: "", want: "https://example.com/docs/guide"},
		{name: "host lowercased", raw: "https://EXAMPLE.com/docs/A", base: root, want: "https://example.com/docs/A"},
		{name: "repeated slashes collapse", raw: "https://example.com//docs///guide//", base: root, want: "https://example.com/docs/guide"},
		{name: "scheme-relative link", raw: "//other.com/x", base: root, want: "https://other.com/x"},
		{name: "bare host gets root path", raw: "https://example.com", base: root, want: "https://example.com/"},
		{name: "percent-encoding preserved", raw: "/docs/a%2Fb", base: root, want: "https://example.com/docs/a%2Fb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c, err := NewCanonicalizer(root, tt.keepQuery)
			if err != nil {
				t.Fatalf("failed to create canonicalizer: %v", err)
			}
			got, ok := c.Normalize(tt.raw, tt.base)
			if !ok {
				t.Fatalf("Normalize(%q) unexpectedly failed", tt.raw)
			}
			if got != tt.want {
				t.Errorf("Normalize(%q, %q) = %q, want %q", tt.raw, tt.base, got, tt.want)
			}
		})
	}

	t.Run("malformed input is rejected", func(t *testing.T) {
		t.Parallel()

		c, err := NewCanonicalizer(root, false)
		if err != nil {
			t.Fatalf("failed to create canonicalizer: %v", err)
		}
		for _, raw := range []string{"%zz", "http://[::1"} {
			if got, ok := c.Normalize(raw, root); ok {
				t.Errorf("Normalize(%q) = %q, expected failure", raw, got)
			}
		}
	})
}

// TestCanonicalizerIdempotent tests that canonical URLs are fixed points.
func TestCanonicalizerIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"/docs/guide/",
		"https://Example.com//docs//a/b/?x=1#f",
		"../up/one/",
		"/docs/a%20b/c%2Fd",
		"https://example.com",
		"?only=query",
		"/docs/%E3%83%86%E3%82%B9%E3%83%88",
	}

	for _, keep := range []bool{false, true} {
		c, err := NewCanonicalizer("https://example.com/docs", keep)
		if err != nil {
			t.Fatalf("failed to create canonicalizer: %v", err)
		}
		for _, in := range inputs {
			once, ok := c.Normalize(in, "https://example.com/docs/guide/page")
			if !ok {
				t.Fatalf("Normalize(%q) failed", in)
			}
			twice, ok := c.Normalize(once, "https://example.com/docs/other")
			if !ok {
				t.Fatalf("Normalize(%q) failed on second pass", once)
			}
			if once != twice {
				t.Errorf("keepQuery=%v: canon(%q)=%q but canon(canon)=%q", keep, in, once, twice)
			}
		}
	}
}
