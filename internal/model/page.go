package model

import (
	"time"
	"unicode/utf8"
)

// Page represents a rendered documentation page as returned by a render
// backend. It holds the final HTML after scripts have run (for browser
// backends) and the title reported by the document.
type Page struct {
	// URL is the canonical URL that was requested.
	URL string `json:"url"`

	// FinalURL is the URL after redirects, if the backend reports it.
	// Empty when unknown.
	FinalURL string `json:"final_url,omitempty"`

	// HTML is the final document markup.
	HTML string `json:"-"`

	// Title is the document title, trimmed.
	Title string `json:"title,omitempty"`

	// FetchedAt is when the backend finished reading the page.
	FetchedAt time.Time `json:"fetched_at"`
}

// MaxPageSize is the maximum size of page markup kept in memory.
// Larger documents are truncated to this size.
const MaxPageSize = 10 * 1024 * 1024 // 10 MB

// TruncateHTML ensures the markup doesn't exceed MaxPageSize. The cut
// backs off to a rune boundary so no partial UTF-8 sequence is kept.
func (p *Page) TruncateHTML() {
	if len(p.HTML) <= MaxPageSize {
		return
	}
	cut := MaxPageSize
	for cut > 0 && !utf8.RuneStart(p.HTML[cut]) {
		cut--
	}
	p.HTML = p.HTML[:cut]
}

// BaseURL returns the URL links on the page should be resolved against.
func (p *Page) BaseURL() string {
	if p.FinalURL != "" {
		return p.FinalURL
	}
	return p.URL
}
