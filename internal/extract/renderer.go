package extract

import (
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"github.com/nao1215/docmirror/internal/model"
	"github.com/nao1215/markdown"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Renderer turns a rendered page into the Markdown document that is saved
// to disk. It implements crawler.Converter.
type Renderer struct {
	chain  *Chain
	logger *slog.Logger
}

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithSelector sets the CSS selector tried first. An empty selector skips
// straight to readability extraction.
func WithSelector(selector string) RendererOption {
	return func(r *Renderer) {
		r.chain = NewChain(DefaultStrategies(selector)...)
	}
}

// WithStrategies replaces the extraction chain.
func WithStrategies(strategies ...Strategy) RendererOption {
	return func(r *Renderer) {
		r.chain = NewChain(strategies...)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) RendererOption {
	return func(r *Renderer) {
		r.logger = logger
	}
}

// NewRenderer creates a Renderer using DefaultSelector.
func NewRenderer(opts ...RendererOption) *Renderer {
	r := &Renderer{
		chain:  NewChain(DefaultStrategies(DefaultSelector)...),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render extracts the content of page, converts it to Markdown and puts a
// "# {title}" heading on top unless the content already starts with one.
//
// The title is the readability title when the readability strategy
// produced the content, otherwise the page title, otherwise a title
// derived from the last URL path segment.
func (r *Renderer) Render(page *model.Page) (string, error) {
	res, err := r.chain.Extract(page.HTML)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", page.URL, err)
	}
	for _, a := range res.Attempts {
		r.logger.Debug("extraction strategy did not apply",
			"url", page.URL, "strategy", a.Strategy, "error", a.Err)
	}

	body, err := ToMarkdown(res.HTML)
	if err != nil {
		return "", fmt.Errorf("convert %s: %w", page.URL, err)
	}

	title := res.Title
	if res.Strategy != "readability" || title == "" {
		title = strings.TrimSpace(page.Title)
	}
	if title == "" {
		title = SlugTitle(page.BaseURL())
	}

	doc := Compose(title, body)
	if doc == "" {
		return "", fmt.Errorf("%s: %w", page.URL, ErrEmptyContent)
	}
	return doc, nil
}

// Compose joins a title and a Markdown body into one document ending
// with a newline. The title heading is omitted when body already starts
// with a level one heading. Compose returns "" when both are empty.
func Compose(title, body string) string {
	title = strings.TrimSpace(title)
	body = strings.TrimSpace(body)
	if title == "" && body == "" {
		return ""
	}

	md := markdown.NewMarkdown(io.Discard)
	if title != "" && !strings.HasPrefix(body, "# ") {
		md.H1(title)
		if body != "" {
			md.PlainText("")
		}
	}
	if body != "" {
		md.PlainText(body)
	}
	return strings.ReplaceAll(md.String(), "\r\n", "\n") + "\n"
}

// SlugTitle derives a title from the last path segment of u, so
// ".../getting-started" becomes "Getting Started". It returns "" when the
// path has no segment.
func SlugTitle(u string) string {
	parsed, err := url.Parse(u)
	if err != nil {
		return ""
	}
	segment := path.Base(strings.TrimRight(parsed.Path, "/"))
	if segment == "." || segment == "/" || segment == "" {
		return ""
	}
	if ext := path.Ext(segment); ext != "" && ext != segment {
		segment = strings.TrimSuffix(segment, ext)
	}
	words := strings.FieldsFunc(segment, func(r rune) bool {
		return r == '-' || r == '_' || r == '.' || r == ' '
	})
	if len(words) == 0 {
		return ""
	}
	return cases.Title(language.English).String(strings.Join(words, " "))
}
