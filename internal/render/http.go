package render

import (
	"bufio"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/net/html/charset"
	"golang.org/x/net/publicsuffix"

	"github.com/nao1215/docmirror/internal/crawler"
	"github.com/nao1215/docmirror/internal/model"
)

// httpBackend fetches pages with plain GET requests. Scripts never run,
// so only server-rendered content is captured.
type httpBackend struct {
	opts   Options
	client *http.Client
	logger *slog.Logger
}

func newHTTP(opts Options) *httpBackend {
	return &httpBackend{opts: opts, logger: opts.Logger}
}

// Name implements Backend.
func (h *httpBackend) Name() string {
	return BackendHTTP
}

// Start implements Backend. The client gets a cookie jar unless it already
// has one, so cookies set by the site carry over to later pages the way
// they do in a browser. The caller's client is copied, not modified.
func (h *httpBackend) Start(context.Context) error {
	client := &http.Client{}
	if h.opts.Client != nil {
		c := *h.opts.Client
		client = &c
	}
	if client.Jar == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return fmt.Errorf("create cookie jar: %w", err)
		}
		client.Jar = jar
	}
	h.client = client
	return nil
}

// Fetch implements Backend.
func (h *httpBackend) Fetch(ctx context.Context, u string) (*model.Page, error) {
	if h.client == nil {
		return nil, ErrNotStarted
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if h.opts.UserAgent != "" {
		req.Header.Set("User-Agent", h.opts.UserAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	// Setting Accept-Encoding turns off the transport's transparent gzip,
	// so decodeBody handles every encoding offered here.
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	for k, v := range h.opts.Headers {
		req.Header.Set(k, v)
	}
	if h.opts.Cookie != "" {
		req.Header.Set("Cookie", h.opts.Cookie)
	}

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, timeoutError(ctx, u, fmt.Errorf("GET %s: %w", u, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("GET %s: status %d", u, resp.StatusCode)
	}

	decoded, err := decodeBody(resp)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", u, err)
	}
	defer decoded.Close()

	// Read one byte past the limit so oversized pages are detectable;
	// TruncateHTML cuts them back.
	body, err := charset.NewReader(io.LimitReader(decoded, model.MaxPageSize+1), resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", u, err)
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, timeoutError(ctx, u, fmt.Errorf("read %s: %w", u, err))
	}

	page := &model.Page{
		URL:       u,
		FinalURL:  resp.Request.URL.String(),
		HTML:      string(raw),
		Title:     documentTitle(resp.Request.URL.String(), string(raw)),
		FetchedAt: time.Now(),
	}
	page.TruncateHTML()

	h.logger.Debug("http fetch complete",
		"url", u,
		"status", resp.StatusCode,
		"latency_ms", time.Since(start).Milliseconds(),
		"html_bytes", len(raw),
	)
	return page, nil
}

// Close implements Backend.
func (h *httpBackend) Close() error {
	if h.client != nil {
		h.client.CloseIdleConnections()
	}
	return nil
}

// decodeBody undoes the Content-Encoding of resp. Closing the returned
// reader does not close resp.Body.
func decodeBody(resp *http.Response) (io.ReadCloser, error) {
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		return gz, nil
	case "br":
		return io.NopCloser(brotli.NewReader(resp.Body)), nil
	case "deflate":
		return newDeflateReader(resp.Body)
	default:
		return io.NopCloser(resp.Body), nil
	}
}

// newDeflateReader reads an HTTP deflate body. The coding is a zlib
// stream, but some servers send raw DEFLATE, so the zlib header is
// checked first.
func newDeflateReader(r io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReader(r)
	header, err := br.Peek(2)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("deflate: %w", err)
	}
	if isZlibHeader(header) {
		zr, err := zlib.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("deflate: %w", err)
		}
		return zr, nil
	}
	return flate.NewReader(br), nil
}

// isZlibHeader reports whether h starts a zlib stream (RFC 1950): the
// compression method is 8 and the two header bytes are a multiple of 31.
func isZlibHeader(h []byte) bool {
	if len(h) < 2 {
		return false
	}
	return h[0]&0x0f == 8 && (uint16(h[0])<<8|uint16(h[1]))%31 == 0
}

// documentTitle returns the title of the document at u, using the same
// parser the crawl loop harvests links with.
func documentTitle(u, markup string) string {
	parser, err := crawler.NewParser(u)
	if err != nil {
		return ""
	}
	result, err := parser.Parse(strings.NewReader(markup))
	if err != nil {
		return ""
	}
	return result.Title
}
