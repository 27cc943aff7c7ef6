package model

import (
	"time"
)

// FailureReason tags why a URL ended in a recorded failure.
// Out-of-scope and robots-blocked URLs are skipped silently and never
// produce a Failure.
type FailureReason string

const (
	// ReasonTimeout means the render backend exceeded the per-page timeout.
	ReasonTimeout FailureReason = "timeout"

	// ReasonConvert means the fetched HTML could not be turned into Markdown.
	ReasonConvert FailureReason = "convert"

	// ReasonWrite means the Markdown file could not be written to disk.
	ReasonWrite FailureReason = "write"
)

// Failure is a single tagged failure record.
// Fetch errors other than timeouts are tagged with the backend name
// (for example "chromium" or "http").
type Failure struct {
	// Reason is the failure tag.
	Reason FailureReason `json:"reason"`

	// URL is the canonical URL that failed.
	URL string `json:"url"`
}

// String formats the failure the way the manifest lists it: "{tag}: {url}".
func (f Failure) String() string {
	return string(f.Reason) + ": " + f.URL
}

// PageRecord describes a page that was saved to the output tree.
type PageRecord struct {
	// URL is the canonical URL of the page.
	URL string `json:"url"`

	// Path is the output path relative to the output directory,
	// always slash-separated.
	Path string `json:"path"`

	// Title is the title used for the leading H1, if any.
	Title string `json:"title,omitempty"`

	// Hash is the SHA3-256 hex digest of the written Markdown.
	Hash string `json:"hash"`

	// Bytes is the size of the written Markdown.
	Bytes int `json:"bytes"`
}

// CrawlStats holds the run-level accounting of a crawl.
// It is mutated only by the crawl loop and read once at the end of the
// run to build the Manifest.
type CrawlStats struct {
	// Discovered is the number of distinct canonical URLs ever enqueued.
	Discovered int

	// Downloaded is the number of pages saved to disk.
	Downloaded int

	// Skipped counts every popped URL that did not end in a saved page.
	Skipped int

	// Duration is the wall-clock time of the run.
	Duration time.Duration

	// Failures lists tagged failures in the order they happened.
	Failures []Failure

	// Pages lists saved pages in the order they were written.
	Pages []PageRecord
}

// RecordSaved registers a successfully written page.
func (s *CrawlStats) RecordSaved(page PageRecord) {
	s.Downloaded++
	s.Pages = append(s.Pages, page)
}

// RecordSkipped registers a silent skip (scope or robots rejection).
func (s *CrawlStats) RecordSkipped() {
	s.Skipped++
}

// RecordFailure registers a skip that also produces a failure record.
func (s *CrawlStats) RecordFailure(reason FailureReason, url string) {
	s.Skipped++
	s.Failures = append(s.Failures, Failure{Reason: reason, URL: url})
}
