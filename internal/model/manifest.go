package model

import (
	"math"
	"time"
)

// GeneratedAtLayout renders the completion timestamp as ISO-8601 with
// microseconds and a numeric UTC offset, e.g. 2025-01-02T03:04:05.000000+00:00.
const GeneratedAtLayout = "2006-01-02T15:04:05.000000-07:00"

// RunInfo is the run configuration copied into the manifest.
type RunInfo struct {
	// RootURL is the canonical root URL of the crawl.
	RootURL string

	// UserAgent is the User-Agent the render backend presented.
	UserAgent string

	// Delay is the inter-request delay after each saved page.
	Delay time.Duration
}

// Manifest is the end-of-run summary written to manifest.json.
// The JSON field names are part of the output format and must not change.
type Manifest struct {
	RootURL         string   `json:"root_url"`
	GeneratedAt     string   `json:"generated_at"`
	DiscoveredURLs  int      `json:"discovered_urls"`
	DownloadedPages int      `json:"downloaded_pages"`
	SkippedPages    int      `json:"skipped_pages"`
	DurationSeconds float64  `json:"duration_seconds"`
	UserAgent       string   `json:"user_agent"`
	DelaySeconds    float64  `json:"delay_seconds"`
	Failures        []string `json:"failures"`
}

// Finalize builds the Manifest from the accumulated stats.
// It is a pure aggregation: counters are copied, the duration is rounded to
// two decimals, the failure list is snapshotted and completedAt is fixed as
// the generation time in UTC.
func Finalize(stats CrawlStats, info RunInfo, completedAt time.Time) Manifest {
	failures := make([]string, 0, len(stats.Failures))
	for _, f := range stats.Failures {
		failures = append(failures, f.String())
	}

	return Manifest{
		RootURL:         info.RootURL,
		GeneratedAt:     completedAt.UTC().Format(GeneratedAtLayout),
		DiscoveredURLs:  stats.Discovered,
		DownloadedPages: stats.Downloaded,
		SkippedPages:    stats.Skipped,
		DurationSeconds: roundSeconds(stats.Duration),
		UserAgent:       info.UserAgent,
		DelaySeconds:    info.Delay.Seconds(),
		Failures:        failures,
	}
}

// roundSeconds rounds a duration to seconds with two decimals.
func roundSeconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*100) / 100
}
