package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

// TestFinalize tests building the manifest from crawl stats.
func TestFinalize(t *testing.T) {
	t.Parallel()

	t.Run("copies counters and formats failures", func(t *testing.T) {
		t.Parallel()

		stats := CrawlStats{
			Discovered: 5,
			Downloaded: 3,
			Skipped:    2,
			Duration:   1234567 * time.Microsecond,
			Failures: []Failure{
				{Reason: ReasonTimeout, URL: "https://example.com/docs/a"},
				{Reason: "chromium", URL: "https://example.com/docs/b"},
			},
		}
		info := RunInfo{
			RootURL:   "https://example.com/docs",
			UserAgent: "TestAgent/1.0",
			Delay:     250 * time.Millisecond,
		}
		completed := time.Date(2025, 3, 4, 5, 6, 7, 890000000, time.FixedZone("JST", 9*60*60))

		m := Finalize(stats, info, completed)

		if m.RootURL != info.RootURL {
			t.Errorf("expected root %q, got %q", info.RootURL, m.RootURL)
		}
		if m.DiscoveredURLs != 5 || m.DownloadedPages != 3 || m.SkippedPages != 2 {
			t.Errorf("unexpected counters: %+v", m)
		}
		if m.DurationSeconds != 1.23 {
			t.Errorf("expected duration 1.23, got %v", m.DurationSeconds)
		}
		if m.DelaySeconds != 0.25 {
			t.Errorf("expected delay 0.25, got %v", m.DelaySeconds)
		}
		if m.GeneratedAt != "2025-03-03T20:06:07.890000+00:00" {
			t.Errorf("unexpected generated_at %q", m.GeneratedAt)
		}
		want := []string{"timeout: https://example.com/docs/a", "chromium: https://example.com/docs/b"}
		if len(m.Failures) != len(want) {
			t.Fatalf("expected %d failures, got %d", len(want), len(m.Failures))
		}
		for i := range want {
			if m.Failures[i] != want[i] {
				t.Errorf("failure %d: expected %q, got %q", i, want[i], m.Failures[i])
			}
		}
	})

	t.Run("failure list is a snapshot", func(t *testing.T) {
		t.Parallel()

		stats := CrawlStats{Failures: []Failure{{Reason: ReasonWrite, URL: "u"}}}
		m := Finalize(stats, RunInfo{}, time.Now())
		stats.Failures[0].URL = "changed"

		if m.Failures[0] != "write: u" {
			t.Errorf("manifest should not observe later mutation, got %q", m.Failures[0])
		}
	})

	t.Run("empty failures serialize as an empty list", func(t *testing.T) {
		t.Parallel()

		m := Finalize(CrawlStats{}, RunInfo{}, time.Now())
		data, err := json.Marshal(m)
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}
		if !strings.Contains(string(data), `"failures":[]`) {
			t.Errorf("expected empty failures array, got %s", data)
		}
	})
}

// TestCrawlStats tests the stats mutation helpers.
func TestCrawlStats(t *testing.T) {
	t.Parallel()

	var s CrawlStats
	s.RecordSaved(PageRecord{URL: "a", Path: "a/index.md"})
	s.RecordSkipped()
	s.RecordFailure(ReasonTimeout, "b")

	if s.Downloaded != 1 {
		t.Errorf("expected 1 downloaded, got %d", s.Downloaded)
	}
	if s.Skipped != 2 {
		t.Errorf("expected 2 skipped, got %d", s.Skipped)
	}
	if len(s.Failures) != 1 || s.Failures[0].String() != "timeout: b" {
		t.Errorf("unexpected failures: %v", s.Failures)
	}
	if len(s.Pages) != 1 {
		t.Errorf("expected 1 page record, got %d", len(s.Pages))
	}
}
