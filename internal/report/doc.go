// Package report writes the artifacts that describe a crawl run.
//
// WriteManifest persists the end-of-run manifest.json next to the mirrored
// Markdown tree. The writers render run history kept by the database
// package:
//   - SimpleWriter: Human-readable text output for terminal display
//   - MarkdownWriter: Markdown output with tables and alerts for sharing
//   - JSONWriter: Structured JSON output for tool integration
//
// Design decision: We separate report writing from the data structures
// (which are in the model package) so new output formats can be added
// without touching the crawl engine.
package report
