// Package model defines the core data structures used throughout docmirror.
//
// This package contains the following main types:
//   - CrawlStats: Counters and failures accumulated by the crawl loop
//   - Failure: A tagged record of a URL that could not be fetched or saved
//   - PageRecord: A page that was written to the output tree
//   - Manifest: The immutable end-of-run snapshot written as manifest.json
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. The crawler, report, database and pipeline packages all need
// these types, so centralizing them prevents import cycles.
//
// The models are designed to be serializable to JSON for manifest output and
// database storage.
package model
