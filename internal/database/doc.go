// Package database provides SQLite-based run history for docmirror.
//
// This package implements the HistoryDB, which stores:
//   - One row per finished crawl with its counters and manifest
//   - The pages each run saved, with output path and content hash
//
// Design decision: We use SQLite (via modernc.org/sqlite) instead of other
// databases because:
// 1. No external dependencies - the database is a single file
// 2. CGO-free implementation allows easy cross-compilation
// 3. WAL mode lets the history command read while a crawl writes
//
// The history is an audit trail only. The crawl frontier is never
// persisted, so every run starts from the seeds.
package database
