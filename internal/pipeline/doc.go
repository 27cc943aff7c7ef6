// Package pipeline runs a mirror of one documentation site as a sequence
// of steps, and several sites concurrently.
//
// The default pipeline loads robots.txt, runs the crawl loop through a
// render backend, writes manifest.json and stores the run in the history
// database. Each step receives the Run filled in by earlier steps.
//
// Design decision: We use a pipeline pattern instead of direct function calls
// because:
// 1. Each step has its own failure policy (robots and history degrade,
// crawl start failures are fatal)
// 2. It provides consistent error handling and logging across steps
// 3. Steps that record the outcome still run after cancellation
//
// Batch processing uses errgroup with a concurrency limit. The crawl of a
// single site is never parallelized.
package pipeline
