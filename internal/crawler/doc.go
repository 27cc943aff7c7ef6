// Package crawler implements the crawl engine of docmirror.
//
// # Architecture
//
// The engine is built from small pieces that share one canonical URL form:
//
//   - Canonicalizer: maps raw or relative links to canonical absolute URLs
//   - Scope: decides whether a canonical URL lies under the root
//   - Frontier: FIFO queue with enqueued and visited sets
//   - PathMapper: maps a canonical URL to a Markdown file path
//   - Parser: harvests links from rendered HTML in document order
//   - Spider: the crawl loop that ties them together
//
// Rendering a page and turning it into Markdown are delegated to the
// Fetcher and Converter interfaces, implemented by the render and extract
// packages.
//
// # Guarantees
//
// Every canonical URL is queued at most once and popped at most once per
// run. A URL enters the visited set the instant it is popped, before any
// policy check or fetch, so rejected and failed URLs are never retried.
// Traversal is breadth-first.
//
// # Usage
//
//	spider, err := crawler.NewSpider(root, fetcher, converter,
//		crawler.WithOutputDir("mirror"),
//		crawler.WithDelay(250*time.Millisecond),
//	)
//	st := crawler.NewState(spider.SeedURLs(root, nil))
//	err = spider.Crawl(ctx, st)
package crawler
