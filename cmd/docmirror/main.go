// Package main provides the entry point for the docmirror CLI.
//
// docmirror mirrors a documentation website into a local tree of Markdown
// files. It crawls breadth-first within the scope of a root URL, renders
// each page (headless Chromium by default), converts the main content to
// Markdown and writes manifest.json describing the run.
//
// Usage:
//
//	docmirror mirror https://example.com/docs
//	docmirror mirror site-a site-b --batch 2
//	docmirror history
//
// See --help for all available options.
package main

// main is the entry point for docmirror.
func main() {
	Execute()
}
