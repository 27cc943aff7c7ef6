// Package extract turns rendered documentation HTML into Markdown.
//
// Extraction runs an ordered chain of strategies and takes the first one
// that yields content:
//
//  1. SelectorStrategy: the first element matching a CSS selector
//     (by default "article, main, [role='main']")
//  2. ReadabilityStrategy: heuristic main-content extraction
//  3. RawStrategy: the whole document body
//
// The chosen fragment is converted by ToMarkdown into ATX-heading
// Markdown. Renderer combines both steps and prefixes a "# title" line
// when the converted body does not start with one.
package extract
