// Package robots loads and evaluates the robots.txt ruleset of the
// mirrored site.
//
// The ruleset is fetched once per run from {scheme}://{host}/robots.txt.
// Loading is best effort: callers that get an error fall back to
// Disabled, which allows every URL, and log a warning instead of aborting
// the crawl.
package robots
