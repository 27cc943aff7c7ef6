// Package config provides configuration structures and utilities for
// docmirror. It defines the crawl, render and extraction options of a run,
// loads named sites from the .docmirror YAML file and locates XDG
// directories for the config file and the run history database.
//
// Values are layered: built-in defaults, then the file's defaults block,
// then the named site entry, then CLI flags the user set explicitly.
package config
