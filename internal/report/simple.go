package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/docmirror/internal/model"
)

// SimpleWriter outputs run history as plain text for terminal display.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors because it works in every terminal and is easy to pipe
// into grep or a file.
type SimpleWriter struct {
	baseWriter

	// verbose lists every saved page of a run, not only failures.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables the page listing in single run output.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// WriteRun outputs a single run in human-readable format.
func (w *SimpleWriter) WriteRun(run *model.RunRecord) (int, error) {
	var sb strings.Builder
	m := run.Manifest

	writeRule(&sb, "=")
	// Runs that were not stored in the history have no ID.
	if run.ID > 0 {
		fmt.Fprintf(&sb, "RUN #%d\n", run.ID)
	} else {
		sb.WriteString("RUN\n")
	}
	writeRule(&sb, "=")
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "Root URL:    %s\n", m.RootURL)
	fmt.Fprintf(&sb, "Output:      %s\n", run.OutputDir)
	fmt.Fprintf(&sb, "Generated:   %s\n", m.GeneratedAt)
	fmt.Fprintf(&sb, "Duration:    %.2fs\n", m.DurationSeconds)
	fmt.Fprintf(&sb, "Discovered:  %d\n", m.DiscoveredURLs)
	fmt.Fprintf(&sb, "Downloaded:  %d\n", m.DownloadedPages)
	fmt.Fprintf(&sb, "Skipped:     %d\n", m.SkippedPages)
	sb.WriteString("\n")

	if len(m.Failures) > 0 {
		writeRule(&sb, "-")
		sb.WriteString("FAILURES\n")
		writeRule(&sb, "-")
		for _, f := range m.Failures {
			fmt.Fprintf(&sb, "  [x] %s\n", f)
		}
		sb.WriteString("\n")
	}

	if w.verbose && len(run.Pages) > 0 {
		writeRule(&sb, "-")
		sb.WriteString("PAGES\n")
		writeRule(&sb, "-")
		for _, p := range run.Pages {
			fmt.Fprintf(&sb, "  [+] %s  %s  %s\n", shortHash(p.Hash), p.Path, p.URL)
		}
		sb.WriteString("\n")
	}

	return w.output.Write([]byte(sb.String()))
}

// WriteRuns outputs one line per run.
func (w *SimpleWriter) WriteRuns(runs []model.RunRecord) (int, error) {
	var sb strings.Builder

	if len(runs) == 0 {
		sb.WriteString("No runs recorded.\n")
		return w.output.Write([]byte(sb.String()))
	}

	fmt.Fprintf(&sb, "%-5s %-32s %6s %6s %6s  %s\n", "ID", "GENERATED", "SAVED", "SKIP", "FAIL", "ROOT")
	for _, run := range runs {
		m := run.Manifest
		fmt.Fprintf(&sb, "%-5d %-32s %6d %6d %6d  %s\n",
			run.ID,
			m.GeneratedAt,
			m.DownloadedPages,
			m.SkippedPages,
			len(m.Failures),
			truncateString(m.RootURL, 80),
		)
	}

	return w.output.Write([]byte(sb.String()))
}

func writeRule(sb *strings.Builder, char string) {
	sb.WriteString(strings.Repeat(char, 70))
	sb.WriteString("\n")
}
