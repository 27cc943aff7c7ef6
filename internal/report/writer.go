package report

import (
	"io"

	"github.com/nao1215/docmirror/internal/model"
)

// Writer defines the interface for run history output.
//
// Design decision: We use an interface to allow different output formats
// and destinations. The history command picks one by flag and writes
// to stdout or a file with the same API.
type Writer interface {
	// WriteRun outputs a single run with its saved pages.
	// Returns the number of bytes written and any error encountered.
	WriteRun(run *model.RunRecord) (int, error)

	// WriteRuns outputs a listing of runs, newest first.
	WriteRuns(runs []model.RunRecord) (int, error)
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// WriteRun outputs the run to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) WriteRun(run *model.RunRecord) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteRun(run)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteRuns outputs the listing to all configured Writers.
func (m *MultiWriter) WriteRuns(runs []model.RunRecord) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteRuns(runs)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// truncateString truncates a string to maxLen bytes with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// shortHash returns the first twelve hex digits of a digest.
func shortHash(hash string) string {
	return hash[:min(len(hash), 12)]
}
