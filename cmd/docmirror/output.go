package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"

	"github.com/nao1215/docmirror/internal/crawler"
	"github.com/nao1215/docmirror/internal/pipeline"
	"github.com/nao1215/docmirror/internal/report"
)

// Color definitions
var (
	colorSuccess = color.New(color.FgGreen).SprintFunc()
	colorWarn    = color.New(color.FgYellow).SprintFunc()
	colorError   = color.New(color.FgRed).SprintFunc()
	colorInfo    = color.New(color.FgCyan).SprintFunc()
	colorDim     = color.New(color.Faint).SprintFunc()
)

// Output prefixes
const (
	prefixSaved   = "✓"
	prefixSkipped = "⚠"
	prefixError   = "✗"
	prefixInfo    = "→"
)

// progressPrinter prints one line per crawl event. Batch runs share one
// printer, so writes are serialized.
type progressPrinter struct {
	mu sync.Mutex
	w  io.Writer

	// showSkipped prints scope and robots skips, which are silent otherwise.
	showSkipped bool
}

func newProgressPrinter(w io.Writer, showSkipped bool) *progressPrinter {
	return &progressPrinter{w: w, showSkipped: showSkipped}
}

// observe implements crawler.Observer.
func (p *progressPrinter) observe(ev crawler.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case ev.Kind == crawler.OutcomeSaved:
		fmt.Fprintf(p.w, "%s %s %s\n", colorSuccess(prefixSaved), ev.Path, colorDim(ev.URL))
	case ev.Kind.Failed():
		fmt.Fprintf(p.w, "%s %s %s\n", colorError(prefixError), ev.URL, colorDim("("+ev.Kind.String()+": "+ev.Reason+")"))
	case ev.Kind == crawler.OutcomeCancelled:
		fmt.Fprintf(p.w, "%s %s %s\n", colorWarn(prefixSkipped), ev.URL, colorDim("(interrupted)"))
	case p.showSkipped:
		fmt.Fprintf(p.w, "%s %s %s\n", colorWarn(prefixSkipped), ev.URL, colorDim("("+ev.Kind.String()+")"))
	}
}

// info prints an informational line.
func (p *progressPrinter) info(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "%s %s\n", colorInfo(prefixInfo), fmt.Sprintf(format, args...))
}

// summary prints the result of one finished run.
func (p *progressPrinter) summary(run *pipeline.Run, verbose bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if run.ManifestPath == "" {
		root := run.Root
		if root == "" {
			root = run.Config.RootURL
		}
		fmt.Fprintf(p.w, "%s %s: %s\n", colorError(prefixError), root, run.ErrorMessage)
		return
	}

	fmt.Fprintln(p.w)
	if _, err := report.NewSimpleWriter(p.w, report.WithVerbose(verbose)).WriteRun(run.Record()); err != nil {
		fmt.Fprintf(p.w, "%s failed to print summary: %v\n", colorError(prefixError), err)
	}
	if run.Interrupted {
		fmt.Fprintf(p.w, "%s interrupted; the manifest covers the pages saved so far\n", colorWarn(prefixSkipped))
	}
	if run.Changed != nil {
		fmt.Fprintf(p.w, "%s %d page(s) changed since the previous run\n", colorInfo(prefixInfo), len(run.Changed))
	}
	fmt.Fprintf(p.w, "%s manifest written to %s\n", colorSuccess(prefixSaved), run.ManifestPath)
}
