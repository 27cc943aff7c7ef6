package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/docmirror/internal/model"
	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// MarkdownWriter outputs run history in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation, which gives us tables, alerts and collapsible details
// without hand-written escaping.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// WriteRun outputs a single run in Markdown format.
func (w *MarkdownWriter) WriteRun(run *model.RunRecord) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, run)
	w.writeSummary(md, run)
	w.writeFailures(md, run)
	w.writePages(md, run)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteRuns outputs a run listing in Markdown format.
func (w *MarkdownWriter) WriteRuns(runs []model.RunRecord) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("docmirror History")
	md.PlainText("")

	if len(runs) == 0 {
		md.PlainText("No runs recorded.")
		md.PlainText("")
		w.writeFooter(md)
		return len(md.String()), md.Build()
	}

	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		m := run.Manifest
		rows = append(rows, []string{
			strconv.FormatInt(run.ID, 10),
			markdown.Code(m.RootURL),
			m.GeneratedAt,
			strconv.Itoa(m.DownloadedPages),
			strconv.Itoa(m.SkippedPages),
			strconv.Itoa(len(m.Failures)),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"ID", "Root", "Generated", "Downloaded", "Skipped", "Failures"},
		Rows:   rows,
	})
	md.PlainText("")
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the run header with crawl information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, run *model.RunRecord) {
	m := run.Manifest
	md.H1f("docmirror Run #%d", run.ID)
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Root URL", markdown.Code(m.RootURL)},
			{"Output", markdown.Code(run.OutputDir)},
			{"Generated", m.GeneratedAt},
			{"Duration", fmt.Sprintf("%.2fs", m.DurationSeconds)},
			{"User Agent", markdown.Code(m.UserAgent)},
			{"Delay", fmt.Sprintf("%gs", m.DelaySeconds)},
		},
	})
	md.PlainText("")
}

// writeSummary writes the page counters, a chart and a status alert.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, run *model.RunRecord) {
	m := run.Manifest
	md.H2("Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Counter", "Value"},
		Rows: [][]string{
			{"Discovered URLs", strconv.Itoa(m.DiscoveredURLs)},
			{"Downloaded Pages", strconv.Itoa(m.DownloadedPages)},
			{"Skipped Pages", strconv.Itoa(m.SkippedPages)},
			{"Failures", strconv.Itoa(len(m.Failures))},
		},
	})
	md.PlainText("")

	if m.DownloadedPages+m.SkippedPages > 0 {
		w.writePieChart(md, m)
	}
	w.writeAlert(md, m)
}

// writePieChart writes a mermaid pie chart of how popped URLs ended.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, m model.Manifest) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Visited URLs"),
		piechart.WithShowData(true),
	)

	silent := m.SkippedPages - len(m.Failures)
	if m.DownloadedPages > 0 {
		chart.LabelAndIntValue("Saved", uint64(m.DownloadedPages))
	}
	if len(m.Failures) > 0 {
		chart.LabelAndIntValue("Failed", uint64(len(m.Failures)))
	}
	if silent > 0 {
		chart.LabelAndIntValue("Out of scope or blocked", uint64(silent))
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert matching how the run went.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, m model.Manifest) {
	switch {
	case m.DownloadedPages == 0:
		md.Caution("No pages were saved. Check the root URL, robots.txt and the render backend.")
	case len(m.Failures) > 0:
		md.Warningf("%d page(s) failed. Re-run to retry them.", len(m.Failures))
	default:
		md.Tip("Every visited page in scope was saved.")
	}
	md.PlainText("")
}

// writeFailures lists the tagged failures.
func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, run *model.RunRecord) {
	failures := run.Manifest.Failures
	if len(failures) == 0 {
		return
	}

	md.H2("Failures")
	md.PlainText("")

	items := make([]string, 0, len(failures))
	for _, f := range failures {
		items = append(items, markdown.Code(f))
	}
	md.BulletList(items...)
	md.PlainText("")
}

// writePages writes the table of saved pages.
func (w *MarkdownWriter) writePages(md *markdown.Markdown, run *model.RunRecord) {
	md.H2("Pages")
	md.PlainText("")

	if len(run.Pages) == 0 {
		md.PlainText("No pages saved.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, len(run.Pages))
	for _, p := range run.Pages {
		title := p.Title
		if title == "" {
			title = "-"
		}
		rows = append(rows, []string{
			markdown.Link(truncateString(p.Path, 60), p.URL),
			truncateString(title, 50),
			strconv.Itoa(p.Bytes),
			markdown.Code(shortHash(p.Hash)),
		})
	}

	table := markdown.TableSet{
		Header: []string{"Path", "Title", "Bytes", "SHA3-256"},
		Rows:   rows,
	}
	if len(rows) > 20 {
		// Large runs fold the table away.
		body := markdown.NewMarkdown(io.Discard)
		body.Table(table)
		md.Details(fmt.Sprintf("%d pages", len(rows)), "\n"+body.String())
	} else {
		md.Table(table)
	}
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Report generated by [docmirror](https://github.com/nao1215/docmirror)*")
}
