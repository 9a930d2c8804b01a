package report

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/sitecrawler/internal/model"
)

// MarkdownWriter outputs a batch summary in Markdown format.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write implements Writer.
func (w *MarkdownWriter) Write(summary *model.BatchSummary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeCounts(md, summary)
	w.writeRoots(md, summary)
	w.writeLinksToCheck(md, summary)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, summary *model.BatchSummary) {
	md.H1("Sitecrawler Batch Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Started", summary.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Elapsed", summary.Elapsed.Round(time.Millisecond).String()},
			{"Roots", strconv.Itoa(summary.Total())},
			{"Average per root", summary.AveragePerRoot().Round(time.Millisecond).String()},
			{"Total words", strconv.Itoa(summary.TotalWords())},
			{"Success rate", strconv.FormatFloat(summary.Rate.Rate()*100, 'f', 1, 64) + "%"},
			{"Bad sites", strconv.Itoa(summary.Rate.BadSite)},
			{"Timeouts", strconv.Itoa(summary.Timeouts())},
		},
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeCounts(md *markdown.Markdown, summary *model.BatchSummary) {
	md.H2("Status Counts")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Status", "Roots"},
		Rows:   statusRows(summary),
	})
	md.PlainText("")

	if summary.Total() > 0 {
		w.writePieChart(md, summary)
	}
	w.writeAlert(md, summary)
}

// writePieChart writes a mermaid pie chart of the status distribution.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, summary *model.BatchSummary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Status Distribution"),
		piechart.WithShowData(true),
	)
	for _, s := range model.Statuses {
		if n := summary.Counts[s]; n > 0 {
			chart.LabelAndIntValue(s.String(), uint64(n))
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, summary *model.BatchSummary) {
	switch {
	case summary.Total() == 0:
		md.Note("No roots were crawled.")
	case summary.Counts[model.StatusError]+summary.Counts[model.StatusFail] == summary.Total():
		md.Cautionf("Every root failed. %d root(s) produced no text.", summary.Total())
	case len(summary.LinksToCheck) > 0:
		md.Warningf("%d root(s) need a manual check.", len(summary.LinksToCheck))
	default:
		md.Tip("Every root produced enough text.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeRoots(md *markdown.Markdown, summary *model.BatchSummary) {
	md.H2("Roots")
	md.PlainText("")

	if len(summary.Roots) == 0 {
		md.PlainText("No roots.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(summary.Roots))
	for i, r := range summary.Roots {
		errText := r.Error
		if errText == "" {
			errText = "-"
		}
		rows[i] = []string{
			"`" + truncateString(r.Root, 60) + "`",
			r.Status.String(),
			strconv.Itoa(r.TotalWords),
			strconv.Itoa(r.PagesVisited),
			r.Duration.Round(time.Millisecond).String(),
			truncateString(errText, 50),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Root", "Status", "Words", "Pages", "Duration", "Error"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeLinksToCheck(md *markdown.Markdown, summary *model.BatchSummary) {
	if len(summary.LinksToCheck) == 0 {
		return
	}
	md.H2("Links To Check")
	md.PlainText("")
	md.BulletList(summary.LinksToCheck...)
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [sitecrawler](https://github.com/nao1215/sitecrawler)*")
}
