package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/sitecrawler/internal/model"
)

// SimpleWriter outputs a plain-text batch summary.
type SimpleWriter struct {
	baseWriter

	// verbose adds one line per root.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with one line per root.
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

// Write implements Writer.
func (w *SimpleWriter) Write(summary *model.BatchSummary) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, summary)
	w.writeCounts(&sb, summary)
	if w.verbose {
		w.writeRoots(&sb, summary)
	}
	w.writeLinksToCheck(&sb, summary)

	return w.output.Write([]byte(sb.String()))
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, summary *model.BatchSummary) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                       SITECRAWLER BATCH SUMMARY\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("Started:          %s\n", summary.StartedAt.Format("2006-01-02 15:04:05 MST")))
	sb.WriteString(fmt.Sprintf("Elapsed:          %s\n", summary.Elapsed.Round(time.Millisecond)))
	sb.WriteString(fmt.Sprintf("Roots:            %d\n", summary.Total()))
	sb.WriteString(fmt.Sprintf("Average per root: %s\n", summary.AveragePerRoot().Round(time.Millisecond)))
	sb.WriteString(fmt.Sprintf("Total words:      %d\n", summary.TotalWords()))
	sb.WriteString(fmt.Sprintf("Success rate:     %.1f%% (%d success, %d fail, %d bad site)\n",
		summary.Rate.Rate()*100, summary.Rate.Success, summary.Rate.Fail, summary.Rate.BadSite))
	sb.WriteString(fmt.Sprintf("Timeouts:         %d\n", summary.Timeouts()))
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeCounts(sb *strings.Builder, summary *model.BatchSummary) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("STATUS COUNTS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	for _, row := range statusRows(summary) {
		sb.WriteString(fmt.Sprintf("  %-10s %s\n", strings.ToUpper(row[0])+":", row[1]))
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeRoots(sb *strings.Builder, summary *model.BatchSummary) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("ROOTS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	for _, r := range summary.Roots {
		sb.WriteString(fmt.Sprintf("  [%s] %s\n", r.Status, r.Root))
		sb.WriteString("      words: " + strconv.Itoa(r.TotalWords))
		sb.WriteString(", pages: " + strconv.Itoa(r.PagesVisited))
		sb.WriteString(", took: " + r.Duration.Round(time.Millisecond).String() + "\n")
		if r.Error != "" {
			sb.WriteString("      error: " + r.Error + "\n")
		}
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeLinksToCheck(sb *strings.Builder, summary *model.BatchSummary) {
	if len(summary.LinksToCheck) == 0 {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("LINKS TO CHECK\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	for _, link := range summary.LinksToCheck {
		sb.WriteString("  [!] " + link + "\n")
	}
	sb.WriteString("\n")
}

func itoa(n int) string { return strconv.Itoa(n) }
