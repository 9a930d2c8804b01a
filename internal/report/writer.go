package report

import (
	"io"

	"github.com/nao1215/sitecrawler/internal/model"
)

// Writer renders a batch summary to its destination.
type Writer interface {
	// Write outputs the summary and returns the number of bytes written.
	Write(summary *model.BatchSummary) (int, error)
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

// Write outputs the summary to all configured Writers and stops on the
// first error.
func (m *MultiWriter) Write(summary *model.BatchSummary) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(summary)
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

// statusRows returns one row per status in display order.
func statusRows(summary *model.BatchSummary) [][]string {
	rows := make([][]string, 0, len(model.Statuses))
	for _, s := range model.Statuses {
		rows = append(rows, []string{s.String(), itoa(summary.Counts[s])})
	}
	return rows
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
