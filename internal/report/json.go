package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/sitecrawler/internal/model"
)

// JSONWriter outputs a batch summary in JSON format.
type JSONWriter struct {
	baseWriter

	// version is added to the output when non-empty.
	version string

	indent       bool
	indentPrefix string
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with default indentation.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithVersion adds the program version to the output.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// JSONReport wraps a summary with output metadata.
type JSONReport struct {
	Version string              `json:"version,omitempty"`
	Summary *model.BatchSummary `json:"summary"`

	// Derived totals, so consumers need not recompute them.
	Total       int     `json:"total"`
	TotalWords  int     `json:"total_words"`
	SuccessRate float64 `json:"success_rate"`
	Timeouts    int     `json:"timeouts"`
}

// Write implements Writer.
func (w *JSONWriter) Write(summary *model.BatchSummary) (int, error) {
	return w.writeJSON(JSONReport{
		Version:     w.version,
		Summary:     summary,
		Total:       summary.Total(),
		TotalWords:  summary.TotalWords(),
		SuccessRate: summary.Rate.Rate(),
		Timeouts:    summary.Timeouts(),
	})
}

// writeJSON marshals v and writes it with a trailing newline.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var (
		data []byte
		err  error
	)
	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}
	data = append(data, '\n')
	return w.output.Write(data)
}
