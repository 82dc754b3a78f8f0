package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/minicrawler/internal/model"
)

// JSONWriter outputs results in JSON format.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	indent bool

	indentPrefix string
	indentString string

	// version is written alongside the result when set.
	version string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables indented JSON output.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint is WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithVersion wraps the result in a JSONReport carrying the tool version.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// JSONReport wraps a result with the version of the tool that produced it.
type JSONReport struct {
	Version string        `json:"version"`
	Result  *model.Result `json:"result"`
}

// Write outputs the result as JSON.
func (w *JSONWriter) Write(result *model.Result) (int, error) {
	if w.version != "" {
		return w.writeJSON(JSONReport{Version: w.version, Result: result})
	}
	return w.writeJSON(result)
}

// WriteRecords outputs only the records as a JSON array.
func (w *JSONWriter) WriteRecords(records []model.Record) (int, error) {
	if records == nil {
		records = []model.Record{}
	}
	return w.writeJSON(records)
}

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
