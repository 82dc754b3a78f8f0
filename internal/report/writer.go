package report

import (
	"io"

	"github.com/nao1215/minicrawler/internal/model"
)

// Writer writes a crawl result to its destination.
type Writer interface {
	// Write outputs the result and returns the number of bytes written.
	Write(result *model.Result) (int, error)
}

// MultiWriter writes to multiple Writers in order.
// It is separate from io.MultiWriter because Writer writes results, not bytes.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the result to every writer and stops on the first error.
func (m *MultiWriter) Write(result *model.Result) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(result)
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

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// truncateString truncates s to maxLen runes with an ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
