package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/minicrawler/internal/model"
)

// SimpleWriter outputs the plain-text crawl summary:
//
//	Crawl finished! collected 100 records
//	Stats: 10 successful, 0 failed
type SimpleWriter struct {
	baseWriter

	// verbose adds timing and the list of failed pages.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables the timing line and failed page list.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the summary.
func (w *SimpleWriter) Write(result *model.Result) (int, error) {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Crawl finished! collected %d records\n", result.RecordCount())
	fmt.Fprintf(&sb, "Stats: %d successful, %d failed\n", result.Stats.SuccessfulPages, result.Stats.FailedPages)

	if w.verbose {
		fmt.Fprintf(&sb, "Site: %s, pages attempted: %d, elapsed: %s\n",
			result.Site, result.Stats.TotalPagesAttempted, result.Duration().Round(time.Millisecond))
		if len(result.Failures) > 0 {
			sb.WriteString("Failed pages:\n")
			for _, f := range result.Failures {
				fmt.Fprintf(&sb, "  - %s: %s\n", f.URL, f.Reason)
			}
		}
	}

	return io.WriteString(w.output, sb.String())
}
