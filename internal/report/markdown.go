package report

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/minicrawler/internal/model"
)

// DefaultMaxRows caps the records table in Markdown output.
const DefaultMaxRows = 100

// maxCellLen bounds a single table cell.
const maxCellLen = 80

// MarkdownWriter outputs results as GitHub Flavored Markdown.
type MarkdownWriter struct {
	baseWriter

	// maxRows limits the records table. Zero or less means no limit.
	maxRows int
}

// MarkdownWriterOption configures a MarkdownWriter.
type MarkdownWriterOption func(*MarkdownWriter)

// WithMaxRows limits the number of records rendered. n <= 0 renders all.
func WithMaxRows(n int) MarkdownWriterOption {
	return func(w *MarkdownWriter) {
		w.maxRows = n
	}
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer, opts ...MarkdownWriterOption) *MarkdownWriter {
	w := &MarkdownWriter{
		baseWriter: newBaseWriter(output),
		maxRows:    DefaultMaxRows,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the result in Markdown format.
func (w *MarkdownWriter) Write(result *model.Result) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, result)
	w.writeStats(md, result)
	w.writeRecords(md, result)
	w.writeFailures(md, result)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, result *model.Result) {
	md.H1("minicrawler Report")
	md.PlainText("")

	rows := [][]string{
		{"Site", "`" + result.Site + "`"},
		{"Records", strconv.Itoa(result.RecordCount())},
	}
	if !result.StartedAt.IsZero() {
		rows = append(rows, []string{"Started", result.StartedAt.Format("2006-01-02 15:04:05 MST")})
	}
	if d := result.Duration(); d > 0 {
		rows = append(rows, []string{"Duration", d.Round(time.Millisecond).String()})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeStats(md *markdown.Markdown, result *model.Result) {
	s := result.Stats

	md.H2("Page Statistics")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Outcome", "Pages"},
		Rows: [][]string{
			{"Successful", strconv.Itoa(s.SuccessfulPages)},
			{"Failed", strconv.Itoa(s.FailedPages)},
			{"**Total attempted**", "**" + strconv.Itoa(s.TotalPagesAttempted) + "**"},
		},
	})
	md.PlainText("")

	if s.TotalPagesAttempted > 0 {
		chart := piechart.NewPieChart(
			io.Discard,
			piechart.WithTitle("Page Outcomes"),
			piechart.WithShowData(true),
		)
		if s.SuccessfulPages > 0 {
			chart.LabelAndIntValue("Successful", uint64(s.SuccessfulPages))
		}
		if s.FailedPages > 0 {
			chart.LabelAndIntValue("Failed", uint64(s.FailedPages))
		}
		md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
		md.PlainText("")
	}

	switch {
	case s.TotalPagesAttempted == 0:
		md.Note("No pages were attempted.")
	case s.SuccessfulPages == 0:
		md.Cautionf("All %d attempted page(s) failed.", s.FailedPages)
	case s.FailedPages > 0:
		md.Warningf("%d of %d page(s) failed.", s.FailedPages, s.TotalPagesAttempted)
	default:
		md.Tip("Every attempted page was crawled successfully.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeRecords(md *markdown.Markdown, result *model.Result) {
	md.H2("Records")
	md.PlainText("")

	if len(result.Records) == 0 {
		md.PlainText("No records collected.")
		md.PlainText("")
		return
	}

	records := result.Records
	if w.maxRows > 0 && len(records) > w.maxRows {
		records = records[:w.maxRows]
	}

	columns := model.Columns(records)
	rows := make([][]string, len(records))
	for i, r := range records {
		row := make([]string, len(columns))
		for j, col := range columns {
			v := r[col]
			if v == "" {
				v = "-"
			}
			row[j] = truncateString(v, maxCellLen)
		}
		rows[i] = row
	}

	md.Table(markdown.TableSet{
		Header: columns,
		Rows:   rows,
	})
	md.PlainText("")

	if len(records) < len(result.Records) {
		md.PlainTextf("*Showing %d of %d records.*", len(records), len(result.Records))
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, result *model.Result) {
	if len(result.Failures) == 0 {
		return
	}

	md.H2("Failed Pages")
	md.PlainText("")

	rows := make([][]string, len(result.Failures))
	for i, f := range result.Failures {
		rows[i] = []string{f.URL, truncateString(f.Reason, maxCellLen)}
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Reason"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [minicrawler](https://github.com/nao1215/minicrawler)*")
}
