// Package report writes crawl results.
//
// Writers for the supported output formats:
//   - SimpleWriter: the human-readable summary printed by "minicrawler run"
//   - JSONWriter: structured output for tool integration
//   - MarkdownWriter: GitHub Flavored Markdown with record tables and a stats chart
//
// Writers implement the Writer interface and can be combined with MultiWriter.
package report
