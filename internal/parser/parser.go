package parser

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"

	"github.com/nao1215/minicrawler/internal/model"
)

// Parser turns a page body into records and an optional next-page URL.
// An empty next URL means the page has no successor.
type Parser interface {
	Parse(body, baseURL string) (records []model.Record, nextURL string)
}

// Func adapts an ordinary function to the Parser interface.
type Func func(body, baseURL string) ([]model.Record, string)

// Parse calls f(body, baseURL).
func (f Func) Parse(body, baseURL string) ([]model.Record, string) {
	return f(body, baseURL)
}

// nextLinkSelector matches the pagination link used by both demo sites.
const nextLinkSelector = "li.next a"

// newDocument parses body into a goquery document.
// It returns nil when the body is blank or cannot be read as HTML.
func newDocument(body string) *goquery.Document {
	if strings.TrimSpace(body) == "" {
		return nil
	}
	root, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil
	}
	return goquery.NewDocumentFromNode(root)
}

// nextURL extracts the pagination href and resolves it against baseURL.
func nextURL(doc *goquery.Document, baseURL string) string {
	href, ok := doc.Find(nextLinkSelector).First().Attr("href")
	if !ok {
		return ""
	}
	return resolveURL(baseURL, href)
}

// resolveURL joins href onto baseURL the way a browser would.
// If either side does not parse, the trimmed href is returned unchanged.
func resolveURL(baseURL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	base, err := url.Parse(baseURL)
	if err != nil || baseURL == "" {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}

// cleanText trims whitespace, collapses internal runs of whitespace, and
// applies NFC normalization so equal strings compare equal.
func cleanText(s string) string {
	return norm.NFC.String(strings.Join(strings.Fields(s), " "))
}
