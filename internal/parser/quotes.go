package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/minicrawler/internal/model"
)

// Quote record field names.
const (
	FieldText   = "text"
	FieldAuthor = "author"
	FieldTags   = "tags"
)

// TagSeparator joins the tag set of a quote into a single field value.
// Tags are stored as-is, so a tag that itself contains a comma does not
// survive SplitTags as one tag.
const TagSeparator = ","

// Quotes parses quote listing pages.
// Each div.quote with both a text and an author becomes a record with
// text, author, and tags fields. Quotes missing either are skipped.
type Quotes struct{}

// NewQuotes creates a quotes page parser.
func NewQuotes() *Quotes {
	return &Quotes{}
}

// Parse implements Parser.
func (q *Quotes) Parse(body, baseURL string) ([]model.Record, string) {
	records := make([]model.Record, 0)

	doc := newDocument(body)
	if doc == nil {
		return records, ""
	}

	doc.Find("div.quote").Each(func(_ int, s *goquery.Selection) {
		text := cleanText(s.Find("span.text").First().Text())
		author := cleanText(s.Find("small.author").First().Text())
		if text == "" || author == "" {
			return
		}

		tags := make([]string, 0)
		s.Find("a.tag").Each(func(_ int, t *goquery.Selection) {
			if tag := cleanText(t.Text()); tag != "" {
				tags = append(tags, tag)
			}
		})

		records = append(records, model.Record{
			FieldText:   text,
			FieldAuthor: author,
			FieldTags:   strings.Join(tags, TagSeparator),
		})
	})

	return records, nextURL(doc, baseURL)
}

// SplitTags returns the individual tags stored in a quote record.
// It is the inverse of the join only for tags without TagSeparator.
func SplitTags(r model.Record) []string {
	v := r[FieldTags]
	if v == "" {
		return nil
	}
	return strings.Split(v, TagSeparator)
}
