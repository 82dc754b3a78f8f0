package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/minicrawler/internal/model"
)

// Book record field names.
const (
	FieldTitle  = "title"
	FieldPrice  = "price"
	FieldStock  = "stock"
	FieldRating = "rating"
)

// starRatingClass is the marker class; the rating word is the other class.
const starRatingClass = "star-rating"

// Books parses catalog listing pages.
// Each article.product_pod becomes a record with title, price, stock, and rating fields.
type Books struct{}

// NewBooks creates a catalog page parser.
func NewBooks() *Books {
	return &Books{}
}

// Parse implements Parser.
func (b *Books) Parse(body, baseURL string) ([]model.Record, string) {
	records := make([]model.Record, 0)

	doc := newDocument(body)
	if doc == nil {
		return records, ""
	}

	doc.Find("article.product_pod").Each(func(_ int, s *goquery.Selection) {
		link := s.Find("h3 a").First()
		title, ok := link.Attr("title")
		if !ok {
			title = link.Text()
		}
		title = cleanText(title)
		if title == "" {
			return
		}

		records = append(records, model.Record{
			FieldTitle:  title,
			FieldPrice:  cleanText(s.Find("p.price_color").First().Text()),
			FieldStock:  cleanText(s.Find("p.instock.availability").First().Text()),
			FieldRating: rating(s.Find("p." + starRatingClass).First()),
		})
	})

	return records, nextURL(doc, baseURL)
}

// rating returns the rating word from a "star-rating Three" class list.
func rating(s *goquery.Selection) string {
	class, ok := s.Attr("class")
	if !ok {
		return ""
	}
	for _, c := range strings.Fields(class) {
		if c != starRatingClass {
			return c
		}
	}
	return ""
}
