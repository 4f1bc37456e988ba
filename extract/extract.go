package extract

import (
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ewhitten/gleaner/config"
	"github.com/ewhitten/gleaner/record"
)

// ScrapedAtField is stamped onto every extracted record with the extraction
// time in RFC 3339.
const ScrapedAtField = "scraped_at"

// Extractor maps a parsed HTML document to an ordered list of flat records.
// pageURL is the URL the document was fetched from, used to resolve
// relative links.
type Extractor interface {
	Extract(doc *goquery.Document, pageURL string) ([]*record.Record, error)
}

// SelectorExtractor extracts records with CSS selectors: one record per
// item_selector match, one field per field rule evaluated inside the item.
type SelectorExtractor struct {
	itemSelector string
	fields       []config.FieldRule
	now          func() time.Time
}

// NewSelectorExtractor creates an extractor from the extract config. The
// config is assumed to be validated (selectors compile).
func NewSelectorExtractor(cfg config.ExtractConfig) *SelectorExtractor {
	return &SelectorExtractor{
		itemSelector: cfg.ItemSelector,
		fields:       cfg.Fields,
		now:          time.Now,
	}
}

// Extract pulls one record per item container. Items that yield no field
// values at all are logged and skipped; they never fail the page.
func (e *SelectorExtractor) Extract(doc *goquery.Document, pageURL string) ([]*record.Record, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		base = nil
	}

	var records []*record.Record

	doc.Find(e.itemSelector).Each(func(i int, item *goquery.Selection) {
		rec := record.New()
		empty := true

		for _, rule := range e.fields {
			value := e.fieldValue(item, rule, base)
			if value != "" {
				empty = false
			}
			rec.Set(rule.Name, value)
		}

		if empty {
			slog.Warn("skipping item with no extractable fields",
				"item", i,
				"url", pageURL,
			)
			return
		}

		rec.Set(ScrapedAtField, e.now().Format(time.RFC3339))
		records = append(records, rec)
	})

	return records, nil
}

// fieldValue evaluates one field rule against an item selection.
func (e *SelectorExtractor) fieldValue(item *goquery.Selection, rule config.FieldRule, base *url.URL) string {
	sel := item
	if rule.Selector != "" {
		sel = item.Find(rule.Selector).First()
	}
	if sel.Length() == 0 {
		return ""
	}

	if rule.Attr != "" {
		value, _ := sel.Attr(rule.Attr)
		if base != nil && (rule.Attr == "href" || rule.Attr == "src") {
			value = resolveURL(base, value)
		}
		return strings.TrimSpace(value)
	}

	return CollapseWhitespace(sel.Text())
}

// resolveURL resolves a possibly relative reference against the page URL.
// Unparseable references are returned as-is.
func resolveURL(base *url.URL, ref string) string {
	if ref == "" {
		return ""
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(parsed).String()
}

// CollapseWhitespace trims a string and collapses internal whitespace runs
// (newlines, tabs, repeated spaces) to single spaces. Scraped text nodes
// carry the source document's indentation otherwise.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
