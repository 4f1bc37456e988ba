package extract

import (
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ewhitten/gleaner/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const productPage = `
<html><body>
  <div class="product-card">
    <h2 class="product-title">
      Blue   Widget
    </h2>
    <span class="price">$9.99</span>
    <a class="product-link" href="/products/blue-widget">details</a>
    <img class="product-image" src="//cdn.example.com/blue.png">
  </div>
  <div class="product-card">
    <h2 class="product-title">Red Widget</h2>
    <span class="price">$14.99</span>
    <a class="product-link" href="https://other.example.com/red">details</a>
  </div>
  <div class="product-card">
    <!-- an ad slot styled like a product; no extractable fields -->
  </div>
</body></html>
`

func parseDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func productExtractor() *SelectorExtractor {
	e := NewSelectorExtractor(config.ExtractConfig{
		ItemSelector: "div.product-card",
		Fields: []config.FieldRule{
			{Name: "title", Selector: "h2.product-title"},
			{Name: "price", Selector: "span.price"},
			{Name: "link", Selector: "a.product-link", Attr: "href"},
			{Name: "image", Selector: "img.product-image", Attr: "src"},
		},
	})
	e.now = func() time.Time {
		return time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	}
	return e
}

// TestExtract verifies selector-driven extraction of multiple items
func TestExtract(t *testing.T) {
	doc := parseDoc(t, productPage)
	records, err := productExtractor().Extract(doc, "https://example.com/products?page=1")
	require.NoError(t, err)
	require.Len(t, records, 2, "the empty ad slot should be skipped")

	first := records[0]
	assert.Equal(t, "Blue Widget", first.Get("title"), "whitespace should collapse")
	assert.Equal(t, "$9.99", first.Get("price"))
	assert.Equal(t, "2026-08-29T12:00:00Z", first.Get(ScrapedAtField))

	second := records[1]
	assert.Equal(t, "Red Widget", second.Get("title"))
	assert.Equal(t, "", second.Get("image"), "missing fields should be empty, not errors")
}

// TestExtractResolvesURLs verifies relative hrefs resolve against the page
func TestExtractResolvesURLs(t *testing.T) {
	doc := parseDoc(t, productPage)
	records, err := productExtractor().Extract(doc, "https://example.com/products?page=1")
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "https://example.com/products/blue-widget", records[0].Get("link"))
	assert.Equal(t, "https://cdn.example.com/blue.png", records[0].Get("image"),
		"protocol-relative src should inherit the page scheme")
	assert.Equal(t, "https://other.example.com/red", records[1].Get("link"),
		"absolute links should pass through unchanged")
}

// TestExtractFieldOrder verifies records keep the configured field order
func TestExtractFieldOrder(t *testing.T) {
	doc := parseDoc(t, productPage)
	records, err := productExtractor().Extract(doc, "https://example.com/products")
	require.NoError(t, err)
	require.NotEmpty(t, records)

	assert.Equal(t,
		[]string{"title", "price", "link", "image", ScrapedAtField},
		records[0].Fields(),
	)
}

// TestExtractNoMatches verifies a page with no items yields zero records
func TestExtractNoMatches(t *testing.T) {
	doc := parseDoc(t, `<html><body><p>nothing here</p></body></html>`)
	records, err := productExtractor().Extract(doc, "https://example.com")
	require.NoError(t, err)
	assert.Empty(t, records)
}

// TestExtractWholeItemText verifies an empty field selector uses the item itself
func TestExtractWholeItemText(t *testing.T) {
	e := NewSelectorExtractor(config.ExtractConfig{
		ItemSelector: "li.quote",
		Fields: []config.FieldRule{
			{Name: "text"},
		},
	})

	doc := parseDoc(t, `<html><body><ul>
		<li class="quote">To be   or
		not to be</li>
	</ul></body></html>`)

	records, err := e.Extract(doc, "https://example.com")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "To be or not to be", records[0].Get("text"))
}

// TestCollapseWhitespace verifies whitespace normalization
func TestCollapseWhitespace(t *testing.T) {
	assert.Equal(t, "a b c", CollapseWhitespace("  a\n\tb   c  "))
	assert.Equal(t, "", CollapseWhitespace("   \n "))
}
