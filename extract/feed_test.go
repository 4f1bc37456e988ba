package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rssFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Example Deals</title>
    <link>https://example.com</link>
    <item>
      <title>Blue Widget   on sale</title>
      <link>https://example.com/deals/blue-widget</link>
      <description>Half price   this week only</description>
      <pubDate>Mon, 24 Aug 2026 09:00:00 GMT</pubDate>
      <author>deals@example.com (Pat Doe)</author>
    </item>
    <item>
      <title>Red Widget</title>
      <link>https://example.com/deals/red-widget</link>
      <description>Also discounted</description>
    </item>
  </channel>
</rss>`

const atomFeed = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Example Blog</title>
  <entry>
    <title>First Post</title>
    <link href="https://example.com/blog/first"/>
    <updated>2026-08-20T10:30:00Z</updated>
    <author><name>Sam Lee</name></author>
    <summary>An introduction</summary>
  </entry>
</feed>`

// TestFeedExtractRSS verifies RSS items map to records
func TestFeedExtractRSS(t *testing.T) {
	e := NewFeedExtractor()
	e.now = func() time.Time {
		return time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	}

	records, err := e.Extract([]byte(rssFeed), "https://example.com/feed.xml")
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, "Blue Widget on sale", first.Get("title"))
	assert.Equal(t, "https://example.com/deals/blue-widget", first.Get("link"))
	assert.Equal(t, "Half price this week only", first.Get("summary"))
	assert.Equal(t, "2026-08-24T09:00:00Z", first.Get("published"))
	assert.Equal(t, "2026-08-29T12:00:00Z", first.Get(ScrapedAtField))

	second := records[1]
	assert.Equal(t, "", second.Get("published"), "items without dates stay empty")
}

// TestFeedExtractAtom verifies Atom entries map to records
func TestFeedExtractAtom(t *testing.T) {
	e := NewFeedExtractor()

	records, err := e.Extract([]byte(atomFeed), "https://example.com/atom.xml")
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "First Post", rec.Get("title"))
	assert.Equal(t, "https://example.com/blog/first", rec.Get("link"))
	assert.Equal(t, "Sam Lee", rec.Get("authors"))
	assert.Equal(t, "2026-08-20T10:30:00Z", rec.Get("published"),
		"updated should backfill a missing published date")
}

// TestFeedExtractInvalid verifies garbage input is an error
func TestFeedExtractInvalid(t *testing.T) {
	e := NewFeedExtractor()
	_, err := e.Extract([]byte("not a feed"), "https://example.com/feed.xml")
	require.Error(t, err)
}

// TestFeedExtractFieldOrder verifies stable record field order
func TestFeedExtractFieldOrder(t *testing.T) {
	e := NewFeedExtractor()
	records, err := e.Extract([]byte(atomFeed), "https://example.com/atom.xml")
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t,
		[]string{"title", "link", "published", "authors", "summary", ScrapedAtField},
		records[0].Fields(),
	)
}
