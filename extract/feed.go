package extract

import (
	"fmt"
	"strings"
	"time"

	"github.com/ewhitten/gleaner/record"
	"github.com/mmcdole/gofeed"
)

// FeedExtractor parses RSS and Atom feeds into records, letting feed-backed
// sources flow through the same pipeline as scraped HTML. gofeed detects
// and normalizes both formats.
type FeedExtractor struct {
	parser *gofeed.Parser
	now    func() time.Time
}

// NewFeedExtractor creates a feed extractor.
func NewFeedExtractor() *FeedExtractor {
	return &FeedExtractor{
		parser: gofeed.NewParser(),
		now:    time.Now,
	}
}

// Extract parses a raw feed body into records. Each record carries title,
// link, published, authors, and summary fields.
func (e *FeedExtractor) Extract(body []byte, sourceURL string) ([]*record.Record, error) {
	feed, err := e.parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed from %s: %w", sourceURL, err)
	}

	records := make([]*record.Record, 0, len(feed.Items))
	for _, item := range feed.Items {
		records = append(records, e.itemToRecord(item))
	}

	return records, nil
}

// itemToRecord maps one feed item to a flat record.
func (e *FeedExtractor) itemToRecord(item *gofeed.Item) *record.Record {
	rec := record.New()

	rec.Set("title", CollapseWhitespace(item.Title))
	rec.Set("link", item.Link)

	// pubDate (RSS) and published/updated (Atom) both land in
	// PublishedParsed/UpdatedParsed.
	var published string
	if item.PublishedParsed != nil {
		published = item.PublishedParsed.Format(time.RFC3339)
	} else if item.UpdatedParsed != nil {
		published = item.UpdatedParsed.Format(time.RFC3339)
	}
	rec.Set("published", published)

	var authors []string
	for _, author := range item.Authors {
		if author != nil && author.Name != "" {
			authors = append(authors, author.Name)
		}
	}
	rec.Set("authors", strings.Join(authors, ", "))

	rec.Set("summary", CollapseWhitespace(item.Description))
	rec.Set(ScrapedAtField, e.now().Format(time.RFC3339))

	return rec
}
