package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/ewhitten/gleaner/extract"
	"github.com/ewhitten/gleaner/fetch"
	"github.com/ewhitten/gleaner/record"
)

// Stats summarizes a scrape run.
type Stats struct {
	PagesFetched int `json:"pages_fetched"`
	PagesFailed  int `json:"pages_failed"`
	Records      int `json:"records"`
}

// Scraper drives the fetch-then-extract loop across one or more pages.
// Request pacing lives in the fetch client, so every method here gets the
// configured delay for free.
type Scraper struct {
	client    *fetch.Client
	extractor extract.Extractor
}

// New creates a scraper.
func New(client *fetch.Client, extractor extract.Extractor) *Scraper {
	return &Scraper{
		client:    client,
		extractor: extractor,
	}
}

// ScrapePage fetches and extracts a single page. Unlike the multi-page
// methods, a fetch failure here is returned to the caller.
func (s *Scraper) ScrapePage(ctx context.Context, pageURL string) ([]*record.Record, Stats, error) {
	var stats Stats

	doc, err := s.client.Get(ctx, pageURL)
	if err != nil {
		stats.PagesFailed++
		return nil, stats, err
	}
	stats.PagesFetched++

	records, err := s.extractor.Extract(doc, pageURL)
	if err != nil {
		return nil, stats, fmt.Errorf("failed to extract from %s: %w", pageURL, err)
	}
	stats.Records = len(records)

	slog.Info("scraped page", "url", pageURL, "records", len(records))
	return records, stats, nil
}

// ScrapeURLs fetches and extracts an explicit list of URLs in order. A page
// that fails to fetch or extract is logged and skipped; the remaining URLs
// are still scraped.
func (s *Scraper) ScrapeURLs(ctx context.Context, urls []string) ([]*record.Record, Stats, error) {
	var all []*record.Record
	var stats Stats

	for _, pageURL := range urls {
		if err := ctx.Err(); err != nil {
			return all, stats, err
		}

		doc, err := s.client.Get(ctx, pageURL)
		if err != nil {
			slog.Warn("failed to scrape page", "url", pageURL, "error", err)
			stats.PagesFailed++
			continue
		}
		stats.PagesFetched++

		records, err := s.extractor.Extract(doc, pageURL)
		if err != nil {
			slog.Warn("failed to extract page", "url", pageURL, "error", err)
			continue
		}

		slog.Info("scraped page", "url", pageURL, "records", len(records))
		all = append(all, records...)
	}

	stats.Records = len(all)
	return all, stats, nil
}

// PaginationOptions controls ScrapePages.
type PaginationOptions struct {
	StartPage int    // first page number
	MaxPages  int    // ceiling on pages fetched, regardless of content
	PageParam string // query parameter carrying the page number
}

// ScrapePages walks numbered pages from StartPage, appending the page
// number as a query parameter to the base URL. It stops at the first page
// that yields zero records, or after MaxPages pages, whichever comes first.
// A page that fails to fetch is logged and skipped without ending the walk;
// an empty page is the only data-driven stop signal.
func (s *Scraper) ScrapePages(ctx context.Context, baseURL string, opts PaginationOptions) ([]*record.Record, Stats, error) {
	var all []*record.Record
	var stats Stats

	for page := opts.StartPage; page < opts.StartPage+opts.MaxPages; page++ {
		if err := ctx.Err(); err != nil {
			return all, stats, err
		}

		pageURL, err := PageURL(baseURL, opts.PageParam, page)
		if err != nil {
			return all, stats, err
		}

		doc, err := s.client.Get(ctx, pageURL)
		if err != nil {
			slog.Warn("failed to scrape page", "page", page, "url", pageURL, "error", err)
			stats.PagesFailed++
			continue
		}
		stats.PagesFetched++

		records, err := s.extractor.Extract(doc, pageURL)
		if err != nil {
			slog.Warn("failed to extract page", "page", page, "url", pageURL, "error", err)
			continue
		}

		if len(records) == 0 {
			slog.Info("no records found, stopping pagination", "page", page)
			break
		}

		slog.Info("scraped page", "page", page, "records", len(records))
		all = append(all, records...)
	}

	stats.Records = len(all)
	return all, stats, nil
}

// PageURL appends or overwrites the page-number query parameter on a base
// URL, preserving any other query parameters already present.
func PageURL(baseURL, param string, page int) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}

	q := u.Query()
	q.Set(param, strconv.Itoa(page))
	u.RawQuery = q.Encode()

	return u.String(), nil
}
