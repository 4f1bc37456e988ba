package fetch

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

// maxBodySize caps response bodies at 10 MB. Scraped pages past that point
// are almost certainly not the listing page the user meant to target.
const maxBodySize = 10 * 1024 * 1024

// Options configures a Client.
type Options struct {
	// Headers are applied to every request.
	Headers map[string]string

	// Timeout is the per-request deadline. Zero means 10 seconds.
	Timeout time.Duration

	// Retries is how many times a failed request is retried. Retries use
	// exponential backoff between 500ms and 5s.
	Retries int

	// Delay is the minimum gap between consecutive requests. Zero disables
	// pacing.
	Delay time.Duration
}

// Client fetches pages over HTTP and parses them into goquery documents.
// Requests are paced by a rate limiter so that scraping a site never goes
// faster than the configured delay, no matter which scrape method drives
// the client.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
}

// NewClient creates a fetch client.
func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	httpClient := resty.New().
		SetTimeout(timeout).
		SetRetryCount(opts.Retries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			// Retry transport errors and server-side failures, never 4xx.
			return err != nil || r.StatusCode() >= 500
		}).
		SetHeaders(opts.Headers)

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.Delay > 0 {
		// One request per delay interval. The first request is admitted
		// immediately; subsequent ones wait out the gap.
		limiter = rate.NewLimiter(rate.Every(opts.Delay), 1)
	}

	return &Client{
		http:    httpClient,
		limiter: limiter,
	}
}

// GetBody fetches a URL and returns the raw response body. Non-2xx statuses
// are errors.
func (c *Client) GetBody(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	slog.Info("fetching", "url", url)

	resp, err := c.http.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}

	if resp.IsError() {
		return nil, fmt.Errorf("HTTP error for %s: %s", url, resp.Status())
	}

	body := resp.Body()
	if len(body) > maxBodySize {
		return nil, fmt.Errorf("response for %s exceeds %d byte limit", url, maxBodySize)
	}

	return body, nil
}

// Get fetches a URL and parses the response as HTML.
func (c *Client) Get(ctx context.Context, url string) (*goquery.Document, error) {
	body, err := c.GetBody(ctx, url)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML from %s: %w", url, err)
	}

	return doc, nil
}
