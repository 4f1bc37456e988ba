package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ewhitten/gleaner/config"
	"github.com/ewhitten/gleaner/export"
	"github.com/ewhitten/gleaner/extract"
	"github.com/ewhitten/gleaner/fetch"
	"github.com/ewhitten/gleaner/record"
	"github.com/ewhitten/gleaner/runlog"
	"github.com/ewhitten/gleaner/scrape"
	"github.com/ewhitten/gleaner/sheets"
	"github.com/google/uuid"
)

// Uploader is the spreadsheet surface the pipeline needs. Satisfied by
// sheets.Uploader; narrowed to an interface so runs can be tested without a
// Google backend.
type Uploader interface {
	Create(ctx context.Context, title, shareWith string) (string, error)
	Open(ctx context.Context, spreadsheetID string) (string, error)
	OpenByTitle(ctx context.Context, title string) (string, error)
	Upload(ctx context.Context, spreadsheetID, worksheet string, records []*record.Record, fields []string, mode string) (string, error)
	UploadSplit(ctx context.Context, spreadsheetID string, mappings map[string][]string, records []*record.Record) error
	FormatHeader(ctx context.Context, spreadsheetID, worksheet string) error
	DefaultTitle() string
}

// Result summarizes a completed pipeline run.
type Result struct {
	RunID          uuid.UUID        `json:"run_id"`
	Records        []*record.Record `json:"-"`
	Stats          scrape.Stats     `json:"stats"`
	SpreadsheetURL string           `json:"spreadsheet_url,omitempty"`
}

// Pipeline runs the configured scrape and delivers the records to local
// files and/or Google Sheets, recording each run in the run history.
type Pipeline struct {
	cfg      *config.Config
	uploader Uploader
	store    *runlog.Store
}

// New builds a pipeline from config. The Sheets client is only constructed
// when uploads are enabled, so local-only runs need no credentials.
func New(ctx context.Context, cfg *config.Config) (*Pipeline, error) {
	p := &Pipeline{cfg: cfg}

	if cfg.Sheets.Enabled {
		uploader, err := sheets.NewUploader(ctx, cfg.Sheets.CredentialsFile)
		if err != nil {
			return nil, err
		}
		p.uploader = uploader
	}

	store, err := runlog.NewStore(cfg.RunLog.Path)
	if err != nil {
		return nil, err
	}
	p.store = store

	return p, nil
}

// Close releases the run history store.
func (p *Pipeline) Close() error {
	return p.store.Close()
}

// Run scrapes per the configured method and delivers the records. Scrape
// failures are recorded in the run history before being returned.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	result := &Result{RunID: uuid.New()}
	started := time.Now()

	records, stats, err := p.collect(ctx)
	result.Records = records
	result.Stats = stats
	if err != nil {
		p.recordRun(result, started, err)
		return result, err
	}

	if len(records) == 0 {
		slog.Warn("no records scraped, nothing to deliver")
		p.recordRun(result, started, nil)
		return result, nil
	}

	slog.Info("scrape finished",
		"records", len(records),
		"pages", stats.PagesFetched,
		"failed_pages", stats.PagesFailed,
	)

	if err := p.exportLocal(records); err != nil {
		p.recordRun(result, started, err)
		return result, err
	}

	if p.cfg.Sheets.Enabled {
		url, err := p.UploadRecords(ctx, records, p.cfg.Output.Fields)
		if err != nil {
			p.recordRun(result, started, err)
			return result, err
		}
		result.SpreadsheetURL = url
	}

	p.recordRun(result, started, nil)
	return result, nil
}

// collect scrapes records per the configured source and method.
func (p *Pipeline) collect(ctx context.Context) ([]*record.Record, scrape.Stats, error) {
	client := fetch.NewClient(fetch.Options{
		Headers: p.cfg.Site.Headers,
		Timeout: p.cfg.Scrape.Timeout,
		Retries: p.cfg.Scrape.Retries,
		Delay:   p.cfg.Scrape.Delay,
	})

	if p.cfg.Extract.Source == config.SourceFeed {
		return p.collectFeeds(ctx, client)
	}

	scraper := scrape.New(client, extract.NewSelectorExtractor(p.cfg.Extract))

	switch p.cfg.Scrape.Method {
	case config.MethodSingle:
		return scraper.ScrapePage(ctx, p.cfg.Site.BaseURL)
	case config.MethodMultiple:
		return scraper.ScrapeURLs(ctx, p.cfg.Scrape.URLs)
	case config.MethodPagination:
		return scraper.ScrapePages(ctx, p.cfg.Site.BaseURL, scrape.PaginationOptions{
			StartPage: p.cfg.Scrape.Pagination.StartPage,
			MaxPages:  p.cfg.Scrape.Pagination.MaxPages,
			PageParam: p.cfg.Scrape.Pagination.PageParam,
		})
	default:
		return nil, scrape.Stats{}, fmt.Errorf("unknown scrape method %q", p.cfg.Scrape.Method)
	}
}

// collectFeeds pulls records out of one or more RSS/Atom feeds.
func (p *Pipeline) collectFeeds(ctx context.Context, client *fetch.Client) ([]*record.Record, scrape.Stats, error) {
	urls := []string{p.cfg.Site.BaseURL}
	if p.cfg.Scrape.Method == config.MethodMultiple {
		urls = p.cfg.Scrape.URLs
	}

	extractor := extract.NewFeedExtractor()
	var all []*record.Record
	var stats scrape.Stats

	for _, feedURL := range urls {
		body, err := client.GetBody(ctx, feedURL)
		if err != nil {
			if len(urls) == 1 {
				stats.PagesFailed++
				return nil, stats, err
			}
			slog.Warn("failed to fetch feed", "url", feedURL, "error", err)
			stats.PagesFailed++
			continue
		}
		stats.PagesFetched++

		records, err := extractor.Extract(body, feedURL)
		if err != nil {
			if len(urls) == 1 {
				return nil, stats, err
			}
			slog.Warn("failed to parse feed", "url", feedURL, "error", err)
			continue
		}
		all = append(all, records...)
	}

	stats.Records = len(all)
	return all, stats, nil
}

// exportLocal writes whichever local formats the config asks for.
func (p *Pipeline) exportLocal(records []*record.Record) error {
	out := p.cfg.Output

	if out.CSV != "" {
		if err := export.WriteCSV(out.CSV, records, out.Fields); err != nil {
			return err
		}
	}
	if out.JSON != "" {
		if err := export.WriteJSON(out.JSON, records); err != nil {
			return err
		}
	}
	if out.XLSX != "" {
		if err := export.WriteXLSX(out.XLSX, p.cfg.Sheets.Worksheet, records, out.Fields); err != nil {
			return err
		}
	}

	return nil
}

// UploadRecords delivers records to the configured spreadsheet, creating or
// opening it as needed, and formats the header row. Formatting failures
// only warn; the data is already uploaded at that point.
func (p *Pipeline) UploadRecords(ctx context.Context, records []*record.Record, fields []string) (string, error) {
	if p.uploader == nil {
		return "", fmt.Errorf("sheets upload is not enabled")
	}

	id, err := p.resolveSpreadsheet(ctx)
	if err != nil {
		return "", err
	}

	url, err := p.uploader.Upload(ctx, id, p.cfg.Sheets.Worksheet, records, fields, p.cfg.Sheets.Mode)
	if err != nil {
		return "", err
	}
	if url == "" {
		return "", nil
	}

	if err := p.uploader.FormatHeader(ctx, id, p.cfg.Sheets.Worksheet); err != nil {
		slog.Warn("could not format header row", "error", err)
	}

	if len(p.cfg.Sheets.Split) > 0 {
		if err := p.uploader.UploadSplit(ctx, id, p.cfg.Sheets.Split, records); err != nil {
			return "", err
		}
	}

	slog.Info("uploaded records to spreadsheet", "url", url, "records", len(records))
	return url, nil
}

// resolveSpreadsheet picks the target spreadsheet: configured ID, then
// lookup by title, then create a fresh one.
func (p *Pipeline) resolveSpreadsheet(ctx context.Context) (string, error) {
	cfg := p.cfg.Sheets

	if cfg.SpreadsheetID != "" {
		return p.uploader.Open(ctx, cfg.SpreadsheetID)
	}
	if cfg.SpreadsheetTitle != "" {
		return p.uploader.OpenByTitle(ctx, cfg.SpreadsheetTitle)
	}
	return p.uploader.Create(ctx, p.uploader.DefaultTitle(), cfg.ShareWith)
}

// recordRun writes the run to the history store. History failures are
// logged, never fatal: the scrape result matters more than its bookkeeping.
func (p *Pipeline) recordRun(result *Result, started time.Time, runErr error) {
	run := &runlog.Run{
		RunID:          result.RunID,
		Method:         p.cfg.Scrape.Method,
		BaseURL:        p.cfg.Site.BaseURL,
		StartedAt:      started,
		FinishedAt:     time.Now(),
		PagesFetched:   result.Stats.PagesFetched,
		PagesFailed:    result.Stats.PagesFailed,
		Records:        result.Stats.Records,
		SpreadsheetURL: result.SpreadsheetURL,
		Status:         runlog.StatusOK,
	}
	if runErr != nil {
		run.Status = runlog.StatusFailed
		run.Error = runErr.Error()
	}

	if err := p.store.Record(run); err != nil {
		slog.Warn("could not record run history", "error", err)
	}
}
