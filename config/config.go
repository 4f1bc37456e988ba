package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/andybalholm/cascadia"
	"gopkg.in/yaml.v3"
)

// Custom errors for config validation
var (
	ErrNoBaseURL      = errors.New("site.base_url is required")
	ErrInvalidMethod  = errors.New("scrape.method must be single, multiple, or pagination")
	ErrInvalidSource  = errors.New("extract.source must be html or feed")
	ErrInvalidMode    = errors.New("sheets.mode must be replace or append")
	ErrNoItemSelector = errors.New("extract.item_selector is required for html sources")
	ErrNoURLs         = errors.New("scrape.urls is required for the multiple method")
)

// Scrape methods
const (
	MethodSingle     = "single"
	MethodMultiple   = "multiple"
	MethodPagination = "pagination"
)

// Extract sources
const (
	SourceHTML = "html"
	SourceFeed = "feed"
)

// Worksheet write modes
const (
	ModeReplace = "replace"
	ModeAppend  = "append"
)

// SiteConfig identifies the target website and the request headers sent to
// it.
type SiteConfig struct {
	BaseURL string            `yaml:"base_url"`
	Headers map[string]string `yaml:"headers,omitempty"`
}

// PaginationConfig controls page-number pagination.
type PaginationConfig struct {
	StartPage int    `yaml:"start_page"` // default: 1
	MaxPages  int    `yaml:"max_pages"`  // ceiling; default: 10
	PageParam string `yaml:"page_param"` // query parameter name; default: "page"
}

// ScrapeConfig controls fetching behavior.
type ScrapeConfig struct {
	Method     string           `yaml:"method"` // single, multiple, pagination
	Delay      time.Duration    `yaml:"delay"`  // pause between requests; default: 1s
	Timeout    time.Duration    `yaml:"timeout"`
	Retries    int              `yaml:"retries"`
	URLs       []string         `yaml:"urls,omitempty"` // for the multiple method
	Pagination PaginationConfig `yaml:"pagination"`
}

// FieldRule maps one output field to a CSS selector, evaluated relative to
// each item. When Attr is set the attribute value is extracted instead of
// the text content.
type FieldRule struct {
	Name     string `yaml:"name"`
	Selector string `yaml:"selector"`
	Attr     string `yaml:"attr,omitempty"`
}

// ExtractConfig defines how records are pulled out of a fetched page.
type ExtractConfig struct {
	Source       string      `yaml:"source"`        // html or feed
	ItemSelector string      `yaml:"item_selector"` // container matched once per record
	Fields       []FieldRule `yaml:"fields"`
}

// OutputConfig controls local file exports. Empty filenames skip that
// format.
type OutputConfig struct {
	Fields []string `yaml:"fields,omitempty"` // column order; empty means first-seen order
	CSV    string   `yaml:"csv,omitempty"`
	JSON   string   `yaml:"json,omitempty"`
	XLSX   string   `yaml:"xlsx,omitempty"`
}

// SheetsConfig controls the Google Sheets upload.
type SheetsConfig struct {
	Enabled          bool   `yaml:"enabled"`
	CredentialsFile  string `yaml:"credentials_file"`
	SpreadsheetID    string `yaml:"spreadsheet_id,omitempty"`
	SpreadsheetTitle string `yaml:"spreadsheet_title,omitempty"`
	Worksheet        string `yaml:"worksheet"` // default: "Scraped Data"
	Mode             string `yaml:"mode"`      // replace or append
	ShareWith        string `yaml:"share_with,omitempty"`

	// Split writes column subsets of the records to extra worksheets,
	// keyed by worksheet title. Split worksheets are always replaced.
	Split map[string][]string `yaml:"split,omitempty"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error; default: info
	Format string `yaml:"format"` // text or json; default: text
	File   string `yaml:"file,omitempty"`
}

// RunLogConfig controls the local run history database.
type RunLogConfig struct {
	Path string `yaml:"path"` // default: "gleaner.db"
}

// Config is the top-level configuration loaded from gleaner.yaml.
type Config struct {
	Site    SiteConfig    `yaml:"site"`
	Scrape  ScrapeConfig  `yaml:"scrape"`
	Extract ExtractConfig `yaml:"extract"`
	Output  OutputConfig  `yaml:"output"`
	Sheets  SheetsConfig  `yaml:"sheets"`
	RunLog  RunLogConfig  `yaml:"runlog"`
	Log     LogConfig     `yaml:"log"`
}

// DefaultHeaders are sent when site.headers is empty. Plenty of sites serve
// different (or no) markup to clients without a browser user agent.
var DefaultHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	"Accept-Language": "en-US,en;q=0.9",
}

// Load reads and validates a config file. GLEANER_LOG_LEVEL and
// GLEANER_LOG_FORMAT override the log section when set.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyDefaults fills in zero values with sensible defaults.
func (c *Config) applyDefaults() {
	if len(c.Site.Headers) == 0 {
		c.Site.Headers = DefaultHeaders
	}
	if c.Scrape.Method == "" {
		c.Scrape.Method = MethodSingle
	}
	if c.Scrape.Delay == 0 {
		c.Scrape.Delay = time.Second
	}
	if c.Scrape.Timeout == 0 {
		c.Scrape.Timeout = 10 * time.Second
	}
	if c.Scrape.Retries == 0 {
		c.Scrape.Retries = 2
	}
	if c.Scrape.Pagination.StartPage == 0 {
		c.Scrape.Pagination.StartPage = 1
	}
	if c.Scrape.Pagination.MaxPages == 0 {
		c.Scrape.Pagination.MaxPages = 10
	}
	if c.Scrape.Pagination.PageParam == "" {
		c.Scrape.Pagination.PageParam = "page"
	}
	if c.Extract.Source == "" {
		c.Extract.Source = SourceHTML
	}
	if c.Sheets.Worksheet == "" {
		c.Sheets.Worksheet = "Scraped Data"
	}
	if c.Sheets.Mode == "" {
		c.Sheets.Mode = ModeReplace
	}
	if c.RunLog.Path == "" {
		c.RunLog.Path = "gleaner.db"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// applyEnv applies environment variable overrides.
func (c *Config) applyEnv() {
	if v := os.Getenv("GLEANER_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("GLEANER_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
}

// Validate checks the config for errors that would otherwise surface
// mid-run: bad enums, uncompilable selectors, unusable URLs.
func (c *Config) Validate() error {
	if c.Site.BaseURL == "" {
		return ErrNoBaseURL
	}
	u, err := url.Parse(c.Site.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid site.base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("site.base_url must use http or https scheme, got %q", u.Scheme)
	}

	switch c.Scrape.Method {
	case MethodSingle, MethodPagination:
	case MethodMultiple:
		if len(c.Scrape.URLs) == 0 {
			return ErrNoURLs
		}
	default:
		return ErrInvalidMethod
	}

	if c.Scrape.Delay < 0 {
		return fmt.Errorf("scrape.delay must not be negative")
	}
	if c.Scrape.Pagination.MaxPages < 1 {
		return fmt.Errorf("scrape.pagination.max_pages must be at least 1")
	}

	switch c.Extract.Source {
	case SourceHTML:
		if c.Extract.ItemSelector == "" {
			return ErrNoItemSelector
		}
		if _, err := cascadia.Compile(c.Extract.ItemSelector); err != nil {
			return fmt.Errorf("invalid extract.item_selector %q: %w", c.Extract.ItemSelector, err)
		}
		for _, f := range c.Extract.Fields {
			if f.Name == "" {
				return fmt.Errorf("extract.fields entries must have a name")
			}
			if f.Selector != "" {
				if _, err := cascadia.Compile(f.Selector); err != nil {
					return fmt.Errorf("invalid selector for field %q: %w", f.Name, err)
				}
			}
		}
	case SourceFeed:
		if c.Scrape.Method == MethodPagination {
			return fmt.Errorf("the pagination method does not apply to feed sources")
		}
	default:
		return ErrInvalidSource
	}

	switch c.Sheets.Mode {
	case ModeReplace, ModeAppend:
	default:
		return ErrInvalidMode
	}

	if c.Sheets.Enabled && c.Sheets.CredentialsFile == "" {
		return fmt.Errorf("sheets.credentials_file is required when sheets.enabled is true")
	}

	return nil
}
