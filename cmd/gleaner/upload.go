package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/ewhitten/gleaner/export"
	"github.com/ewhitten/gleaner/pipeline"
)

// handleUpload re-uploads a previously exported CSV to the configured
// spreadsheet, without scraping anything.
func handleUpload(args []string) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	configPath := fs.String("config", getEnv("GLEANER_CONFIG", "gleaner.yaml"), "Path to config file")
	file := fs.String("file", "", "CSV file to upload (default: output.csv from the config)")
	verbose := fs.Bool("verbose", false, "Enable debug logging")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	cfg.Sheets.Enabled = true
	if cfg.Sheets.CredentialsFile == "" {
		fmt.Fprintln(os.Stderr, "Error: sheets.credentials_file is not configured")
		os.Exit(1)
	}

	closeLog := initLogger(cfg.Log, *verbose)
	defer closeLog()

	path := *file
	if path == "" {
		path = cfg.Output.CSV
	}
	if path == "" {
		fmt.Fprintln(os.Stderr, "Error: no CSV file given and output.csv is not configured")
		os.Exit(1)
	}

	records, fields, err := export.ReadCSV(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if len(records) == 0 {
		fmt.Println("No records to upload.")
		return
	}

	ctx := context.Background()
	p, err := pipeline.New(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer p.Close()

	url, err := p.UploadRecords(ctx, records, fields)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: upload failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Uploaded %d records from %s\n", len(records), path)
	if url != "" {
		fmt.Printf("View the data at: %s\n", url)
	}
}
