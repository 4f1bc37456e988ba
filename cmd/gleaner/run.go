package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/ewhitten/gleaner/pipeline"
)

// handleRun runs the full pipeline. When localOnly is set the spreadsheet
// upload is forced off, leaving only local file exports.
func handleRun(args []string, localOnly bool) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", getEnv("GLEANER_CONFIG", "gleaner.yaml"), "Path to config file")
	verbose := fs.Bool("verbose", false, "Enable debug logging")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	if localOnly {
		cfg.Sheets.Enabled = false
	}

	closeLog := initLogger(cfg.Log, *verbose)
	defer closeLog()

	ctx := context.Background()
	p, err := pipeline.New(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer p.Close()

	result, err := p.Run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: run failed: %v\n", err)
		os.Exit(1)
	}

	printRunResult(result, cfg)
}
