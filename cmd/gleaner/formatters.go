package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ewhitten/gleaner/config"
	"github.com/ewhitten/gleaner/pipeline"
	"github.com/ewhitten/gleaner/runlog"
)

// printRunResult prints a human-readable summary after a pipeline run.
func printRunResult(result *pipeline.Result, cfg *config.Config) {
	fmt.Println()
	fmt.Println("Run completed:")
	fmt.Printf("  Records scraped: %d\n", result.Stats.Records)
	fmt.Printf("  Pages fetched:   %d\n", result.Stats.PagesFetched)
	if result.Stats.PagesFailed > 0 {
		fmt.Printf("  Pages failed:    %d\n", result.Stats.PagesFailed)
	}

	if cfg.Output.CSV != "" && result.Stats.Records > 0 {
		fmt.Printf("  CSV:             %s\n", cfg.Output.CSV)
	}
	if cfg.Output.JSON != "" && result.Stats.Records > 0 {
		fmt.Printf("  JSON:            %s\n", cfg.Output.JSON)
	}
	if cfg.Output.XLSX != "" && result.Stats.Records > 0 {
		fmt.Printf("  XLSX:            %s\n", cfg.Output.XLSX)
	}

	if result.SpreadsheetURL != "" {
		fmt.Println()
		fmt.Printf("View the data at: %s\n", result.SpreadsheetURL)
	}
}

// printHistoryTable prints runs in human-readable form.
func printHistoryTable(runs []*runlog.Run) {
	if len(runs) == 0 {
		fmt.Println("No runs recorded yet.")
		return
	}

	for _, run := range runs {
		marker := "✓"
		if run.Status == runlog.StatusFailed {
			marker = "✗"
		}

		fmt.Printf("%s %s  %s (%s)\n",
			marker,
			run.StartedAt.Format("2006-01-02 15:04"),
			run.BaseURL,
			run.Method,
		)
		fmt.Printf("   Records: %d | Pages: %d | Duration: %s\n",
			run.Records,
			run.PagesFetched,
			run.Duration().Round(time.Second),
		)
		if run.SpreadsheetURL != "" {
			fmt.Printf("   Spreadsheet: %s\n", run.SpreadsheetURL)
		}
		if run.Error != "" {
			fmt.Printf("   Error: %s\n", run.Error)
		}
		fmt.Printf("   ID: %s\n", run.RunID.String())
		fmt.Println()
	}
}

// printHistoryJSON prints runs as JSON.
func printHistoryJSON(runs []*runlog.Run) {
	output := map[string]any{
		"runs":  runs,
		"total": len(runs),
	}

	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to marshal JSON: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(string(data))
}
