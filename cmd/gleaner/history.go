package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ewhitten/gleaner/runlog"
)

// handleHistory lists past runs from the run history database.
func handleHistory(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	configPath := fs.String("config", getEnv("GLEANER_CONFIG", "gleaner.yaml"), "Path to config file")
	limit := fs.Int("limit", 20, "Maximum number of runs to show (0 for all)")
	format := fs.String("format", "table", "Output format: table or json")
	fs.Parse(args)

	cfg := loadConfig(*configPath)

	store, err := runlog.NewStore(cfg.RunLog.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open run history: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	runs, err := store.List(*limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to list runs: %v\n", err)
		os.Exit(1)
	}

	switch *format {
	case "json":
		printHistoryJSON(runs)
	case "table":
		printHistoryTable(runs)
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown format: %s\n", *format)
		os.Exit(1)
	}
}
