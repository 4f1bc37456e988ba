package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ewhitten/gleaner/config"
)

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		handleRun(os.Args[2:], false)
	case "scrape":
		handleRun(os.Args[2:], true)
	case "upload":
		handleUpload(os.Args[2:])
	case "history":
		handleHistory(os.Args[2:])
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// loadConfig loads and validates the config file, exiting on failure.
func loadConfig(path string) *config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// initLogger configures slog from the log section. The returned closer
// releases the log file, if any.
func initLogger(cfg config.LogConfig, verbose bool) func() {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}

	var out io.Writer = os.Stderr
	closer := func() {}
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to open log file: %v\n", err)
			os.Exit(1)
		}
		out = f
		closer = func() { f.Close() }
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	slog.SetDefault(slog.New(handler))

	return closer
}

func printUsage() {
	fmt.Println("gleaner - scrape HTML pages into spreadsheets")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  gleaner <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  run        Scrape and deliver records per the config file")
	fmt.Println("  scrape     Scrape to local files only (no spreadsheet upload)")
	fmt.Println("  upload     Upload a previously exported CSV to the spreadsheet")
	fmt.Println("  history    Show past runs")
	fmt.Println("  help       Show this help message")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GLEANER_CONFIG      Path to the config file (default: gleaner.yaml)")
	fmt.Println("  GLEANER_LOG_LEVEL   Override log.level from the config")
	fmt.Println("  GLEANER_LOG_FORMAT  Override log.format from the config")
}
