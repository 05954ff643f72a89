// Package main provides a CLI command for pruning delivered messages.
// Usage: courier-cleanup [--older-than 720h] [--dispatches-only] [--output json]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"courier/internal/app"
	"courier/internal/infra/db"
	"courier/internal/observability/logging"
)

// CleanupOutput is the JSON output format for a retention sweep.
type CleanupOutput struct {
	Dispatches int64  `json:"dispatches_removed"`
	Messages   int64  `json:"messages_removed"`
	OlderThan  string `json:"older_than"`
}

func main() {
	var (
		olderThan      time.Duration
		dispatchesOnly bool
		timeout        time.Duration
		outputFormat   string
	)

	flag.DurationVar(&olderThan, "older-than", 720*time.Hour, "Remove sent dispatches older than this")
	flag.BoolVar(&dispatchesOnly, "dispatches-only", false, "Keep messages whose dispatches were all removed")
	flag.DurationVar(&timeout, "timeout", 15*time.Minute, "Abort the sweep after this long")
	flag.StringVar(&outputFormat, "output", "text", "Output format: text or json")
	flag.Parse()

	logger := initLogger()

	if olderThan <= 0 {
		fmt.Fprintln(os.Stderr, "Error: --older-than must be positive")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Usage: courier-cleanup [--older-than 720h] [--dispatches-only] [--output json]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Examples:")
		fmt.Fprintln(os.Stderr, "  courier-cleanup")
		fmt.Fprintln(os.Stderr, "  courier-cleanup --older-than 168h --dispatches-only")
		os.Exit(1)
	}

	database := db.Open()
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()
	if err := db.MigrateUp(database); err != nil {
		logger.Error("failed to apply migrations", slog.Any("error", err))
		fmt.Fprintf(os.Stderr, "Error: Failed to apply migrations: %v\n", err)
		os.Exit(1)
	}

	stack, err := app.Build(database)
	if err != nil {
		logger.Error("failed to wire dispatch stack", slog.Any("error", err))
		fmt.Fprintf(os.Stderr, "Error: Failed to wire dispatch stack: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	result, err := stack.Service.CleanupSent(ctx, olderThan, dispatchesOnly)
	if err != nil {
		logger.Error("cleanup failed", slog.Any("error", err))
		fmt.Fprintf(os.Stderr, "Error: Cleanup failed: %v\n", err)
		os.Exit(1)
	}

	if outputFormat == "json" {
		output := CleanupOutput{
			Dispatches: result.Dispatches,
			Messages:   result.Messages,
			OlderThan:  olderThan.String(),
		}
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(output); err != nil {
			fmt.Fprintf(os.Stderr, "Error: Failed to encode JSON: %v\n", err)
			os.Exit(1)
		}
		return
	}

	fmt.Printf("Removed %d dispatches and %d messages older than %s\n",
		result.Dispatches, result.Messages, olderThan)
}

// initLogger initializes a structured logger writing to stderr, keeping
// stdout for the command output.
func initLogger() *slog.Logger {
	logger := logging.NewTextLogger()
	slog.SetDefault(logger)
	return logger
}
