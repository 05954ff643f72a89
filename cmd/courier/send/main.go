// Package main provides a CLI command for running one send pass.
// Usage: courier-send [--priority N] [--skip-prepare] [--timeout 5m] [--output json]
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"courier/internal/app"
	"courier/internal/infra/db"
	"courier/internal/observability/logging"
	"courier/internal/usecase/dispatch"
)

// SendOutput is the JSON output format for a send pass.
type SendOutput struct {
	PassID   string `json:"pass_id"`
	Prepared int    `json:"prepared"`
	Claimed  int    `json:"claimed"`
	Sent     int    `json:"sent"`
	Errored  int    `json:"errored"`
	Failed   int    `json:"failed"`
	Pending  int    `json:"pending"`
	Requeued int    `json:"requeued"`
	Duration string `json:"duration"`
}

func main() {
	var (
		priority         int
		skipPrepare      bool
		timeout          time.Duration
		outputFormat     string
		ignoreMessengers bool
		ignoreTypes      bool
	)

	flag.IntVar(&priority, "priority", -1, "Only send dispatches with exactly this priority (-1 sends all)")
	flag.BoolVar(&skipPrepare, "skip-prepare", false, "Skip creating dispatches for subscription-fed messages before sending")
	flag.DurationVar(&timeout, "timeout", 5*time.Minute, "Abort the pass after this long")
	flag.StringVar(&outputFormat, "output", "text", "Output format: text or json")
	flag.BoolVar(&ignoreMessengers, "ignore-unknown-messengers", false, "Do not report dispatches addressed to unregistered messengers")
	flag.BoolVar(&ignoreTypes, "ignore-unknown-types", false, "Do not report messages of unregistered types")
	flag.Parse()

	logger := initLogger()
	stack, database := initStack(logger)
	defer closeDatabase(logger, database)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	prepared := 0
	if !skipPrepare {
		dispatches, err := stack.Service.PrepareDispatches(ctx)
		if err != nil {
			logger.Error("dispatch preparation failed", slog.Any("error", err))
			fmt.Fprintf(os.Stderr, "Error: Dispatch preparation failed: %v\n", err)
			os.Exit(1)
		}
		prepared = len(dispatches)
	}

	stats, err := stack.Service.SendDue(ctx, dispatch.SendOptions{
		Priority:                priority,
		IgnoreUnknownMessengers: ignoreMessengers,
		IgnoreUnknownTypes:      ignoreTypes,
	})
	if err != nil {
		logger.Error("send pass failed", slog.Any("error", err))
		// Stats stay valid on partial failure; show whatever was achieved.
		if stats != nil {
			outputStats(outputFormat, prepared, stats)
		}
		fmt.Fprintf(os.Stderr, "Error: Send pass failed: %v\n", err)
		os.Exit(1)
	}

	outputStats(outputFormat, prepared, stats)
}

// initStack opens the database and wires the dispatch stack, exiting on any
// configuration problem.
func initStack(logger *slog.Logger) (*app.Stack, *sql.DB) {
	database := db.Open()
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
	return stack, database
}

func closeDatabase(logger *slog.Logger, database *sql.DB) {
	if err := database.Close(); err != nil {
		logger.Error("failed to close database", slog.Any("error", err))
	}
}

// outputStats prints pass results in the requested format.
func outputStats(format string, prepared int, stats *dispatch.PassStats) {
	if format == "json" {
		outputJSON(prepared, stats)
		return
	}
	outputText(prepared, stats)
}

// outputText prints pass results in human-readable format.
func outputText(prepared int, stats *dispatch.PassStats) {
	fmt.Printf("Pass %s finished in %s\n", stats.PassID, stats.Duration.Round(time.Millisecond))
	fmt.Printf("  Prepared: %d\n", prepared)
	fmt.Printf("  Claimed:  %d\n", stats.Claimed)
	fmt.Printf("  Sent:     %d\n", stats.Sent)
	fmt.Printf("  Errored:  %d\n", stats.Errored)
	fmt.Printf("  Failed:   %d\n", stats.Failed)
	fmt.Printf("  Pending:  %d\n", stats.Pending)
	fmt.Printf("  Requeued: %d\n", stats.Requeued)
}

// outputJSON prints pass results in JSON format.
func outputJSON(prepared int, stats *dispatch.PassStats) {
	output := SendOutput{
		PassID:   stats.PassID,
		Prepared: prepared,
		Claimed:  stats.Claimed,
		Sent:     stats.Sent,
		Errored:  stats.Errored,
		Failed:   stats.Failed,
		Pending:  stats.Pending,
		Requeued: stats.Requeued,
		Duration: stats.Duration.String(),
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(output); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to encode JSON: %v\n", err)
		os.Exit(1)
	}
}

// initLogger initializes a structured logger writing to stderr, keeping
// stdout for the command output.
func initLogger() *slog.Logger {
	logger := logging.NewTextLogger()
	slog.SetDefault(logger)
	return logger
}
