// Package main provides a CLI command for detecting stuck dispatches.
// Usage: courier-undelivered [alert-address ...] [--timeout 2m]
//
// When undelivered dispatches exist and alert addresses are given, a
// high-priority alert email is scheduled and delivered before the command
// returns.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"courier/internal/app"
	"courier/internal/infra/db"
	"courier/internal/observability/logging"
)

func main() {
	var timeout time.Duration

	flag.DurationVar(&timeout, "timeout", 2*time.Minute, "Abort the check after this long")
	flag.Parse()

	recipients := flag.Args()

	logger := initLogger()

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

	count, err := stack.Service.CheckUndelivered(ctx, recipients...)
	if err != nil {
		logger.Error("undelivered check failed", slog.Any("error", err))
		fmt.Fprintf(os.Stderr, "Error: Undelivered check failed: %v\n", err)
		os.Exit(1)
	}

	if count == 0 {
		fmt.Println("No undelivered dispatches")
		return
	}

	if len(recipients) > 0 {
		fmt.Printf("%d undelivered dispatches, alert sent to %v\n", count, recipients)
	} else {
		fmt.Printf("%d undelivered dispatches\n", count)
	}
}

// initLogger initializes a structured logger writing to stderr, keeping
// stdout for the command output.
func initLogger() *slog.Logger {
	logger := logging.NewTextLogger()
	slog.SetDefault(logger)
	return logger
}
