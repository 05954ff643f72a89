// Package main provides a CLI command for verifying a delivery channel.
// Usage: courier-probe <messenger> <address> [--timeout 30s]
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

	flag.DurationVar(&timeout, "timeout", 30*time.Second, "Abort the probe after this long")
	flag.Parse()

	args := flag.Args()
	if len(args) != 2 {
		fmt.Fprintln(os.Stderr, "Error: Messenger alias and address are required")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Usage: courier-probe <messenger> <address> [--timeout 30s]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Examples:")
		fmt.Fprintln(os.Stderr, "  courier-probe smtp ops@example.com")
		fmt.Fprintln(os.Stderr, "  courier-probe telegram @ops_alerts")
		fmt.Fprintln(os.Stderr, "  courier-probe slack '#alerts' --timeout 10s")
		os.Exit(1)
	}
	alias, address := args[0], args[1]

	logger := initLogger()

	// Opening the pool doubles as a connectivity check; the probe itself
	// never touches the schema, so no migrations here.
	database := db.Open()
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	stack, err := app.Build(database)
	if err != nil {
		logger.Error("failed to wire dispatch stack", slog.Any("error", err))
		fmt.Fprintf(os.Stderr, "Error: Failed to wire dispatch stack: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	logger.Info("sending test message",
		slog.String("messenger", alias),
		slog.String("address", address))

	if err := stack.Service.SendTestMessage(ctx, alias, address); err != nil {
		logger.Error("probe failed", slog.Any("error", err))
		fmt.Fprintf(os.Stderr, "Error: Probe failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Test message delivered via %s to %s\n", alias, address)
}

// initLogger initializes a structured logger writing to stderr, keeping
// stdout for the command output.
func initLogger() *slog.Logger {
	logger := logging.NewTextLogger()
	slog.SetDefault(logger)
	return logger
}
