package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"courier/internal/app"
	"courier/internal/handler/http/respond"
	"courier/internal/infra/db"
	workerPkg "courier/internal/infra/worker"
	"courier/internal/observability/logging"
	"courier/internal/observability/metrics"
	"courier/internal/observability/slo"
	"courier/internal/repository"
	"courier/internal/resilience/circuitbreaker"
	"courier/internal/usecase/dispatch"
)

// cleanupTimeout bounds a retention sweep. Unlike send passes it is not
// configurable: a sweep that needs longer than this indicates a backlog
// problem to investigate, not a knob to turn.
const cleanupTimeout = 15 * time.Minute

func main() {
	logger := initLogger()
	database := initDatabase(logger)
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load worker configuration (fail-open strategy)
	workerMetrics := workerPkg.NewWorkerMetrics()
	workerMetrics.MustRegister()
	workerConfig, err := workerPkg.LoadConfigFromEnv(logger, workerMetrics)
	if err != nil {
		logger.Error("failed to load worker configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker configuration loaded",
		slog.String("send_schedule", workerConfig.SendSchedule),
		slog.String("cleanup_schedule", workerConfig.CleanupSchedule),
		slog.String("timezone", workerConfig.Timezone),
		slog.Int("send_priority", workerConfig.SendPriority),
		slog.Duration("send_timeout", workerConfig.SendTimeout),
		slog.Duration("cleanup_max_age", workerConfig.CleanupMaxAge),
		slog.Int("health_port", workerConfig.HealthPort))

	stack, err := app.Build(database)
	if err != nil {
		logger.Error("failed to wire dispatch stack", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("messengers initialized",
		slog.Int("enabled", stack.EnabledMessengers),
		slog.Any("aliases", stack.Messengers.Aliases()))

	// Start Prometheus metrics server
	startMetricsServer(ctx, logger, stack.Messengers)

	// Sample connection pool gauges for the lifetime of the process
	go metrics.StartPoolSampler(ctx, database, 15*time.Second)

	// Start health check server
	healthAddr := fmt.Sprintf(":%d", workerConfig.HealthPort)
	healthServer := workerPkg.NewHealthServer(healthAddr, logger)
	go func() {
		if err := healthServer.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()
	logger.Info("health check server started", slog.String("addr", healthAddr))

	runScheduler(ctx, logger, stack.Service, workerConfig, workerMetrics, healthServer)
}

// initLogger initializes the process-wide structured logger.
func initLogger() *slog.Logger {
	logger := logging.NewLogger()
	slog.SetDefault(logger)
	return logger
}

// initDatabase opens the connection pool and applies the schema migrations.
func initDatabase(logger *slog.Logger) *sql.DB {
	database := db.Open()
	if err := db.MigrateUp(database); err != nil {
		logger.Error("failed to apply migrations", slog.Any("error", err))
		os.Exit(1)
	}
	return database
}

// runScheduler starts the cron scheduler with the send and cleanup jobs and
// blocks until the context is cancelled, then drains running jobs.
func runScheduler(
	ctx context.Context, logger *slog.Logger, svc *dispatch.Service,
	cfg *workerPkg.WorkerConfig, workerMetrics *workerPkg.WorkerMetrics, healthServer *workerPkg.HealthServer,
) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("invalid timezone, using UTC", slog.String("timezone", cfg.Timezone), slog.Any("error", err))
		loc = time.UTC
	}
	c := cron.New(cron.WithLocation(loc))

	// Both jobs run through one store guard: after repeated failing passes
	// against an unreachable database, further passes are skipped until the
	// cooldown admits a probe.
	guard := circuitbreaker.NewStoreGuard()

	if _, err := c.AddFunc(cfg.SendSchedule, func() {
		runSendJob(logger, svc, cfg, workerMetrics, guard)
	}); err != nil {
		logger.Error("failed to schedule send job", slog.Any("error", err))
		os.Exit(1)
	}

	if _, err := c.AddFunc(cfg.CleanupSchedule, func() {
		runCleanupJob(logger, svc, cfg, workerMetrics, guard)
	}); err != nil {
		logger.Error("failed to schedule cleanup job", slog.Any("error", err))
		os.Exit(1)
	}

	c.Start()
	healthServer.SetReady(true)
	logger.Info("worker started",
		slog.String("send_schedule", cfg.SendSchedule),
		slog.String("cleanup_schedule", cfg.CleanupSchedule),
		slog.String("timezone", cfg.Timezone))

	<-ctx.Done()

	healthServer.SetReady(false)
	logger.Info("worker shutting down, draining jobs")
	select {
	case <-c.Stop().Done():
		logger.Info("worker stopped")
	case <-time.After(cfg.SendTimeout):
		logger.Error("worker shutdown timed out with jobs still running")
	}
}

// runSendJob executes one scheduled pass: prepare dispatches for
// subscription-fed messages, then claim and deliver due dispatches for the
// configured priority tier.
func runSendJob(
	logger *slog.Logger, svc *dispatch.Service, cfg *workerPkg.WorkerConfig,
	workerMetrics *workerPkg.WorkerMetrics, guard *circuitbreaker.StoreGuard,
) {
	start := time.Now()

	// 送信パスのタイムアウト（設定から取得）
	ctx, cancel := context.WithTimeout(context.Background(), cfg.SendTimeout)
	defer cancel()

	var stats *dispatch.PassStats

	runErr := guard.Run(func() error {
		var passErr error

		prepared, err := svc.PrepareDispatches(ctx)
		if err != nil {
			// Preparation failures do not block the pass: the already
			// prepared queue still drains.
			logger.Error("dispatch preparation failed", slog.Any("error", respond.SanitizeError(err)))
			passErr = err
		} else if len(prepared) > 0 {
			logger.Info("dispatches prepared", slog.Int("count", len(prepared)))
		}

		var sendErr error
		stats, sendErr = svc.SendDue(ctx, dispatch.SendOptions{Priority: cfg.SendPriority})
		if sendErr != nil {
			logger.Error("send pass failed", slog.Any("error", respond.SanitizeError(sendErr)))
			passErr = sendErr
		}
		return passErr
	})
	if errors.Is(runErr, circuitbreaker.ErrPassSkipped) {
		logger.Warn("send pass skipped, dispatch store circuit open")
		workerMetrics.RecordJobRun(workerPkg.JobSend, workerPkg.StatusSkipped)
		return
	}
	failed := runErr != nil

	duration := time.Since(start)
	workerMetrics.RecordJobDuration(workerPkg.JobSend, duration.Seconds())

	if stats != nil {
		workerMetrics.RecordDispatchesProcessed(workerPkg.JobSend, stats.Claimed)
		slo.RecordDeliveryOutcomes(stats.Sent, stats.Failed)

		if stats.Claimed > 0 {
			logger.Info("send pass completed",
				slog.String("pass_id", stats.PassID),
				slog.Int("claimed", stats.Claimed),
				slog.Int("sent", stats.Sent),
				slog.Int("errored", stats.Errored),
				slog.Int("failed", stats.Failed),
				slog.Int("pending", stats.Pending),
				slog.Int("requeued", stats.Requeued),
				slog.Duration("duration", duration))
		}
	}

	if failed {
		workerMetrics.RecordJobRun(workerPkg.JobSend, workerPkg.StatusFailure)
		return
	}
	workerMetrics.RecordJobRun(workerPkg.JobSend, workerPkg.StatusSuccess)
	workerMetrics.RecordLastSuccess(workerPkg.JobSend)
}

// runCleanupJob executes one scheduled retention sweep.
func runCleanupJob(
	logger *slog.Logger, svc *dispatch.Service, cfg *workerPkg.WorkerConfig,
	workerMetrics *workerPkg.WorkerMetrics, guard *circuitbreaker.StoreGuard,
) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	var result repository.CleanupResult
	err := guard.Run(func() error {
		var sweepErr error
		result, sweepErr = svc.CleanupSent(ctx, cfg.CleanupMaxAge, cfg.CleanupDispatchesOnly)
		return sweepErr
	})
	if errors.Is(err, circuitbreaker.ErrPassSkipped) {
		logger.Warn("cleanup skipped, dispatch store circuit open")
		workerMetrics.RecordJobRun(workerPkg.JobCleanup, workerPkg.StatusSkipped)
		return
	}

	duration := time.Since(start)
	workerMetrics.RecordJobDuration(workerPkg.JobCleanup, duration.Seconds())

	if err != nil {
		logger.Error("cleanup failed", slog.Any("error", respond.SanitizeError(err)))
		workerMetrics.RecordJobRun(workerPkg.JobCleanup, workerPkg.StatusFailure)
		return
	}

	workerMetrics.RecordDispatchesProcessed(workerPkg.JobCleanup, int(result.Dispatches+result.Messages))
	workerMetrics.RecordJobRun(workerPkg.JobCleanup, workerPkg.StatusSuccess)
	workerMetrics.RecordLastSuccess(workerPkg.JobCleanup)

	logger.Info("cleanup completed",
		slog.Int64("dispatches", result.Dispatches),
		slog.Int64("messages", result.Messages),
		slog.Duration("duration", duration))
}
