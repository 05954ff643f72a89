package worker

import (
	"fmt"
	"log/slog"
	"time"

	"courier/internal/pkg/config"
)

// WorkerConfig holds the configuration for the worker process: the cron
// schedules for the send and cleanup jobs, the priority tier the worker
// serves, per-job limits, and the health server port.
//
// Configuration is loaded from environment variables via LoadConfigFromEnv
// with fail-open semantics: an invalid value degrades to its default with a
// warning instead of aborting startup. DefaultConfig returns the baseline.
type WorkerConfig struct {
	// SendSchedule is the cron expression driving send passes.
	// Format: "minute hour day month weekday"
	// Default: "* * * * *" (every minute; the pass is a no-op when the
	// queue is empty)
	SendSchedule string

	// CleanupSchedule is the cron expression driving retention cleanup.
	// Default: "0 4 * * *" (daily at 04:00)
	CleanupSchedule string

	// Timezone is the IANA timezone name both schedules are evaluated in.
	// Default: "UTC"
	Timezone string

	// SendPriority restricts send passes to messages of exactly this
	// priority. -1 processes all priorities. Deploy one worker per tier
	// with different schedules to give urgent messages a faster cadence.
	// Range: -1 to 1000
	// Default: -1
	SendPriority int

	// SendTimeout bounds a single send pass. The pass context is cancelled
	// when it elapses; claimed dispatches are requeued by the orchestrator.
	// Default: 5 minutes
	SendTimeout time.Duration

	// CleanupMaxAge is the retention window: sent dispatches older than
	// this are deleted by the cleanup job.
	// Default: 720h (30 days)
	CleanupMaxAge time.Duration

	// CleanupDispatchesOnly keeps messages when deleting their dispatches.
	// Default: false (messages with no remaining dispatches go too)
	CleanupDispatchesOnly bool

	// HealthPort is the port for the health check HTTP server.
	// Range: 1024-65535
	// Default: 9091
	HealthPort int
}

// DefaultConfig returns the production baseline: a continuously draining
// send queue (every minute, all priorities), daily cleanup at 04:00 UTC
// with a 30-day retention window, and the health server on 9091.
func DefaultConfig() WorkerConfig {
	return WorkerConfig{
		SendSchedule:          "* * * * *",
		CleanupSchedule:       "0 4 * * *",
		Timezone:              "UTC",
		SendPriority:          -1,
		SendTimeout:           5 * time.Minute,
		CleanupMaxAge:         720 * time.Hour,
		CleanupDispatchesOnly: false,
		HealthPort:            9091,
	}
}

// Validate checks every field and returns all violations together, so a
// broken deployment surfaces the full list at once instead of one field
// per restart.
func (c *WorkerConfig) Validate() error {
	var errs []error

	if err := config.ValidateCronSchedule(c.SendSchedule); err != nil {
		errs = append(errs, fmt.Errorf("send schedule: %w", err))
	}

	if err := config.ValidateCronSchedule(c.CleanupSchedule); err != nil {
		errs = append(errs, fmt.Errorf("cleanup schedule: %w", err))
	}

	if err := config.ValidateTimezone(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}

	if err := config.ValidateIntRange(c.SendPriority, -1, 1000); err != nil {
		errs = append(errs, fmt.Errorf("send priority: %w", err))
	}

	if err := config.ValidatePositiveDuration(c.SendTimeout); err != nil {
		errs = append(errs, fmt.Errorf("send timeout: %w", err))
	}

	if err := config.ValidatePositiveDuration(c.CleanupMaxAge); err != nil {
		errs = append(errs, fmt.Errorf("cleanup max age: %w", err))
	}

	if err := config.ValidateIntRange(c.HealthPort, 1024, 65535); err != nil {
		errs = append(errs, fmt.Errorf("health port: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed: %v", errs)
	}

	return nil
}

// resolve unwraps one load result into its value, counting the fallback and
// logging its warnings when the default was substituted for a bad
// environment value.
func resolve[T any](logger *slog.Logger, metrics *WorkerMetrics, field string, result config.Result[T], applied *bool) T {
	if result.FallbackApplied {
		*applied = true
		metrics.RecordValidationError(field)
		metrics.RecordFallback(field)
		for _, warning := range result.Warnings {
			logger.Warn("Configuration fallback applied",
				slog.String("field", field),
				slog.String("warning", warning))
		}
	}
	return result.Value
}

// LoadConfigFromEnv loads worker configuration from environment variables
// with validation and automatic fallback to defaults on failure. It never
// returns an error: a bad value degrades one field, logs a warning, and
// bumps the config fallback metrics, so an operator typo cannot take the
// worker down.
//
// Environment variables:
//   - SEND_CRON_SCHEDULE: cron expression for send passes (default "* * * * *")
//   - CLEANUP_CRON_SCHEDULE: cron expression for cleanup (default "0 4 * * *")
//   - WORKER_TIMEZONE: IANA timezone name (default "UTC")
//   - SEND_PRIORITY: priority tier, -1 for all (default -1)
//   - SEND_TIMEOUT: duration bound per send pass, 10s-2h (default 5m)
//   - CLEANUP_MAX_AGE: retention window, 1h-8760h (default 720h)
//   - CLEANUP_DISPATCHES_ONLY: keep messages during cleanup (default false)
//   - WORKER_HEALTH_PORT: health server port, 1024-65535 (default 9091)
func LoadConfigFromEnv(logger *slog.Logger, metrics *WorkerMetrics) (*WorkerConfig, error) {
	cfg := DefaultConfig()
	fallbackApplied := false

	cfg.SendSchedule = resolve(logger, metrics, "send_schedule",
		config.LoadEnvWithFallback("SEND_CRON_SCHEDULE", cfg.SendSchedule, config.ValidateCronSchedule),
		&fallbackApplied)

	cfg.CleanupSchedule = resolve(logger, metrics, "cleanup_schedule",
		config.LoadEnvWithFallback("CLEANUP_CRON_SCHEDULE", cfg.CleanupSchedule, config.ValidateCronSchedule),
		&fallbackApplied)

	cfg.Timezone = resolve(logger, metrics, "timezone",
		config.LoadEnvWithFallback("WORKER_TIMEZONE", cfg.Timezone, config.ValidateTimezone),
		&fallbackApplied)

	cfg.SendPriority = resolve(logger, metrics, "send_priority",
		config.LoadEnvInt("SEND_PRIORITY", cfg.SendPriority, func(v int) error {
			return config.ValidateIntRange(v, -1, 1000)
		}),
		&fallbackApplied)

	cfg.SendTimeout = resolve(logger, metrics, "send_timeout",
		config.LoadEnvDuration("SEND_TIMEOUT", cfg.SendTimeout, func(d time.Duration) error {
			return config.ValidateDuration(d, 10*time.Second, 2*time.Hour)
		}),
		&fallbackApplied)

	cfg.CleanupMaxAge = resolve(logger, metrics, "cleanup_max_age",
		config.LoadEnvDuration("CLEANUP_MAX_AGE", cfg.CleanupMaxAge, func(d time.Duration) error {
			return config.ValidateDuration(d, time.Hour, 8760*time.Hour)
		}),
		&fallbackApplied)

	cfg.CleanupDispatchesOnly = resolve(logger, metrics, "cleanup_dispatches_only",
		config.LoadEnvBool("CLEANUP_DISPATCHES_ONLY", cfg.CleanupDispatchesOnly),
		&fallbackApplied)

	cfg.HealthPort = resolve(logger, metrics, "health_port",
		config.LoadEnvInt("WORKER_HEALTH_PORT", cfg.HealthPort, func(v int) error {
			return config.ValidateIntRange(v, 1024, 65535)
		}),
		&fallbackApplied)

	metrics.SetFallbackActive(fallbackApplied)
	metrics.RecordLoadTimestamp()

	return &cfg, nil
}
