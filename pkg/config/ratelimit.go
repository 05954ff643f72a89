package config

import (
	"log/slog"
	"time"

	"courier/pkg/ratelimit"
)

// LoadRateLimitConfig reads rate limiting settings from the environment and
// returns a validated configuration. Invalid values warn and fall back to
// defaults; the service never refuses to start over a rate limit knob.
//
// Environment variables:
//   - RATELIMIT_ENABLED: enable rate limiting (default: true)
//   - RATELIMIT_IP_LIMIT: hook requests per IP per window (default: 60)
//   - RATELIMIT_IP_WINDOW: window for the IP limiter (default: 1m)
//   - RATELIMIT_RECIPIENT_LIMIT: preference API requests per recipient per window (default: 300)
//   - RATELIMIT_RECIPIENT_WINDOW: window for the recipient limiter (default: 1h)
//   - RATELIMIT_MAX_KEYS: keys kept in memory per limiter (default: 10000)
//   - RATELIMIT_CLEANUP_INTERVAL: janitor sweep interval (default: 5m)
func LoadRateLimitConfig() *ratelimit.Config {
	config := &ratelimit.Config{
		Enabled: GetEnvBool("RATELIMIT_ENABLED", true),
	}

	ipLimit := GetEnvInt("RATELIMIT_IP_LIMIT", 60)
	if ipLimit < 0 {
		slog.Warn("invalid RATELIMIT_IP_LIMIT, using default",
			slog.Int("value", ipLimit),
			slog.Int("default", 60))
		ipLimit = 60
	}
	config.IPLimit = ipLimit

	ipWindow := GetEnvDuration("RATELIMIT_IP_WINDOW", time.Minute)
	if err := ValidatePositiveDuration(ipWindow); err != nil {
		slog.Warn("invalid RATELIMIT_IP_WINDOW, using default",
			slog.String("value", ipWindow.String()),
			slog.String("default", "1m"),
			slog.String("error", err.Error()))
		ipWindow = time.Minute
	}
	config.IPWindow = ipWindow

	recipientLimit := GetEnvInt("RATELIMIT_RECIPIENT_LIMIT", 300)
	if recipientLimit < 0 {
		slog.Warn("invalid RATELIMIT_RECIPIENT_LIMIT, using default",
			slog.Int("value", recipientLimit),
			slog.Int("default", 300))
		recipientLimit = 300
	}
	config.RecipientLimit = recipientLimit

	recipientWindow := GetEnvDuration("RATELIMIT_RECIPIENT_WINDOW", time.Hour)
	if err := ValidatePositiveDuration(recipientWindow); err != nil {
		slog.Warn("invalid RATELIMIT_RECIPIENT_WINDOW, using default",
			slog.String("value", recipientWindow.String()),
			slog.String("default", "1h"),
			slog.String("error", err.Error()))
		recipientWindow = time.Hour
	}
	config.RecipientWindow = recipientWindow

	maxKeys := GetEnvInt("RATELIMIT_MAX_KEYS", 10000)
	if maxKeys < 0 {
		slog.Warn("invalid RATELIMIT_MAX_KEYS, using default",
			slog.Int("value", maxKeys),
			slog.Int("default", 10000))
		maxKeys = 10000
	}
	config.MaxKeys = maxKeys

	cleanupInterval := GetEnvDuration("RATELIMIT_CLEANUP_INTERVAL", 5*time.Minute)
	if err := ValidatePositiveDuration(cleanupInterval); err != nil {
		slog.Warn("invalid RATELIMIT_CLEANUP_INTERVAL, using default",
			slog.String("value", cleanupInterval.String()),
			slog.String("default", "5m"),
			slog.String("error", err.Error()))
		cleanupInterval = 5 * time.Minute
	}
	config.CleanupInterval = cleanupInterval

	if err := config.Validate(); err != nil {
		slog.Warn("rate limit configuration validation failed, applying defaults",
			slog.String("error", err.Error()))
		config.ApplyDefaults()
	}

	return config
}

// CSPConfig controls the Content-Security-Policy headers the API attaches.
// The API serves JSON and redirects only, so the policy is pure defense in
// depth for responses a browser renders directly.
type CSPConfig struct {
	// Enabled controls whether CSP headers are applied.
	Enabled bool

	// ReportOnly switches to Content-Security-Policy-Report-Only, which
	// reports violations without enforcing.
	ReportOnly bool
}

// LoadCSPConfig reads CSP settings from the environment.
//
// Environment variables:
//   - CSP_ENABLED: apply CSP headers (default: true)
//   - CSP_REPORT_ONLY: report-only mode (default: false)
func LoadCSPConfig() *CSPConfig {
	return &CSPConfig{
		Enabled:    GetEnvBool("CSP_ENABLED", true),
		ReportOnly: GetEnvBool("CSP_REPORT_ONLY", false),
	}
}
