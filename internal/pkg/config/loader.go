// Package config loads configuration values from environment variables with
// validation and warning-based fallbacks. A bad value never aborts startup:
// the default is applied and the caller receives a warning to log, so an
// operator typo degrades one setting instead of taking the process down.
package config

import (
	"fmt"
	"os"
	"time"
)

// Result carries a loaded configuration value together with any warnings
// generated while loading it. FallbackApplied is true when the default was
// used because the environment value failed to parse or validate.
//
// Example:
//
//	result := config.LoadEnvDuration("SEND_TIMEOUT", 5*time.Minute, config.ValidatePositiveDuration)
//	for _, warning := range result.Warnings {
//	    slog.Warn("configuration fallback", slog.String("detail", warning))
//	}
//	timeout := result.Value
type Result[T any] struct {
	Value           T
	Warnings        []string
	FallbackApplied bool
}

// ok wraps a cleanly loaded value.
func ok[T any](value T) Result[T] {
	return Result[T]{Value: value}
}

// fallback wraps the default value with the standard warning line.
func fallback[T any](envKey, raw string, reason error, defaultValue T) Result[T] {
	return Result[T]{
		Value: defaultValue,
		Warnings: []string{fmt.Sprintf(
			"Invalid %s='%s': %v, falling back to default '%v'",
			envKey, raw, reason, defaultValue,
		)},
		FallbackApplied: true,
	}
}

// LoadEnvString loads a string value from an environment variable, returning
// the default when the variable is unset or empty. No validation is applied;
// use LoadEnvWithFallback when the value needs checking.
//
//	schedule := config.LoadEnvString("SEND_CRON_SCHEDULE", "* * * * *")
func LoadEnvString(envKey, defaultValue string) string {
	value := os.Getenv(envKey)
	if value == "" {
		return defaultValue
	}
	return value
}

// LoadEnvWithFallback loads a string value and runs it through the validator.
// An unset variable silently yields the default; a set but invalid one yields
// the default plus a warning.
//
//	result := config.LoadEnvWithFallback("WORKER_TIMEZONE", "UTC", config.ValidateTimezone)
func LoadEnvWithFallback(envKey, defaultValue string, validator func(string) error) Result[string] {
	value := os.Getenv(envKey)
	if value == "" {
		return ok(defaultValue)
	}

	if validator != nil {
		if err := validator(value); err != nil {
			return fallback(envKey, value, err, defaultValue)
		}
	}
	return ok(value)
}

// LoadEnvDuration loads a duration value (time.ParseDuration syntax: "30s",
// "5m", "1h30m"). Parse and validation failures both fall back with a warning.
//
//	result := config.LoadEnvDuration("CLEANUP_MAX_AGE", 720*time.Hour, config.ValidatePositiveDuration)
func LoadEnvDuration(envKey string, defaultValue time.Duration, validator func(time.Duration) error) Result[time.Duration] {
	valueStr := os.Getenv(envKey)
	if valueStr == "" {
		return ok(defaultValue)
	}

	parsed, err := time.ParseDuration(valueStr)
	if err != nil {
		return fallback(envKey, valueStr, err, defaultValue)
	}

	if validator != nil {
		if err := validator(parsed); err != nil {
			return fallback(envKey, valueStr, err, defaultValue)
		}
	}
	return ok(parsed)
}

// LoadEnvInt loads an integer value. Parse and validation failures both fall
// back with a warning.
//
//	result := config.LoadEnvInt("SEND_MAX_RETRIES", 3, func(v int) error {
//	    return config.ValidateIntRange(v, 0, 10)
//	})
func LoadEnvInt(envKey string, defaultValue int, validator func(int) error) Result[int] {
	valueStr := os.Getenv(envKey)
	if valueStr == "" {
		return ok(defaultValue)
	}

	var parsed int
	if _, err := fmt.Sscanf(valueStr, "%d", &parsed); err != nil {
		return fallback(envKey, valueStr, fmt.Errorf("invalid integer format"), defaultValue)
	}

	if validator != nil {
		if err := validator(parsed); err != nil {
			return fallback(envKey, valueStr, err, defaultValue)
		}
	}
	return ok(parsed)
}

// LoadEnvBool loads a boolean value. Accepted spellings follow strconv:
// 1/t/T/true/TRUE/True and their false counterparts. Anything else falls
// back with a warning.
//
//	result := config.LoadEnvBool("CLEANUP_DISPATCHES_ONLY", false)
func LoadEnvBool(envKey string, defaultValue bool) Result[bool] {
	valueStr := os.Getenv(envKey)
	if valueStr == "" {
		return ok(defaultValue)
	}

	switch valueStr {
	case "1", "t", "T", "true", "TRUE", "True":
		return ok(true)
	case "0", "f", "F", "false", "FALSE", "False":
		return ok(false)
	default:
		return fallback(envKey, valueStr, fmt.Errorf("invalid boolean format, expected 'true' or 'false'"), defaultValue)
	}
}
