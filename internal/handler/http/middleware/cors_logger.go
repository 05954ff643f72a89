package middleware

import (
	"log/slog"
)

// SlogAdapter backs the CORSLogger interface with log/slog, converting the
// field maps to slog attributes.
type SlogAdapter struct {
	Logger *slog.Logger
}

// Info logs at INFO level.
func (a *SlogAdapter) Info(msg string, fields map[string]interface{}) {
	a.Logger.Info(msg, slogArgs(fields)...)
}

// Warn logs at WARN level.
func (a *SlogAdapter) Warn(msg string, fields map[string]interface{}) {
	a.Logger.Warn(msg, slogArgs(fields)...)
}

// Debug logs at DEBUG level.
func (a *SlogAdapter) Debug(msg string, fields map[string]interface{}) {
	a.Logger.Debug(msg, slogArgs(fields)...)
}

func slogArgs(fields map[string]interface{}) []interface{} {
	args := make([]interface{}, 0, len(fields))
	for k, v := range fields {
		args = append(args, slog.Any(k, v))
	}
	return args
}

// NoOpLogger discards all CORS events. Used in tests.
type NoOpLogger struct{}

// Info does nothing.
func (l *NoOpLogger) Info(msg string, fields map[string]interface{}) {}

// Warn does nothing.
func (l *NoOpLogger) Warn(msg string, fields map[string]interface{}) {}

// Debug does nothing.
func (l *NoOpLogger) Debug(msg string, fields map[string]interface{}) {}
