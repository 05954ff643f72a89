// Package observability provides production-grade observability infrastructure
// including structured logging, Prometheus metrics, and OpenTelemetry tracing.
//
// This package centralizes observability concerns to enable:
//   - Request tracing across service boundaries
//   - Structured logging with context propagation
//   - Prometheus metrics for monitoring
//   - Service level objective tracking
//
// Subpackages:
//   - logging: Structured logging utilities with slog
//   - metrics: Storage layer metrics (query durations, connection pool)
//   - slo: Service level objective gauges, including delivery success
//   - tracing: OpenTelemetry tracing integration
//
// Example usage:
//
//	import (
//	    "courier/internal/observability/logging"
//	    "courier/internal/observability/metrics"
//	)
//
//	func main() {
//	    logger := logging.NewLogger()
//	    logger.Info("application started")
//
//	    go metrics.StartPoolSampler(ctx, db, 15*time.Second)
//	}
package observability
