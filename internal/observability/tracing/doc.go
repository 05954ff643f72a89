// Package tracing provides OpenTelemetry tracing integration.
//
// The HTTP middleware extracts W3C Trace Context from inbound requests,
// opens a server span per request and reports the trace ID back to the
// caller via the X-Trace-Id header. Span names use normalized route
// templates so signed hook links keep span cardinality bounded.
//
// Example usage:
//
//	import "courier/internal/observability/tracing"
//
//	func processDue(ctx context.Context) {
//	    ctx, span := tracing.GetTracer().Start(ctx, "send-pass")
//	    defer span.End()
//	    // ... claim and send dispatches ...
//	}
package tracing
