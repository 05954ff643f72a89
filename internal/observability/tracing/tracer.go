package tracing

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// tracer is the process-wide tracer. All spans, from HTTP requests down to
// individual dispatch deliveries, attach to it.
var tracer = otel.Tracer("courier")

// GetTracer returns the tracer for creating spans.
//
//	ctx, span := tracing.GetTracer().Start(ctx, "send-pass")
//	defer span.End()
func GetTracer() trace.Tracer {
	return tracer
}
