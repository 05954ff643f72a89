// Package logging builds the slog loggers used across the delivery system.
//
// NewLogger returns the JSON logger for the API server and the worker, with
// the level taken from LOG_LEVEL. NewTextLogger writes human-readable lines
// to stderr for the one-shot CLIs, keeping stdout free for their output.
// WithRequestID stamps a logger with the request ID carried in the context,
// so every line of one hook call or API request correlates.
//
//	func main() {
//	    logger := logging.NewLogger()
//	    slog.SetDefault(logger)
//	    logger.Info("worker starting", slog.String("schedule", cfg.SendSchedule))
//	}
//
//	func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
//	    logger := logging.WithRequestID(r.Context(), slog.Default())
//	    logger.Info("unsubscribe hook", slog.Int64("dispatch_id", id))
//	}
package logging
