package ratelimit

import (
	"context"
	"log/slog"
	"time"
)

// Janitor periodically sweeps a limiter's store: expired timestamps are
// dropped, the active-key gauge is refreshed and evictions since the last
// sweep are turned into a counter delta. It blocks until ctx is cancelled,
// so run it in its own goroutine per limiter.
//
// retention should be the limiter's window; entries older than that carry
// no weight in any decision.
func Janitor(ctx context.Context, name string, store *MemoryStore, window *SlidingWindow, retention, interval time.Duration, metrics Metrics) {
	if metrics == nil {
		metrics = NewNoopMetrics()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastEvicted := store.EvictedTotal()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-retention)
			if err := store.Cleanup(ctx, cutoff); err != nil {
				slog.Error("rate limit cleanup failed",
					slog.String("limiter", name),
					slog.String("error", err.Error()),
				)
				continue
			}
			if window != nil {
				window.PruneTracked(retention)
			}

			if count, err := store.KeyCount(ctx); err == nil {
				metrics.SetActiveKeys(name, count)
			}

			evicted := store.EvictedTotal()
			if delta := evicted - lastEvicted; delta > 0 {
				metrics.RecordEviction(name, int(delta))
			}
			lastEvicted = evicted
		}
	}
}
