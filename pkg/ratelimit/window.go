package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// SlidingWindow counts individual request timestamps inside a moving time
// window, avoiding the boundary bursts a fixed window allows.
//
// The window protects itself against the system clock moving backwards
// (NTP step, manual adjustment): the last timestamp seen per key is
// remembered, and an earlier reading is replaced by it so a clock step
// cannot reset anyone's quota.
type SlidingWindow struct {
	clock Clock

	mu       sync.Mutex
	lastSeen map[string]time.Time
}

// NewSlidingWindow creates a sliding window checker. A nil clock falls back
// to the system clock.
func NewSlidingWindow(clock Clock) *SlidingWindow {
	if clock == nil {
		clock = SystemClock{}
	}
	return &SlidingWindow{
		clock:    clock,
		lastSeen: make(map[string]time.Time),
	}
}

// Allow checks whether a request for key fits inside the window and records
// it when it does. The store performs the count and the add atomically.
func (w *SlidingWindow) Allow(ctx context.Context, key string, store Store, limit int, window time.Duration) (*Decision, error) {
	now := w.validTimestamp(key)
	cutoff := now.Add(-window)
	resetAt := now.Add(window)

	allowed, count, err := store.CheckAndAdd(ctx, key, now, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to check and add request: %w", err)
	}

	if allowed {
		return newAllowed(key, limit, limit-count, resetAt), nil
	}
	return newDenied(key, limit, resetAt, resetAt.Sub(now)), nil
}

// validTimestamp returns the current time, substituting the last timestamp
// seen for this key when the clock has gone backwards.
func (w *SlidingWindow) validTimestamp(key string) time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.clock.Now()

	if last, ok := w.lastSeen[key]; ok && now.Before(last) {
		slog.Warn("clock skew detected, using last valid timestamp",
			slog.String("key", key),
			slog.Time("now", now),
			slog.Time("last_seen", last),
			slog.Duration("skew", last.Sub(now)),
		)
		return last
	}

	w.lastSeen[key] = now
	return now
}

// PruneTracked drops clock-skew tracking entries older than maxAge and
// returns how many were removed. Call it from the same janitor that cleans
// the store so idle keys do not accumulate.
func (w *SlidingWindow) PruneTracked(maxAge time.Duration) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := w.clock.Now().Add(-maxAge)
	removed := 0
	for key, seen := range w.lastSeen {
		if seen.Before(cutoff) {
			delete(w.lastSeen, key)
			removed++
		}
	}
	return removed
}

// TrackedKeys reports the number of keys held for clock-skew protection.
func (w *SlidingWindow) TrackedKeys() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.lastSeen)
}
