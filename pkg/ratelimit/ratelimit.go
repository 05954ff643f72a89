// Package ratelimit implements sliding-window rate limiting with pluggable
// storage and metrics. The HTTP layer keys limits by client IP for the
// public hook endpoints and by recipient ID for the authenticated
// preference API; both share this package for the counting logic.
package ratelimit

import (
	"context"
	"time"
)

// Store tracks request timestamps per key. Implementations must be safe for
// concurrent use.
type Store interface {
	// CheckAndAdd atomically counts the requests recorded for key after
	// cutoff and, when the count is below limit, records the new request.
	// The check and the add happen under one lock acquisition so that
	// concurrent requests cannot slip past the limit together.
	//
	// count is the number of requests in the window after the call,
	// including the current one when it was allowed.
	CheckAndAdd(ctx context.Context, key string, now, cutoff time.Time, limit int) (allowed bool, count int, err error)

	// Cleanup drops timestamps older than cutoff; keys left empty are
	// removed entirely.
	Cleanup(ctx context.Context, cutoff time.Time) error

	// KeyCount reports the number of keys currently tracked.
	KeyCount(ctx context.Context) (int, error)
}

// Metrics records rate limiting events. The limiter label distinguishes the
// independent limiters sharing one process ("ip", "recipient").
type Metrics interface {
	RecordAllowed(limiter, endpoint string)
	RecordDenied(limiter, endpoint string)
	RecordCheckDuration(limiter string, duration time.Duration)
	SetActiveKeys(limiter string, count int)
	RecordEviction(limiter string, count int)
}

// Clock abstracts time.Now so window behavior can be tested with a
// controlled clock.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by the system time.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
