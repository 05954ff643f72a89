package ratelimit

import "time"

// Decision is the outcome of a rate limit check, carrying the metadata
// clients need to pace themselves (X-RateLimit-* headers, Retry-After).
type Decision struct {
	// Key identifies the rate limited subject (IP address, recipient ID).
	Key string

	// Allowed reports whether the request may proceed.
	Allowed bool

	// Limit is the maximum number of requests permitted in the window.
	Limit int

	// Remaining is the number of requests left in the current window.
	// Zero means the next request will be denied.
	Remaining int

	// ResetAt is when the current window expires.
	ResetAt time.Time

	// RetryAfter is how long a denied client should wait before retrying.
	RetryAfter time.Duration

	// Limiter names the limiter that produced this decision.
	Limiter string
}

// ResetAtUnix returns the window expiry as a Unix timestamp for the
// X-RateLimit-Reset header.
func (d *Decision) ResetAtUnix() int64 {
	return d.ResetAt.Unix()
}

// RetryAfterSeconds returns the retry delay in whole seconds for the
// Retry-After header, clamped at zero.
func (d *Decision) RetryAfterSeconds() int64 {
	seconds := int64(d.RetryAfter.Seconds())
	if seconds < 0 {
		return 0
	}
	return seconds
}

func newAllowed(key string, limit, remaining int, resetAt time.Time) *Decision {
	return &Decision{
		Key:       key,
		Allowed:   true,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}

func newDenied(key string, limit int, resetAt time.Time, retryAfter time.Duration) *Decision {
	if retryAfter < 0 {
		retryAfter = 0
	}
	return &Decision{
		Key:        key,
		Allowed:    false,
		Limit:      limit,
		Remaining:  0,
		ResetAt:    resetAt,
		RetryAfter: retryAfter,
	}
}
