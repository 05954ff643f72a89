package messenger

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter is a token bucket guarding one messenger's outbound API.
// Each HTTP messenger owns one, tuned to the service's published limit.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter returns a limiter sustaining requestsPerSecond with the
// given burst capacity.
func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst)}
}

// Allow blocks until a token is available or the context is done.
func (r *RateLimiter) Allow(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}
