package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"courier/internal/handler/http/pathutil"
	"courier/internal/handler/http/respond"
	"courier/pkg/ratelimit"
)

// limiterIP is the limiter label reported to metrics and headers for the
// IP-keyed limiter guarding the public hook endpoints.
const limiterIP = "ip"

// IPRateLimiterConfig holds the knobs for the IP-based limiter.
type IPRateLimiterConfig struct {
	// Limit is the maximum number of requests per IP within the window.
	Limit int

	// Window is the sliding window length.
	Window time.Duration

	// Enabled turns the limiter off entirely when false.
	Enabled bool
}

// DefaultIPRateLimiterConfig matches the deployment defaults for the hook
// endpoints: 60 requests per minute per source address.
func DefaultIPRateLimiterConfig() IPRateLimiterConfig {
	return IPRateLimiterConfig{
		Limit:   60,
		Window:  1 * time.Minute,
		Enabled: true,
	}
}

// IPRateLimiter enforces a per-IP request budget on the unauthenticated hook
// endpoints (unsubscribe and read-receipt links). Those URLs carry an HMAC
// signature, and the limiter caps how fast an attacker can probe for valid
// ones.
//
// The type is a thin HTTP adapter over pkg/ratelimit: it resolves the client
// IP through an IPExtractor, asks the sliding window for a decision, reflects
// the outcome in X-RateLimit-* headers, and answers 429 with Retry-After when
// the budget is spent. Limiter failures never block traffic; the request is
// allowed through and the failure is logged.
type IPRateLimiter struct {
	config    IPRateLimiterConfig
	extractor IPExtractor
	store     ratelimit.Store
	window    *ratelimit.SlidingWindow
	metrics   ratelimit.Metrics
}

// NewIPRateLimiter builds the middleware. A nil window gets a fresh sliding
// window on the system clock, and nil metrics are replaced with a no-op
// recorder so call sites never have to nil-check.
func NewIPRateLimiter(
	config IPRateLimiterConfig,
	extractor IPExtractor,
	store ratelimit.Store,
	window *ratelimit.SlidingWindow,
	metrics ratelimit.Metrics,
) *IPRateLimiter {
	if config.Limit <= 0 {
		config.Limit = 60
	}
	if config.Window <= 0 {
		config.Window = 1 * time.Minute
	}
	if window == nil {
		window = ratelimit.NewSlidingWindow(nil)
	}
	if metrics == nil {
		metrics = ratelimit.NewNoopMetrics()
	}

	return &IPRateLimiter{
		config:    config,
		extractor: extractor,
		store:     store,
		window:    window,
		metrics:   metrics,
	}
}

// Middleware returns the http.Handler wrapper enforcing the limit.
//
// Response headers on every evaluated request:
//   - X-RateLimit-Limit: budget for the window
//   - X-RateLimit-Remaining: requests left
//   - X-RateLimit-Reset: Unix timestamp of the window expiry
//   - X-RateLimit-Type: "ip"
//
// Denied requests additionally get Retry-After and a JSON body with status
// 429.
func (rl *IPRateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.config.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()

			ip, err := rl.extractor.ExtractIP(r)
			if err != nil {
				// Without a key there is nothing to count against.
				// Fail open rather than lock out a whole proxy.
				slog.Error("ip rate limiter: failed to extract client IP, allowing request",
					slog.String("error", err.Error()),
					slog.String("remote_addr", r.RemoteAddr),
					slog.String("path", r.URL.Path),
				)
				next.ServeHTTP(w, r)
				return
			}

			endpoint := pathutil.NormalizePath(r.URL.Path)

			decision, err := rl.window.Allow(r.Context(), ip, rl.store, rl.config.Limit, rl.config.Window)
			rl.metrics.RecordCheckDuration(limiterIP, time.Since(start))

			if err != nil {
				slog.Error("ip rate limiter: check failed, allowing request",
					slog.String("error", err.Error()),
					slog.String("ip", ip),
					slog.String("path", r.URL.Path),
				)
				next.ServeHTTP(w, r)
				return
			}
			decision.Limiter = limiterIP

			slog.Debug("rate limit check completed",
				slog.String("limiter", limiterIP),
				slog.String("key", ip),
				slog.Int("limit", decision.Limit),
				slog.Int("remaining", decision.Remaining),
				slog.Bool("allowed", decision.Allowed),
				slog.String("endpoint", endpoint),
			)

			setRateLimitHeaders(w, decision)

			if !decision.Allowed {
				rl.metrics.RecordDenied(limiterIP, endpoint)
				writeRateLimitError(w, r, decision, "Too many requests from this IP address")
				return
			}

			rl.metrics.RecordAllowed(limiterIP, endpoint)
			next.ServeHTTP(w, r)
		})
	}
}

// setRateLimitHeaders reflects a decision in the X-RateLimit-* headers.
func setRateLimitHeaders(w http.ResponseWriter, decision *ratelimit.Decision) {
	if decision == nil {
		return
	}

	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAtUnix(), 10))
	w.Header().Set("X-RateLimit-Type", decision.Limiter)
}

// writeRateLimitError answers a denied request with 429, Retry-After and a
// JSON body:
//
//	{"error": "rate_limit_exceeded", "message": "...", "retry_after": 45}
func writeRateLimitError(w http.ResponseWriter, r *http.Request, decision *ratelimit.Decision, message string) {
	retryAfter := decision.RetryAfterSeconds()
	w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))

	respond.JSON(w, http.StatusTooManyRequests, map[string]any{
		"error":       "rate_limit_exceeded",
		"message":     message,
		"retry_after": retryAfter,
	})

	slog.Warn("rate limit exceeded",
		slog.String("limiter", decision.Limiter),
		slog.String("key", decision.Key),
		slog.Int("limit", decision.Limit),
		slog.Int64("retry_after", retryAfter),
		slog.String("path", r.URL.Path),
		slog.String("method", r.Method),
	)
}
