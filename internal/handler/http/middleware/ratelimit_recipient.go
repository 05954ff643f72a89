package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"courier/internal/handler/http/auth"
	"courier/internal/handler/http/pathutil"
	"courier/pkg/ratelimit"
)

// limiterRecipient is the limiter label for the recipient-keyed limiter on
// the authenticated preference API.
const limiterRecipient = "recipient"

// RecipientRateLimiterConfig holds the knobs for the recipient-based limiter.
type RecipientRateLimiterConfig struct {
	// Limit is the maximum number of requests per recipient within the
	// window.
	Limit int

	// Window is the sliding window length.
	Window time.Duration

	// Enabled turns the limiter off entirely when false.
	Enabled bool
}

// DefaultRecipientRateLimiterConfig matches the deployment defaults for the
// preference API: 300 requests per hour per recipient.
func DefaultRecipientRateLimiterConfig() RecipientRateLimiterConfig {
	return RecipientRateLimiterConfig{
		Limit:   300,
		Window:  1 * time.Hour,
		Enabled: true,
	}
}

// RecipientRateLimiter enforces a per-recipient request budget on the
// authenticated preference and subscription endpoints. Keys come from the
// JWT claims placed in the request context by the auth middleware, so one
// recipient hammering the API cannot starve others sharing an egress IP.
//
// Requests without claims pass through untouched: the auth middleware
// answers those with 401 before any handler runs, and there is no stable
// key to count them against.
type RecipientRateLimiter struct {
	config  RecipientRateLimiterConfig
	store   ratelimit.Store
	window  *ratelimit.SlidingWindow
	metrics ratelimit.Metrics
}

// NewRecipientRateLimiter builds the middleware. Nil window and metrics get
// the same defaults as the IP limiter.
func NewRecipientRateLimiter(
	config RecipientRateLimiterConfig,
	store ratelimit.Store,
	window *ratelimit.SlidingWindow,
	metrics ratelimit.Metrics,
) *RecipientRateLimiter {
	if config.Limit <= 0 {
		config.Limit = 300
	}
	if config.Window <= 0 {
		config.Window = 1 * time.Hour
	}
	if window == nil {
		window = ratelimit.NewSlidingWindow(nil)
	}
	if metrics == nil {
		metrics = ratelimit.NewNoopMetrics()
	}

	return &RecipientRateLimiter{
		config:  config,
		store:   store,
		window:  window,
		metrics: metrics,
	}
}

// Middleware returns the http.Handler wrapper enforcing the limit. Headers
// and the 429 shape match the IP limiter, with X-RateLimit-Type set to
// "recipient".
func (rl *RecipientRateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.config.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			claims, ok := auth.ClaimsFromContext(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			key := strconv.FormatInt(claims.RecipientID, 10)

			start := time.Now()
			endpoint := pathutil.NormalizePath(r.URL.Path)

			decision, err := rl.window.Allow(r.Context(), key, rl.store, rl.config.Limit, rl.config.Window)
			rl.metrics.RecordCheckDuration(limiterRecipient, time.Since(start))

			if err != nil {
				slog.Error("recipient rate limiter: check failed, allowing request",
					slog.String("error", err.Error()),
					slog.String("recipient", key),
					slog.String("path", r.URL.Path),
				)
				next.ServeHTTP(w, r)
				return
			}
			decision.Limiter = limiterRecipient

			slog.Debug("rate limit check completed",
				slog.String("limiter", limiterRecipient),
				slog.String("key", key),
				slog.Int("limit", decision.Limit),
				slog.Int("remaining", decision.Remaining),
				slog.Bool("allowed", decision.Allowed),
				slog.String("endpoint", endpoint),
			)

			setRateLimitHeaders(w, decision)

			if !decision.Allowed {
				rl.metrics.RecordDenied(limiterRecipient, endpoint)
				writeRateLimitError(w, r, decision, "Too many requests for this recipient")
				return
			}

			rl.metrics.RecordAllowed(limiterRecipient, endpoint)
			next.ServeHTTP(w, r)
		})
	}
}
