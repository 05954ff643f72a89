package middleware

import (
	"log/slog"
	"net/http"

	"courier/pkg/security/csp"
)

// CSPMiddlewareConfig holds configuration for the CSP middleware.
type CSPMiddlewareConfig struct {
	// Enabled controls whether CSP headers are applied. Toggled via
	// CSP_ENABLED for gradual rollout.
	Enabled bool

	// Policy is applied to every response. The API serves JSON plus the
	// hook redirects, so a single strict policy covers all routes.
	Policy *csp.Builder

	// ReportOnly switches to Content-Security-Policy-Report-Only, where
	// violations are reported but not enforced. Useful when trialling a
	// policy change.
	ReportOnly bool
}

// CSPMiddleware applies a Content-Security-Policy header to HTTP responses.
// The API never serves its own markup, but hook URLs are opened in browsers
// and error pages are rendered by them; the header keeps any injected
// content inert there.
//
// The policy is fixed at construction, so the header name and value are
// built once instead of on every request.
type CSPMiddleware struct {
	enabled     bool
	headerName  string
	headerValue string
}

// NewCSPMiddleware creates a CSP middleware. A nil policy falls back to
// csp.StrictPolicy.
func NewCSPMiddleware(config CSPMiddlewareConfig) *CSPMiddleware {
	policy := config.Policy
	if policy == nil {
		policy = csp.StrictPolicy()
	}
	policy = policy.ReportOnly(config.ReportOnly)

	return &CSPMiddleware{
		enabled:     config.Enabled,
		headerName:  policy.HeaderName(),
		headerValue: policy.Build(),
	}
}

// Middleware returns an HTTP middleware handler that sets the CSP header on
// every response. Disabled middleware or an empty policy passes requests
// through without touching headers.
func (m *CSPMiddleware) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !m.enabled || m.headerValue == "" {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set(m.headerName, m.headerValue)

			slog.Debug("CSP header applied",
				slog.String("path", r.URL.Path),
				slog.String("header", m.headerName),
			)

			next.ServeHTTP(w, r)
		})
	}
}
