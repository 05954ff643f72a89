package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig holds the CORS policy for the browser-facing endpoints. The
// preference UI is served from a different origin than the API, so the
// subscription and unread-feed routes must answer preflights.
type CORSConfig struct {
	// AllowedMethods lists the HTTP methods permitted in CORS requests.
	// Configurable via CORS_ALLOWED_METHODS.
	AllowedMethods []string

	// AllowedHeaders lists the request headers permitted in CORS requests.
	// Configurable via CORS_ALLOWED_HEADERS.
	AllowedHeaders []string

	// AllowCredentials must be true for Bearer token authentication.
	AllowCredentials bool

	// MaxAge is how long browsers may cache preflight results, in seconds.
	// Configurable via CORS_MAX_AGE.
	MaxAge int

	// Validator decides which origins are permitted.
	Validator OriginValidator

	// Logger records policy violations and preflight traffic. Nil disables
	// CORS logging.
	Logger CORSLogger
}

// CORS returns a middleware that answers cross-origin requests according to
// the configured policy.
//
// Requests without an Origin header are same-origin and pass through
// untouched. Disallowed origins get no CORS headers at all, which makes the
// browser block the response; the violation is logged. Allowed origins are
// echoed back (required when credentials are enabled), preflight OPTIONS
// requests are answered with 204 and never reach the next handler.
func CORS(config CORSConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			if !config.Validator.IsAllowed(origin) {
				if config.Logger != nil {
					config.Logger.Warn("CORS: origin not allowed", map[string]interface{}{
						"origin":      origin,
						"path":        r.URL.Path,
						"method":      r.Method,
						"remote_addr": r.RemoteAddr,
					})
				}

				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")

			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Methods", strings.Join(config.AllowedMethods, ", "))
				w.Header().Set("Access-Control-Allow-Headers", strings.Join(config.AllowedHeaders, ", "))
				w.Header().Set("Access-Control-Max-Age", strconv.Itoa(config.MaxAge))

				if config.Logger != nil {
					config.Logger.Debug("CORS: preflight request", map[string]interface{}{
						"origin":            origin,
						"requested_method":  r.Header.Get("Access-Control-Request-Method"),
						"requested_headers": r.Header.Get("Access-Control-Request-Headers"),
					})
				}

				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
