package middleware

// OriginValidator decides whether an origin may make cross-origin requests.
// The default is an exact-match whitelist; pattern or IP based strategies
// can be swapped in without touching the middleware.
type OriginValidator interface {
	// IsAllowed reports whether the Origin header value is permitted.
	// Empty origins are never allowed.
	IsAllowed(origin string) bool

	// GetAllowedOrigins returns the configured origins for logging and
	// debugging. Implementations return a defensive copy.
	GetAllowedOrigins() []string
}

// ConfigSource loads the CORS policy from some backing store. The default
// reads environment variables; a file or database source satisfies the same
// interface.
type ConfigSource interface {
	// LoadOrigins returns the allowed origins. At least one origin must be
	// configured; loaders fail closed on missing or malformed values.
	LoadOrigins() ([]string, error)

	// LoadMethods returns the allowed HTTP methods, with a sensible
	// default when unconfigured.
	LoadMethods() ([]string, error)

	// LoadHeaders returns the allowed request headers, with a sensible
	// default when unconfigured.
	LoadHeaders() ([]string, error)

	// LoadMaxAge returns the preflight cache duration in seconds. Zero
	// disables caching; negative values are invalid.
	LoadMaxAge() (int, error)
}

// CORSLogger receives CORS events. An adapter backs it with slog in
// production; tests inject a recorder or NoOpLogger.
type CORSLogger interface {
	// Info logs configuration and startup events.
	Info(msg string, fields map[string]interface{})

	// Warn logs policy violations such as disallowed origins.
	Warn(msg string, fields map[string]interface{})

	// Debug logs preflight processing detail.
	Debug(msg string, fields map[string]interface{})
}
