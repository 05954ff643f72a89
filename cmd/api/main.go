package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"courier/internal/app"
	"courier/internal/common/pagination"
	"courier/internal/infra/db"
	"courier/internal/observability/logging"
	obsmetrics "courier/internal/observability/metrics"
	"courier/internal/observability/tracing"
	pkgconfig "courier/pkg/config"
	"courier/pkg/ratelimit"
	"courier/pkg/security/csp"

	prefUC "courier/internal/usecase/preference"

	hhttp "courier/internal/handler/http"
	hauth "courier/internal/handler/http/auth"
	hdispatch "courier/internal/handler/http/dispatch"
	"courier/internal/handler/http/middleware"
	hpreference "courier/internal/handler/http/preference"
	"courier/internal/handler/http/requestid"
)

// requestTimeout bounds every API request. The preference and unread
// endpoints are single queries; anything slower is a stuck backend.
const requestTimeout = 30 * time.Second

func main() {
	logger := initLogger()
	database := initDatabase(logger)
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	stack, err := app.Build(database)
	if err != nil {
		logger.Error("failed to wire dispatch stack", slog.Any("error", err))
		os.Exit(1)
	}

	jwtSecret, err := stack.Security.JWTSecret()
	if err != nil {
		logger.Error("failed to resolve JWT secret", slog.Any("error", err))
		os.Exit(1)
	}
	validateJWTSecret(logger, jwtSecret)

	version := getVersion()
	components := setupServer(logger, database, stack, jwtSecret, version)

	runServer(logger, components, version)
}

// initLogger initializes the process-wide structured logger.
func initLogger() *slog.Logger {
	logger := logging.NewLogger()
	slog.SetDefault(logger)
	return logger
}

// validateJWTSecret rejects secrets too weak to sign bearer tokens with.
// The server refuses to start rather than mint forgeable tokens.
func validateJWTSecret(logger *slog.Logger, secret []byte) {
	// 最小32文字（256ビット）を強制
	if len(secret) < 32 {
		logger.Error("JWT secret must be at least 32 characters (256 bits)")
		os.Exit(1)
	}
	weakSecrets := []string{"secret", "password", "test", "admin", "default"}
	for _, weak := range weakSecrets {
		if string(secret) == weak || string(secret) == weak+"123" {
			logger.Error("JWT secret must not be a common weak value", slog.String("weak_value", weak))
			os.Exit(1)
		}
	}
}

// initDatabase opens the connection pool and applies the schema migrations.
func initDatabase(logger *slog.Logger) *sql.DB {
	database := db.Open()
	if err := db.MigrateUp(database); err != nil {
		logger.Error("failed to apply migrations", slog.Any("error", err))
		os.Exit(1)
	}
	return database
}

// getVersion returns the application version from environment or default.
func getVersion() string {
	version := os.Getenv("VERSION")
	if version == "" {
		version = "dev"
	}
	return version
}

// ServerComponents holds what the running server needs beyond the handler:
// the rate limiter stores swept by the janitors and the database pool the
// gauge sampler watches.
type ServerComponents struct {
	Handler        http.Handler
	DB             *sql.DB
	IPStore        *ratelimit.MemoryStore
	RecipientStore *ratelimit.MemoryStore
	Window         *ratelimit.SlidingWindow
	RateLimits     *ratelimit.Config
	RLMetrics      ratelimit.Metrics
}

// setupServer configures the HTTP handler with all routes and middleware.
func setupServer(
	logger *slog.Logger, database *sql.DB, stack *app.Stack, jwtSecret []byte, version string,
) *ServerComponents {
	rateLimits := pkgconfig.LoadRateLimitConfig()

	proxyConfig, err := middleware.LoadTrustedProxyConfig()
	if err != nil {
		logger.Error("failed to load trusted proxy configuration", slog.Any("error", err))
		os.Exit(1)
	}

	var ipExtractor middleware.IPExtractor
	if proxyConfig.Enabled {
		ipExtractor = middleware.NewTrustedProxyExtractor(*proxyConfig)
		logger.Info("rate limiting: trusted proxy mode enabled",
			slog.Int("trusted_proxies_count", len(proxyConfig.AllowedCIDRs)))
	} else {
		ipExtractor = &middleware.RemoteAddrExtractor{}
		logger.Info("rate limiting: using RemoteAddr (proxy headers ignored)")
	}

	var (
		ipLimiter        *middleware.IPRateLimiter
		recipientLimiter *middleware.RecipientRateLimiter
		ipStore          *ratelimit.MemoryStore
		recipientStore   *ratelimit.MemoryStore
		window           *ratelimit.SlidingWindow
		rlMetrics        ratelimit.Metrics
	)

	if rateLimits.Enabled {
		// Separate stores so hook probing and preference traffic evict
		// independently.
		ipStore = ratelimit.NewMemoryStore(rateLimits.MaxKeys)
		recipientStore = ratelimit.NewMemoryStore(rateLimits.MaxKeys)
		window = ratelimit.NewSlidingWindow(nil)
		rlMetrics = ratelimit.NewPrometheusMetrics()

		ipLimiter = middleware.NewIPRateLimiter(
			middleware.IPRateLimiterConfig{
				Limit:   rateLimits.IPLimit,
				Window:  rateLimits.IPWindow,
				Enabled: true,
			},
			ipExtractor, ipStore, window, rlMetrics,
		)

		recipientLimiter = middleware.NewRecipientRateLimiter(
			middleware.RecipientRateLimiterConfig{
				Limit:   rateLimits.RecipientLimit,
				Window:  rateLimits.RecipientWindow,
				Enabled: true,
			},
			recipientStore, window, rlMetrics,
		)

		logger.Info("rate limiting initialized",
			slog.Int("ip_limit", rateLimits.IPLimit),
			slog.Duration("ip_window", rateLimits.IPWindow),
			slog.Int("recipient_limit", rateLimits.RecipientLimit),
			slog.Duration("recipient_window", rateLimits.RecipientWindow),
			slog.Int("max_keys", rateLimits.MaxKeys))
	} else {
		logger.Warn("rate limiting is DISABLED - not recommended for production")
	}

	rootMux := setupRoutes(logger, database, version, stack, jwtSecret, ipLimiter, recipientLimiter)
	handler := applyMiddleware(logger, rootMux)

	return &ServerComponents{
		Handler:        handler,
		DB:             database,
		IPStore:        ipStore,
		RecipientStore: recipientStore,
		Window:         window,
		RateLimits:     rateLimits,
		RLMetrics:      rlMetrics,
	}
}

// setupRoutes registers the hook, preference and operational routes.
func setupRoutes(
	logger *slog.Logger,
	database *sql.DB,
	version string,
	stack *app.Stack,
	jwtSecret []byte,
	ipLimiter *middleware.IPRateLimiter,
	recipientLimiter *middleware.RecipientRateLimiter,
) *http.ServeMux {
	rootMux := http.NewServeMux()

	authn := hauth.Authz(jwtSecret)

	// Probes and metrics are public only when security.yaml lists them;
	// otherwise they sit behind the same bearer auth as everything else.
	guard := func(path string, h http.Handler) http.Handler {
		if stack.Security.IsPublicEndpoint(path) {
			return h
		}
		logger.Info("endpoint requires authentication", slog.String("path", path))
		return authn(h)
	}
	rootMux.Handle("/health", guard("/health", &hhttp.HealthHandler{
		DB: database, Messengers: stack.Messengers, Version: version,
	}))
	rootMux.Handle("/ready", guard("/ready", &hhttp.ReadyHandler{DB: database}))
	rootMux.Handle("/live", guard("/live", &hhttp.LiveHandler{}))
	rootMux.Handle("/metrics", guard("/metrics", hhttp.MetricsHandler()))

	// Signed hook links out of delivered messages. Authentication is the
	// HMAC in the URL itself; the IP limiter caps signature probing.
	hooks := hhttp.NewHooks(stack.Service, stack.Signer, stack.Security.HookRedirectURL())
	hookMux := http.NewServeMux()
	hooks.Register(hookMux)
	var hookHandler http.Handler = hookMux
	if ipLimiter != nil {
		hookHandler = ipLimiter.Middleware()(hookMux)
	}
	rootMux.Handle(hhttp.UnsubscribePathPrefix, hookHandler)
	rootMux.Handle(hhttp.MarkReadPathPrefix, hookHandler)

	// The recipient limiter keys off verified claims, so it runs inside
	// the authentication wrapper.
	authz := authn
	if recipientLimiter != nil {
		limit := recipientLimiter.Middleware()
		authz = func(next http.Handler) http.Handler {
			return authn(limit(next))
		}
	}

	prefSvc := prefUC.NewService(stack.Subscriptions, stack.Messengers, stack.Types)
	hpreference.Register(rootMux, prefSvc, prefUC.MatrixOptions{}, authz)
	hdispatch.Register(rootMux, stack.Service, pagination.LoadFromEnv(), authz)

	return rootMux
}

// applyMiddleware wraps the handler with the middleware chain.
// Order (outermost first): CORS → Request ID → coarse rate limit → Tracing →
// Recovery → Logging → Request limits → Timeout → CSP → Metrics → router.
// Authentication and the recipient limiter sit inside the router, per route.
func applyMiddleware(logger *slog.Logger, handler http.Handler) http.Handler {
	corsConfig, err := middleware.LoadCORSConfig()
	if err != nil {
		logger.Error("failed to load CORS configuration", slog.Any("error", err))
		os.Exit(1)
	}
	corsConfig.Logger = &middleware.SlogAdapter{Logger: logger}

	logger.Info("CORS enabled",
		slog.Any("allowed_origins", corsConfig.Validator.GetAllowedOrigins()),
		slog.Any("allowed_methods", corsConfig.AllowedMethods),
		slog.Any("allowed_headers", corsConfig.AllowedHeaders),
		slog.Int("max_age", corsConfig.MaxAge))

	cspSettings := pkgconfig.LoadCSPConfig()
	var cspMiddleware func(http.Handler) http.Handler
	if cspSettings.Enabled {
		cspMW := middleware.NewCSPMiddleware(middleware.CSPMiddlewareConfig{
			Enabled:    true,
			Policy:     csp.StrictPolicy(),
			ReportOnly: cspSettings.ReportOnly,
		})
		cspMiddleware = cspMW.Middleware()
		logger.Info("CSP enabled", slog.Bool("report_only", cspSettings.ReportOnly))
	} else {
		cspMiddleware = func(next http.Handler) http.Handler { return next }
		logger.Warn("CSP is disabled")
	}

	// Coarse per-IP cap across all routes. The scoped limiters bound hook
	// probing and preference traffic precisely; this one keeps any single
	// address from monopolizing the listener.
	coarseLimiter := hhttp.NewRateLimiter(600, 1*time.Minute)

	chain := handler

	// Applied in reverse order (innermost first).
	chain = hhttp.MetricsMiddleware(chain)
	chain = cspMiddleware(chain)
	chain = hhttp.Timeout(requestTimeout)(chain)
	chain = hhttp.RequestLimits()(chain)
	chain = hhttp.Logging(logger)(chain)
	chain = hhttp.Recover(logger)(chain)
	chain = tracing.Middleware(chain)
	chain = coarseLimiter.Limit(chain)
	chain = requestid.Middleware(chain)
	chain = middleware.CORS(*corsConfig)(chain)

	return chain
}

// runServer starts the HTTP server, its background sweepers and handles
// graceful shutdown.
func runServer(logger *slog.Logger, components *ServerComponents, version string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Janitors sweep the limiter stores for the lifetime of the server.
	if components.IPStore != nil {
		go ratelimit.Janitor(ctx, "ip", components.IPStore, components.Window,
			components.RateLimits.IPWindow, components.RateLimits.CleanupInterval, components.RLMetrics)
		logger.Info("IP rate limit janitor started",
			slog.Duration("interval", components.RateLimits.CleanupInterval),
			slog.Duration("retention", components.RateLimits.IPWindow))
	}
	if components.RecipientStore != nil {
		go ratelimit.Janitor(ctx, "recipient", components.RecipientStore, components.Window,
			components.RateLimits.RecipientWindow, components.RateLimits.CleanupInterval, components.RLMetrics)
		logger.Info("recipient rate limit janitor started",
			slog.Duration("interval", components.RateLimits.CleanupInterval),
			slog.Duration("retention", components.RateLimits.RecipientWindow))
	}

	// Connection pool gauges for the API's own pool.
	go obsmetrics.StartPoolSampler(ctx, components.DB, 15*time.Second)

	srv := &http.Server{
		Addr:              ":8080",
		Handler:           components.Handler,
		ReadHeaderTimeout: 10 * time.Second, // Slowloris 対策
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		logger.Info("server starting",
			slog.String("addr", ":8080"),
			slog.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server...")

	// Stop the janitors and the pool sampler.
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", slog.Any("error", err))
	}
	logger.Info("server stopped")
}
