package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"courier/internal/registry"
)

// HealthResponse is the body of the plain liveness probe.
type HealthResponse struct {
	Status string `json:"status"`
}

// MessengerHealthResponse reports the configured delivery channels. A worker
// with zero messengers starts and schedules fine but can deliver nothing, so
// the probe treats that as unhealthy.
type MessengerHealthResponse struct {
	Healthy    bool              `json:"healthy"`
	Messengers []MessengerStatus `json:"messengers"`
}

// MessengerStatus describes one registered delivery channel.
type MessengerStatus struct {
	Alias            string `json:"alias"`
	Title            string `json:"title"`
	UserSubscribable bool   `json:"user_subscribable"`
}

// startMetricsServer starts the Prometheus metrics HTTP server and returns
// immediately; the server shuts down gracefully when ctx is cancelled.
//
// Endpoints:
//   - GET /metrics - Prometheus metrics
//   - GET /health - liveness probe, always 200
//   - GET /health/messengers - configured channel listing, 503 when empty
//
// The port comes from METRICS_PORT (default 9090).
func startMetricsServer(ctx context.Context, logger *slog.Logger, messengers *registry.Messengers) *http.Server {
	port := getMetricsPort()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/health/messengers", messengerHealthHandler(messengers))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("metrics server starting", slog.Int("port", port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", slog.Any("error", err))
		}
	}()

	go func() {
		<-ctx.Done()
		logger.Info("metrics server shutdown initiated")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", slog.Any("error", err))
		} else {
			logger.Info("metrics server stopped")
		}
	}()

	return server
}

// getMetricsPort reads METRICS_PORT, defaulting to 9090 on unset or invalid
// values.
func getMetricsPort() int {
	portStr := os.Getenv("METRICS_PORT")
	if portStr == "" {
		return 9090
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return 9090
	}

	return port
}

// healthHandler answers the liveness probe.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(HealthResponse{Status: "healthy"})
}

// messengerHealthHandler reports the registered delivery channels.
func messengerHealthHandler(messengers *registry.Messengers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all := messengers.All()

		statuses := make([]MessengerStatus, 0, len(all))
		for _, m := range all {
			statuses = append(statuses, MessengerStatus{
				Alias:            m.Alias(),
				Title:            m.Title(),
				UserSubscribable: m.AllowUserSubscription(),
			})
		}

		healthy := len(statuses) > 0
		statusCode := http.StatusOK
		if !healthy {
			statusCode = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		_ = json.NewEncoder(w).Encode(MessengerHealthResponse{
			Healthy:    healthy,
			Messengers: statuses,
		})
	}
}
