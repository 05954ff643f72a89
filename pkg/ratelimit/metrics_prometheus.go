package ratelimit

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Package-level collectors on the default registry, shared by every
// limiter in the process. The limiter label keeps the IP and recipient
// limiters apart; endpoint must be a normalized route, never a raw path,
// or hook URLs would mint one series per dispatch.
var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratelimit_requests_total",
			Help: "Rate limit checks by limiter, outcome and endpoint",
		},
		[]string{"limiter", "outcome", "endpoint"},
	)

	checkDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ratelimit_check_duration_seconds",
			Help:    "Duration of rate limit checks",
			Buckets: []float64{0.0005, 0.001, 0.002, 0.005, 0.01, 0.025, 0.05, 0.1},
		},
		[]string{"limiter"},
	)

	activeKeys = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ratelimit_active_keys",
			Help: "Keys currently tracked by limiter",
		},
		[]string{"limiter"},
	)

	evictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratelimit_evictions_total",
			Help: "Keys evicted from the store to stay under the key bound",
		},
		[]string{"limiter"},
	)
)

// PrometheusMetrics implements Metrics against the package collectors.
// Instances are stateless, so the IP and recipient limiters may each hold
// their own.
type PrometheusMetrics struct{}

// NewPrometheusMetrics returns a Metrics implementation recording to the
// default Prometheus registry.
func NewPrometheusMetrics() *PrometheusMetrics {
	return &PrometheusMetrics{}
}

func (m *PrometheusMetrics) RecordAllowed(limiter, endpoint string) {
	requestsTotal.WithLabelValues(limiter, "allowed", endpoint).Inc()
}

func (m *PrometheusMetrics) RecordDenied(limiter, endpoint string) {
	requestsTotal.WithLabelValues(limiter, "denied", endpoint).Inc()
}

func (m *PrometheusMetrics) RecordCheckDuration(limiter string, duration time.Duration) {
	checkDuration.WithLabelValues(limiter).Observe(duration.Seconds())
}

func (m *PrometheusMetrics) SetActiveKeys(limiter string, count int) {
	activeKeys.WithLabelValues(limiter).Set(float64(count))
}

func (m *PrometheusMetrics) RecordEviction(limiter string, count int) {
	if count <= 0 {
		return
	}
	evictionsTotal.WithLabelValues(limiter).Add(float64(count))
}
