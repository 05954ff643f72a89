package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	authRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_requests_total",
			Help: "Bearer token verifications by result",
		},
		[]string{"result"},
	)

	forbiddenAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_forbidden_total",
			Help: "Requests rejected by the admin role check",
		},
		[]string{"method"},
	)
)

// RecordAuthRequest counts a token verification. result is "success" or
// "failure".
func RecordAuthRequest(result string) {
	authRequestsTotal.WithLabelValues(result).Inc()
}

// RecordForbidden counts an authenticated request that lacked the required
// role.
func RecordForbidden(method string) {
	forbiddenAttempts.WithLabelValues(method).Inc()
}
