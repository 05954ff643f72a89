package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Database metrics track storage performance. HTTP and dispatch pipeline
// metrics live next to the code that records them; this package owns the
// storage layer only.
var (
	// DBQueryDuration measures database query duration per repository operation
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
		},
		[]string{"operation"},
	)

	// DBConnectionsOpen tracks established connections, both in use and idle
	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_open",
			Help: "Number of established database connections",
		},
	)

	// DBConnectionsInUse tracks connections currently executing queries
	DBConnectionsInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_in_use",
			Help: "Number of database connections currently in use",
		},
	)

	// DBConnectionsIdle tracks idle database connections
	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	// DBWaitingQueries counts how often a query had to wait for a free connection
	DBWaitingQueries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connection_waits_total",
			Help: "Cumulative number of queries that waited for a connection",
		},
	)
)
