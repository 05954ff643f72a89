package metrics

import (
	"context"
	"database/sql"
	"time"
)

// RecordDBQuery records the duration of a database query operation.
// Operation should describe the repository call (e.g., "dispatch_claim_unsent",
// "message_create").
func RecordDBQuery(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// UpdateDBConnections publishes a snapshot of the connection pool state.
func UpdateDBConnections(stats sql.DBStats) {
	DBConnectionsOpen.Set(float64(stats.OpenConnections))
	DBConnectionsInUse.Set(float64(stats.InUse))
	DBConnectionsIdle.Set(float64(stats.Idle))
	DBWaitingQueries.Set(float64(stats.WaitCount))
}

// StartPoolSampler periodically publishes connection pool gauges until the
// context is cancelled. Intended to run for the lifetime of the process:
//
//	go metrics.StartPoolSampler(ctx, db, 15*time.Second)
func StartPoolSampler(ctx context.Context, db *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			UpdateDBConnections(db.Stats())
		}
	}
}
