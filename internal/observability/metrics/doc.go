// Package metrics provides Prometheus metrics for the storage layer.
//
// HTTP metrics are recorded by the HTTP handler package and dispatch
// pipeline metrics by the dispatch usecase; this package covers what is
// left: database query durations and connection pool state.
//
// All metrics are automatically registered with the Prometheus default
// registry and exposed via the /metrics endpoint.
//
// Example usage:
//
//	import "courier/internal/observability/metrics"
//
//	func (repo *MessageRepo) Get(ctx context.Context, id int64) (*entity.Message, error) {
//	    start := time.Now()
//	    defer func() { metrics.RecordDBQuery("message_get", time.Since(start)) }()
//	    // ... run the query ...
//	}
package metrics
