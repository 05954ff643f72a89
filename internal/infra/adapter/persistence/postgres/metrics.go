package postgres

import (
	"time"

	"courier/internal/observability/metrics"
)

// track times one repository call:
//
//	defer track("dispatch_get")()
func track(operation string) func() {
	start := time.Now()
	return func() { metrics.RecordDBQuery(operation, time.Since(start)) }
}
