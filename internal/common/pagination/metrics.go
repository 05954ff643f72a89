package pagination

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// requestsTotal buckets requests by page depth: deep offset scans cost
	// the database more, so their share is worth watching separately.
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paginated_requests_total",
			Help: "Paginated list requests by status and page depth",
		},
		[]string{"status", "page_range"},
	)

	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagination_errors_total",
			Help: "Paginated list failures by kind",
		},
		[]string{"type"}, // validation | database
	)
)

// RecordRequest records one served page.
func RecordRequest(statusCode, page int) {
	requestsTotal.WithLabelValues(strconv.Itoa(statusCode), pageRangeBucket(page)).Inc()
}

// RecordError records a failed page request. errorType is "validation" for
// bad parameters and "database" for storage failures.
func RecordError(errorType string) {
	errorsTotal.WithLabelValues(errorType).Inc()
}

func pageRangeBucket(page int) string {
	switch {
	case page <= 10:
		return "1-10"
	case page <= 50:
		return "11-50"
	case page <= 100:
		return "51-100"
	default:
		return "100+"
	}
}
