package uwf

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "uwf_query_duration_seconds",
			Help:    "Duration of a single class query within a collection cycle.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		},
		[]string{"store", "outcome"},
	)

	collections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uwf_collections_total",
			Help: "Collection cycles by outcome.",
		},
		[]string{"outcome"},
	)
)

// taskOutcome labels a single query result for metrics.
func taskOutcome(code ErrorCode) string {
	switch {
	case code.Has(OperationCancelled):
		return "cancelled"
	case code.Has(ConnectionTestFailed):
		return "unreachable"
	case code.Has(ErrorOccurred):
		return "error"
	case code.Has(DataAvailable):
		return "data"
	default:
		return "no_data"
	}
}
