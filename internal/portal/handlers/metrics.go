package handlers

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the portal HTTP surface.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ScopedOut       prometheus.Counter
}

// NewMetrics initializes and registers the portal metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "company_portal",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of handled requests by method and status.",
		}, []string{"method", "status"}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "company_portal",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Request handling latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		ScopedOut: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "company_portal",
			Subsystem: "scope",
			Name:      "records_excluded_total",
			Help:      "Records dropped by the tenant scoping filter across all list endpoints.",
		}),
	}
}
