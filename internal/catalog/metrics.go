package catalog

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	providerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_provider_requests_total",
			Help: "Content provider requests by endpoint and outcome",
		},
		[]string{"endpoint", "outcome"},
	)

	providerLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalog_provider_request_seconds",
			Help:    "Content provider request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	cacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_cache_lookups_total",
			Help: "Catalog listing cache lookups by result",
		},
		[]string{"result"},
	)

	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "catalog_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)
