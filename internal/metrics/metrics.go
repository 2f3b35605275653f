package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "omnisearch",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "omnisearch",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 20},
	}, []string{"method", "path"})

	ProviderRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "omnisearch",
		Name:      "provider_requests_total",
		Help:      "Fan-out task outcomes by provider id and status (ok, error, timeout, rate_limited, unhealthy, cancelled).",
	}, []string{"provider", "status"})

	ProviderRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "omnisearch",
		Name:      "provider_request_duration_seconds",
		Help:      "Upstream provider call duration in seconds.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
	}, []string{"provider"})

	ProviderHealthy = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "omnisearch",
		Name:      "provider_healthy",
		Help:      "Whether a provider is healthy (1) or blocked after consecutive failures (0).",
	}, []string{"provider"})

	FanoutInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "omnisearch",
		Name:      "fanout_inflight_tasks",
		Help:      "Fan-out tasks currently holding a concurrency permit.",
	})

	CacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "omnisearch",
		Name:      "cache_hits_total",
		Help:      "Total number of search cache hits.",
	})

	CacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "omnisearch",
		Name:      "cache_misses_total",
		Help:      "Total number of search cache misses.",
	})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		ProviderRequestsTotal,
		ProviderRequestDuration,
		ProviderHealthy,
		FanoutInFlight,
		CacheHitsTotal,
		CacheMissesTotal,
	)
}
