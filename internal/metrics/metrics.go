package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "playresolver",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "playresolver",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 20},
	}, []string{"method", "path"})

	HTTPOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "playresolver",
		Name:      "http_resolve_outcomes_total",
		Help:      "Resolution outcomes returned over HTTP by route and outcome; batch requests count once per play.",
	}, []string{"route", "outcome"})

	HostRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "playresolver",
		Name:      "host_requests_total",
		Help:      "Total requests to metadata hosts by host name and result status.",
	}, []string{"host", "status"})

	HostRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "playresolver",
		Name:      "host_request_duration_seconds",
		Help:      "Metadata host request duration in seconds, including rate limit waits.",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30},
	}, []string{"host"})

	HostAvailable = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "playresolver",
		Name:      "host_available",
		Help:      "Whether a metadata host is available (1) or blocked after failures (0).",
	}, []string{"host"})

	CacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "playresolver",
		Name:      "cache_hits_total",
		Help:      "Total number of search cache hits.",
	})

	CacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "playresolver",
		Name:      "cache_misses_total",
		Help:      "Total number of search cache misses.",
	})

	ResolutionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "playresolver",
		Name:      "resolutions_total",
		Help:      "Resolution calls by outcome (matched, skipped, no_match, config_error, error).",
	}, []string{"outcome"})

	ResolveDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "playresolver",
		Name:      "resolve_duration_seconds",
		Help:      "Duration of a full resolution cascade in seconds.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"outcome"})

	StageResultsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "playresolver",
		Name:      "stage_results_total",
		Help:      "Cascade stage executions by stage and result (candidates, empty, error).",
	}, []string{"stage", "result"})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		HTTPOutcomesTotal,
		HostRequestsTotal,
		HostRequestDuration,
		HostAvailable,
		CacheHitsTotal,
		CacheMissesTotal,
		ResolutionsTotal,
		ResolveDuration,
		StageResultsTotal,
	)
}
