package httpsource

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kgview_source_requests_total",
		Help: "HTTP requests issued to the graph API by endpoint and result",
	}, []string{"endpoint", "result"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kgview_source_request_duration_seconds",
		Help:    "Latency of graph API requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kgview_source_cache_lookups_total",
		Help: "Snapshot cache lookups by result (hit, miss)",
	}, []string{"result"})

	breakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kgview_source_breaker_open",
		Help: "1 while the graph API circuit breaker is open",
	})
)
