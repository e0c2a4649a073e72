package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tickTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kgview_engine_ticks_total",
		Help: "Ticks run by mounted engines",
	})

	tickPanics = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kgview_engine_tick_panics_total",
		Help: "Panics recovered inside the tick loop",
	})

	fetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kgview_engine_fetch_total",
		Help: "Snapshot fetches by mode and result",
	}, []string{"mode", "result"})

	fetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kgview_engine_fetch_duration_seconds",
		Help:    "Snapshot fetch latency",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
	}, []string{"mode"})

	staleResults = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kgview_engine_stale_results_total",
		Help: "Fetch results discarded because a newer request was issued",
	})

	droppedEdges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kgview_engine_dropped_edges_total",
		Help: "Edges dropped during ingestion because an endpoint was missing",
	})

	installedNodes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kgview_engine_snapshot_nodes",
		Help:    "Node count of installed snapshots",
		Buckets: []float64{0, 1, 10, 50, 100, 250, 500},
	})
)
