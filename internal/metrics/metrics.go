package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	APICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heatscope_api_calls_total",
			Help: "Total UHI backend API calls",
		},
		[]string{"operation", "status"},
	)

	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "heatscope_api_latency_seconds",
			Help:    "UHI backend API call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	DataPointsLoaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "heatscope_data_points_loaded_total",
			Help: "Total data points loaded into the viewport",
		},
	)

	StaleFetchesDiscarded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "heatscope_stale_fetches_discarded_total",
			Help: "Viewport fetches discarded because a newer fetch superseded them",
		},
	)
)
