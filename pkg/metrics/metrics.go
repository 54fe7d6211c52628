package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	JobsInQueue = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "harvest_jobs_in_queue",
			Help: "Current number of harvest jobs waiting in the queue.",
		},
	)

	// PagesTotal counts page renders; phase is "discovery" or "extraction".
	PagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvest_pages_total",
			Help: "Total number of pages rendered.",
		},
		[]string{"category", "phase", "status"},
	)

	PhaseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "harvest_phase_duration_seconds",
			Help:    "Duration of harvest phases.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 900, 1800},
		},
		[]string{"category", "phase"},
	)

	RecordsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvest_records_dropped_total",
			Help: "Records removed from a dataset, by reason.",
		},
		[]string{"category", "reason"},
	)

	EmbeddingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvest_embeddings_total",
			Help: "Embedding computations by outcome.",
		},
		[]string{"status"},
	)
)
