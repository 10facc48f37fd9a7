package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meddoc_events_processed_total",
			Help: "Filesystem events processed by the pipeline, by outcome.",
		},
		[]string{"outcome"},
	)

	classificationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "meddoc_classification_duration_seconds",
			Help:    "Time spent obtaining a classification, by source.",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"source"},
	)

	draftsPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "meddoc_drafts_pending",
		Help: "Draft records awaiting operator approval.",
	})

	confirmsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meddoc_confirms_total",
			Help: "Confirm attempts, by result.",
		},
		[]string{"result"},
	)

	busDropsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meddoc_bus_drops_total",
		Help: "Bus messages dropped because a subscriber buffer was full.",
	})

	dedupHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meddoc_dedup_hits_total",
		Help: "Classifications reused from the content hash cache.",
	})
)
