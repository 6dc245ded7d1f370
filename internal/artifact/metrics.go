package artifact

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	storeAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "filestream_artifact_store_attempts_total",
		Help: "Blob store attempts by backend and result.",
	}, []string{"backend", "result"})

	storeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "filestream_artifact_store_duration_seconds",
		Help:    "Duration of a single blob store attempt.",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	}, []string{"backend"})

	deletesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "filestream_artifact_deletes_total",
		Help: "Blob deletions by backend and result.",
	}, []string{"backend", "result"})
)
