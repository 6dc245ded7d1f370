package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ingestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "filestream_ingest_total",
		Help: "Ingestion attempts by outcome code.",
	}, []string{"code"})

	ingestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "filestream_ingest_duration_seconds",
		Help:    "Duration of ingestion attempts by outcome code.",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	}, []string{"code"})

	ingestBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "filestream_ingest_bytes_total",
		Help: "Bytes of successfully ingested files.",
	})

	cleanupTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "filestream_ingest_cleanup_total",
		Help: "Removal of blobs orphaned by failed ingestions.",
	}, []string{"result"})
)
