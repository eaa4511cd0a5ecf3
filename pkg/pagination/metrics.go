package pagination

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	batchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pokeapi_batches_total",
		Help: "Total scheduler batches by resource",
	}, []string{"resource"})

	chunksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pokeapi_batch_chunks_total",
		Help: "Total scheduler chunks by resource",
	}, []string{"resource"})

	batchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pokeapi_batch_duration_seconds",
		Help:    "Duration of one scheduler batch by resource",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"resource"})

	fetchFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pokeapi_batch_failures_total",
		Help: "Total FetchAllDetails calls that failed by resource",
	}, []string{"resource"})

	listPagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pokeapi_list_pages_total",
		Help: "Total list envelope pages walked by resource",
	}, []string{"resource"})
)
