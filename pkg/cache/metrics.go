package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks fresh cache hits by layer (memory, redis)
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pokeapi_cache_hits_total",
			Help: "Total number of catalog cache hits",
		},
		[]string{"layer"},
	)

	// CacheMisses tracks cache misses
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pokeapi_cache_misses_total",
			Help: "Total number of catalog cache misses",
		},
	)

	// CacheStale tracks stale entries handed out for revalidation
	CacheStale = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pokeapi_cache_stale_total",
			Help: "Total number of stale catalog cache entries returned for revalidation",
		},
	)

	// CacheSize tracks the bytes currently held by the memory layer
	CacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pokeapi_cache_memory_bytes",
			Help: "Bytes currently held by the in-process catalog cache",
		},
	)

	// CacheBytesWritten tracks bytes written by layer (memory, redis)
	CacheBytesWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pokeapi_cache_bytes_written_total",
			Help: "Total bytes written to the catalog cache",
		},
		[]string{"layer"},
	)

	// NotModifiedResponses tracks 304 Not Modified responses
	NotModifiedResponses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pokeapi_304_responses_total",
			Help: "Total number of 304 Not Modified responses",
		},
	)

	// ConditionalRequestsSent tracks requests sent with validators
	ConditionalRequestsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pokeapi_conditional_requests_total",
			Help: "Total number of conditional requests sent",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pokeapi_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
