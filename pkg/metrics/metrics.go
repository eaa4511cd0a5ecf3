// Package metrics is the reference for every Prometheus metric the browser
// exports. The metrics themselves are defined in their owning packages
// (client, cache, ratelimit, pagination, generation, state, urlsync) to
// avoid circular dependencies.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer every package registers into via promauto.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer paired with Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler serves Registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - pokeapi_requests_total{resource, status} (Counter): Requests by resource and HTTP status
//   - pokeapi_request_duration_seconds{resource} (Histogram): Request duration by resource
//   - pokeapi_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//
// Retry Metrics (pkg/client):
//   - pokeapi_retries_total{error_class} (Counter): Retry attempts by error class
//   - pokeapi_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - pokeapi_retry_exhausted_total{error_class} (Counter): Fetches that used every attempt
//
// Cache Metrics (pkg/cache):
//   - pokeapi_cache_hits_total{layer} (Counter): Cache hits by layer (memory, redis)
//   - pokeapi_cache_misses_total (Counter): Cache misses
//   - pokeapi_cache_stale_total (Counter): Hits on expired entries that need revalidation
//   - pokeapi_cache_memory_bytes (Gauge): Bytes held by the memory layer
//   - pokeapi_cache_bytes_written_total{layer} (Counter): Bytes written per layer
//   - pokeapi_304_responses_total (Counter): 304 Not Modified responses
//   - pokeapi_conditional_requests_total (Counter): Requests sent with If-None-Match
//   - pokeapi_cache_errors_total{operation} (Counter): Cache operation errors
//
// Quota Metrics (pkg/ratelimit):
//   - pokeapi_rate_limit_remaining (Gauge): Last observed upstream quota
//   - pokeapi_rate_limit_blocks_total (Counter): Requests refused locally while blocked
//   - pokeapi_rate_limit_throttles_total (Counter): Requests delayed while the quota is low
//
// Batch Metrics (pkg/pagination):
//   - pokeapi_batches_total{resource} (Counter): Detail fetches started
//   - pokeapi_batch_chunks_total{resource} (Counter): Chunks executed
//   - pokeapi_batch_duration_seconds{resource} (Histogram): Whole detail fetch duration
//   - pokeapi_batch_failures_total{resource} (Counter): Detail fetches that failed
//   - pokeapi_list_pages_total{resource} (Counter): List pages walked
//
// Generation Metrics (pkg/generation):
//   - pokeapi_generation_index_builds_total{result} (Counter): Index builds by outcome
//   - pokeapi_generation_index_species (Gauge): Species in the current index
//
// Browse State Metrics (pkg/state, pkg/urlsync):
//   - pokeapi_state_changes_total{kind} (Counter): Store changes by kind
//   - pokeapi_url_writes_total{result} (Counter): Query-string pushes by outcome
//   - pokeapi_url_navigations_total{result} (Counter): Navigations applied or ignored
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(pokeapi_cache_hits_total[5m])) /
//   (sum(rate(pokeapi_cache_hits_total[5m])) + sum(rate(pokeapi_cache_misses_total[5m])))
//
//   # Retry Pressure
//   sum by (error_class) (rate(pokeapi_retries_total[5m]))
//
//   # P95 Detail Load Latency
//   histogram_quantile(0.95, rate(pokeapi_batch_duration_seconds_bucket[5m]))
//
//   # 304 Response Rate
//   rate(pokeapi_304_responses_total[5m]) / rate(pokeapi_requests_total[5m])
