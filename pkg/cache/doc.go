// Package cache provides time-based response caching for catalog requests,
// with an in-process layer and an optional shared Redis layer.
//
// Catalog data is effectively static, so staleness is purely time based:
//
// - Entries are fresh until their Expires time (from the Expires header, or
//   the manager's default TTL when the upstream sends none)
// - Stale entries are retained for StaleRetention so they can be revalidated
//   with a conditional request (If-None-Match / If-Modified-Since)
// - A 304 Not Modified response refreshes the entry's expiry in place
// - There is no size-based eviction
//
// # Basic Usage
//
//	// Memory only
//	manager := cache.NewManager(nil)
//
//	// Memory + Redis
//	manager := cache.NewManager(redis.NewClient(&redis.Options{Addr: "localhost:6379"}))
//
//	key := cache.CacheKey{Endpoint: "/api/v2/pokemon/25"}
//
//	entry, err := manager.Get(ctx, key)
//	switch {
//	case errors.Is(err, cache.ErrCacheMiss):
//		// fetch from upstream
//	case entry.IsExpired():
//		cache.AddConditionalHeaders(req, entry)
//	default:
//		// serve entry.Data
//	}
//
// # Metrics
//
//   - pokeapi_cache_hits_total{layer} - fresh hits by layer (memory, redis)
//   - pokeapi_cache_misses_total - misses
//   - pokeapi_cache_stale_total - stale entries returned for revalidation
//   - pokeapi_cache_memory_bytes - bytes held by the memory layer
//   - pokeapi_cache_bytes_written_total{layer} - bytes written per layer
//   - pokeapi_304_responses_total - successful revalidations
//   - pokeapi_conditional_requests_total - conditional requests sent
//   - pokeapi_cache_errors_total{operation} - Redis operation errors
package cache
