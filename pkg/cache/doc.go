// Package cache provides the upstream response cache used by the catalog client.
//
// The cache is an explicit, injected collaborator: callers pass a Store to the
// client, and every read and write goes through it. Two implementations ship
// with the package:
//
//   - Manager: Redis-backed, shared between proxy instances
//   - MemoryStore: in-process map with TTL eviction, for single instances and tests
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	store := cache.NewManager(redisClient)
//
//	key := cache.KeyForURL(req.URL)
//	entry, err := store.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from upstream
//	}
//
// # Freshness
//
// An entry is fresh until Expires. Freshness is taken from the response in
// this order: Cache-Control max-age, Expires, then the configured default TTL.
// Stores keep entries for StaleGrace past Expires so that a stale entry can be
// revalidated with a conditional request instead of refetched.
//
// # Conditional Requests
//
//	if entry.IsExpired() && cache.ShouldMakeConditionalRequest(entry) {
//		cache.AddConditionalHeaders(req, entry)
//		// 304 Not Modified -> store.UpdateTTL + cache.EntryToResponse(entry)
//	}
//
// # Metrics
//
//   - catalog_cache_hits_total{layer} - fresh or revalidated hits
//   - catalog_cache_misses_total{layer} - misses
//   - catalog_cache_bytes_written_total{layer} - bytes stored
//   - catalog_cache_entries{layer} - live entries (memory layer)
//   - catalog_cache_errors_total{operation} - store operation errors
//   - catalog_304_responses_total - successful revalidations
//   - catalog_conditional_requests_total - conditional requests sent
package cache
