package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Store is the contract the upstream client caches through.
//
// Get returns entries that are still retained, including stale ones inside
// StaleGrace; callers check IsExpired to decide between serving and
// revalidating.
type Store interface {
	Get(ctx context.Context, key CacheKey) (*CacheEntry, error)
	Set(ctx context.Context, key CacheKey, entry *CacheEntry) error
	Delete(ctx context.Context, key CacheKey) error
	UpdateTTL(ctx context.Context, key CacheKey, newExpires time.Time) error
	Ping(ctx context.Context) error
}

// worthStoring reports whether an entry may be kept and can ever be served
// again: it was not marked no-store, and it is either still fresh or has a
// validator for revalidation.
func worthStoring(entry *CacheEntry) bool {
	if noStore(entry.Headers) {
		return false
	}
	return !entry.IsExpired() || ShouldMakeConditionalRequest(entry)
}
