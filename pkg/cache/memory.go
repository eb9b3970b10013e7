package cache

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultMemoryEntries bounds a MemoryStore created with a non-positive size.
const DefaultMemoryEntries = 4096

type memoryItem struct {
	entry   CacheEntry
	evictAt time.Time
}

// MemoryStore is an in-process Store. Entries are dropped StaleGrace after
// they expire; when full, the entry closest to eviction is dropped first.
type MemoryStore struct {
	mu         sync.Mutex
	items      map[string]memoryItem
	maxEntries int
	now        func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-process store holding at most maxEntries.
func NewMemoryStore(maxEntries int) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = DefaultMemoryEntries
	}
	return &MemoryStore{
		items:      make(map[string]memoryItem),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get returns a copy of the stored entry.
func (s *MemoryStore) Get(_ context.Context, key CacheKey) (*CacheEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key.String()
	item, ok := s.items[k]
	if !ok {
		CacheMisses.WithLabelValues(layerMemory).Inc()
		return nil, ErrCacheMiss
	}
	if s.now().After(item.evictAt) {
		delete(s.items, k)
		CacheEntries.WithLabelValues(layerMemory).Set(float64(len(s.items)))
		CacheMisses.WithLabelValues(layerMemory).Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues(layerMemory).Inc()
	entry := cloneEntry(item.entry)
	return &entry, nil
}

// Set stores a copy of entry.
func (s *MemoryStore) Set(_ context.Context, key CacheKey, entry *CacheEntry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}
	if !worthStoring(entry) {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := key.String()
	if _, exists := s.items[k]; !exists && len(s.items) >= s.maxEntries {
		s.evictLocked()
	}

	s.items[k] = memoryItem{
		entry:   cloneEntry(*entry),
		evictAt: s.now().Add(entry.retention()),
	}

	CacheBytesWritten.WithLabelValues(layerMemory).Add(float64(len(entry.Data)))
	CacheEntries.WithLabelValues(layerMemory).Set(float64(len(s.items)))

	return nil
}

// Delete removes a cache entry.
func (s *MemoryStore) Delete(_ context.Context, key CacheKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, key.String())
	CacheEntries.WithLabelValues(layerMemory).Set(float64(len(s.items)))

	return nil
}

// UpdateTTL moves the Expires time of an existing entry.
func (s *MemoryStore) UpdateTTL(ctx context.Context, key CacheKey, newExpires time.Time) error {
	entry, err := s.Get(ctx, key)
	if err != nil {
		return err
	}

	entry.Expires = newExpires

	return s.Set(ctx, key, entry)
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

// Len returns the number of retained entries, stale ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// evictLocked drops expired items, or the single item closest to eviction
// if none have expired. Caller holds s.mu.
func (s *MemoryStore) evictLocked() {
	now := s.now()

	var (
		oldestKey string
		oldestAt  time.Time
	)
	for k, item := range s.items {
		if now.After(item.evictAt) {
			delete(s.items, k)
			continue
		}
		if oldestKey == "" || item.evictAt.Before(oldestAt) {
			oldestKey, oldestAt = k, item.evictAt
		}
	}

	if len(s.items) >= s.maxEntries && oldestKey != "" {
		delete(s.items, oldestKey)
	}
}

func cloneEntry(e CacheEntry) CacheEntry {
	e.Data = append([]byte(nil), e.Data...)
	e.Headers = e.Headers.Clone()
	return e
}
