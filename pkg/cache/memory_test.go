package cache

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestMemoryStore_SetAndGet(t *testing.T) {
	store := NewMemoryStore(10)
	ctx := context.Background()
	key := CacheKey{Endpoint: "pokeapi.co/api/v2/pokemon/1/"}

	entry := &CacheEntry{
		Data:       []byte(`{"id":1,"name":"bulbasaur"}`),
		ETag:       `"abc"`,
		Expires:    time.Now().Add(5 * time.Minute),
		StatusCode: 200,
	}

	if err := store.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got.Data) != string(entry.Data) {
		t.Errorf("Data = %s, want %s", got.Data, entry.Data)
	}
	if got.ETag != entry.ETag {
		t.Errorf("ETag = %s, want %s", got.ETag, entry.ETag)
	}

	// Mutating the returned copy must not leak into the store.
	got.Data[0] = 'X'
	again, _ := store.Get(ctx, key)
	if string(again.Data) != string(entry.Data) {
		t.Errorf("stored data was mutated through returned entry: %s", again.Data)
	}
}

func TestMemoryStore_Miss(t *testing.T) {
	store := NewMemoryStore(0)

	_, err := store.Get(context.Background(), CacheKey{Endpoint: "missing"})
	if !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss, got %v", err)
	}
	if store.maxEntries != DefaultMemoryEntries {
		t.Errorf("maxEntries = %d, want default %d", store.maxEntries, DefaultMemoryEntries)
	}
}

func TestMemoryStore_StaleEntryRetainedForRevalidation(t *testing.T) {
	store := NewMemoryStore(10)
	ctx := context.Background()

	withValidator := CacheKey{Endpoint: "with-etag"}
	withoutValidator := CacheKey{Endpoint: "no-etag"}
	expired := time.Now().Add(-time.Minute)

	_ = store.Set(ctx, withValidator, &CacheEntry{Data: []byte("a"), ETag: `"v1"`, Expires: expired})
	_ = store.Set(ctx, withoutValidator, &CacheEntry{Data: []byte("b"), Expires: expired})

	got, err := store.Get(ctx, withValidator)
	if err != nil {
		t.Fatalf("stale entry with validator should be retained: %v", err)
	}
	if !got.IsExpired() {
		t.Error("retained entry should report expired")
	}

	if _, err := store.Get(ctx, withoutValidator); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("stale entry without validator should not be stored, got %v", err)
	}
}

func TestMemoryStore_NoStoreSkipped(t *testing.T) {
	tests := []struct {
		name         string
		cacheControl string
		wantStored   bool
	}{
		{name: "no-store with etag", cacheControl: "no-store", wantStored: false},
		{name: "no-store among directives", cacheControl: "private, No-Store, max-age=60", wantStored: false},
		{name: "no-cache with etag kept for revalidation", cacheControl: "no-cache", wantStored: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryStore(10)
			ctx := context.Background()
			key := CacheKey{Endpoint: "pokeapi.co/api/v2/pokemon/25/"}

			resp := &http.Response{
				StatusCode: http.StatusOK,
				Header: http.Header{
					"Cache-Control": []string{tt.cacheControl},
					"Etag":          []string{`"pika"`},
				},
				Body: io.NopCloser(strings.NewReader(`{"id":25}`)),
			}
			entry, err := ResponseToEntry(resp, 0)
			if err != nil {
				t.Fatalf("ResponseToEntry failed: %v", err)
			}

			if err := store.Set(ctx, key, entry); err != nil {
				t.Fatalf("Set failed: %v", err)
			}

			_, err = store.Get(ctx, key)
			if tt.wantStored && err != nil {
				t.Errorf("Get error = %v, want stored entry", err)
			}
			if !tt.wantStored && !errors.Is(err, ErrCacheMiss) {
				t.Errorf("Get error = %v, want ErrCacheMiss", err)
			}
		})
	}
}

func TestMemoryStore_EvictsAfterGrace(t *testing.T) {
	store := NewMemoryStore(10)
	ctx := context.Background()
	key := CacheKey{Endpoint: "evict"}

	now := time.Now()
	store.now = func() time.Time { return now }
	_ = store.Set(ctx, key, &CacheEntry{Data: []byte("x"), Expires: now.Add(time.Minute)})

	store.now = func() time.Time { return now.Add(time.Minute + StaleGrace + time.Second) }
	if _, err := store.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss after grace period, got %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("Len() = %d, want 0", store.Len())
	}
}

func TestMemoryStore_CapacityEvictsClosestToExpiry(t *testing.T) {
	store := NewMemoryStore(2)
	ctx := context.Background()

	soon := CacheKey{Endpoint: "soon"}
	later := CacheKey{Endpoint: "later"}
	newest := CacheKey{Endpoint: "newest"}

	_ = store.Set(ctx, soon, &CacheEntry{Data: []byte("1"), Expires: time.Now().Add(time.Minute)})
	_ = store.Set(ctx, later, &CacheEntry{Data: []byte("2"), Expires: time.Now().Add(time.Hour)})
	_ = store.Set(ctx, newest, &CacheEntry{Data: []byte("3"), Expires: time.Now().Add(time.Hour)})

	if store.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", store.Len())
	}
	if _, err := store.Get(ctx, soon); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("entry closest to expiry should have been evicted, got %v", err)
	}
	if _, err := store.Get(ctx, later); err != nil {
		t.Errorf("later entry should survive: %v", err)
	}
	if _, err := store.Get(ctx, newest); err != nil {
		t.Errorf("newest entry should be stored: %v", err)
	}
}

func TestMemoryStore_UpdateTTL(t *testing.T) {
	store := NewMemoryStore(10)
	ctx := context.Background()
	key := CacheKey{Endpoint: "ttl"}

	_ = store.Set(ctx, key, &CacheEntry{Data: []byte("x"), ETag: `"e"`, Expires: time.Now().Add(-time.Second)})

	newExpires := time.Now().Add(10 * time.Minute)
	if err := store.UpdateTTL(ctx, key, newExpires); err != nil {
		t.Fatalf("UpdateTTL failed: %v", err)
	}

	got, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.IsExpired() {
		t.Error("entry should be fresh after UpdateTTL")
	}

	if err := store.UpdateTTL(ctx, CacheKey{Endpoint: "none"}, newExpires); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("UpdateTTL on missing key = %v, want ErrCacheMiss", err)
	}
}

func TestMemoryStore_DeleteAndNil(t *testing.T) {
	store := NewMemoryStore(10)
	ctx := context.Background()
	key := CacheKey{Endpoint: "del"}

	if err := store.Set(ctx, key, nil); err == nil {
		t.Error("Set with nil entry should return error")
	}

	_ = store.Set(ctx, key, &CacheEntry{Data: []byte("x"), Expires: time.Now().Add(time.Minute)})
	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss after Delete, got %v", err)
	}
	if err := store.Ping(ctx); err != nil {
		t.Errorf("Ping() = %v", err)
	}
}
