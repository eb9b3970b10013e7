package cache

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// setupTestRedis connects to a local Redis on DB 15 and skips when none is
// running. The integration build tag runs the same checks against a container.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func TestNewManager(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	manager := NewManager(client)
	if manager == nil {
		t.Fatal("NewManager returned nil")
	}
	if manager.redis != client {
		t.Error("Manager redis client not set correctly")
	}
}

func TestNewManager_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewManager should panic with nil redis client")
		}
	}()
	NewManager(nil)
}

func TestManager(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store {
		return NewManager(setupTestRedis(t))
	})
}

func TestManager_CorruptedEntry(t *testing.T) {
	client := setupTestRedis(t)
	manager := NewManager(client)
	ctx := context.Background()
	key := CacheKey{Endpoint: "pokeapi.co/api/v2/pokemon/corrupt/"}

	if err := client.Set(ctx, key.String(), "{not json", time.Minute).Err(); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	if _, err := manager.Get(ctx, key); !errors.Is(err, ErrInvalidEntry) {
		t.Fatalf("Expected ErrInvalidEntry, got %v", err)
	}
	if _, err := manager.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("corrupted entry should be dropped, got %v", err)
	}
}

func TestManager_SetUsesRetentionTTL(t *testing.T) {
	client := setupTestRedis(t)
	manager := NewManager(client)
	ctx := context.Background()
	key := CacheKey{Endpoint: "pokeapi.co/api/v2/pokemon/ttl/"}

	_ = manager.Set(ctx, key, &CacheEntry{Data: []byte("x"), Expires: time.Now().Add(time.Minute)})

	ttl, err := client.TTL(ctx, key.String()).Result()
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl <= StaleGrace || ttl > StaleGrace+time.Minute {
		t.Errorf("redis TTL = %v, want between %v and %v", ttl, StaleGrace, StaleGrace+time.Minute)
	}
}

// runStoreSuite checks the Store contract against any implementation.
func runStoreSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("set_and_get", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		key := CacheKey{Endpoint: "pokeapi.co/api/v2/pokemon/", QueryParams: map[string][]string{"limit": {"2"}}}

		entry := &CacheEntry{
			Data:         []byte(`{"count":1302,"results":[]}`),
			ETag:         `"abc123"`,
			Expires:      time.Now().Add(5 * time.Minute),
			LastModified: time.Now().Add(-1 * time.Hour),
			StatusCode:   200,
			Headers:      http.Header{"Content-Type": []string{"application/json"}},
			CachedAt:     time.Now(),
		}

		if err := store.Set(ctx, key, entry); err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		got, err := store.Get(ctx, key)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(got.Data) != string(entry.Data) {
			t.Errorf("Data mismatch: got %s, want %s", got.Data, entry.Data)
		}
		if got.ETag != entry.ETag {
			t.Errorf("ETag mismatch: got %s, want %s", got.ETag, entry.ETag)
		}
		if got.StatusCode != entry.StatusCode {
			t.Errorf("StatusCode mismatch: got %d, want %d", got.StatusCode, entry.StatusCode)
		}
	})

	t.Run("miss", func(t *testing.T) {
		store := newStore(t)
		if _, err := store.Get(context.Background(), CacheKey{Endpoint: "nonexistent"}); !errors.Is(err, ErrCacheMiss) {
			t.Errorf("Expected ErrCacheMiss, got %v", err)
		}
	})

	t.Run("expired_without_validator_not_stored", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		key := CacheKey{Endpoint: "expired"}

		if err := store.Set(ctx, key, &CacheEntry{Data: []byte("x"), Expires: time.Now().Add(-time.Hour)}); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		if _, err := store.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
			t.Errorf("Expected ErrCacheMiss for expired entry, got %v", err)
		}
	})

	t.Run("delete", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		key := CacheKey{Endpoint: "delete"}

		_ = store.Set(ctx, key, &CacheEntry{Data: []byte("x"), Expires: time.Now().Add(time.Minute)})
		if err := store.Delete(ctx, key); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, err := store.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
			t.Errorf("Expected ErrCacheMiss after Delete, got %v", err)
		}
	})

	t.Run("update_ttl", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		key := CacheKey{Endpoint: "update-ttl"}

		_ = store.Set(ctx, key, &CacheEntry{Data: []byte("x"), ETag: `"e"`, Expires: time.Now().Add(time.Minute)})

		newExpires := time.Now().Add(10 * time.Minute)
		if err := store.UpdateTTL(ctx, key, newExpires); err != nil {
			t.Fatalf("UpdateTTL failed: %v", err)
		}

		got, err := store.Get(ctx, key)
		if err != nil {
			t.Fatalf("Get after UpdateTTL failed: %v", err)
		}
		diff := got.Expires.Sub(newExpires)
		if diff < -time.Second || diff > time.Second {
			t.Errorf("Expires not updated: got %v, want %v", got.Expires, newExpires)
		}
	})

	t.Run("nil_entry", func(t *testing.T) {
		store := newStore(t)
		if err := store.Set(context.Background(), CacheKey{Endpoint: "nil"}, nil); err == nil {
			t.Error("Set with nil entry should return error")
		}
	})

	t.Run("ping", func(t *testing.T) {
		store := newStore(t)
		if err := store.Ping(context.Background()); err != nil {
			t.Errorf("Ping() = %v", err)
		}
	})
}

func TestMemoryStore_Contract(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store {
		return NewMemoryStore(16)
	})
}
