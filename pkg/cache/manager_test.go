package cache

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
)

// setupTestRedis connects to a local Redis and skips when none is reachable.
// The browse package runs the same flow against a testcontainers Redis.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Use a separate DB for tests
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

func TestNewManager_MemoryOnly(t *testing.T) {
	manager := NewManager(nil)
	if manager == nil {
		t.Fatal("NewManager returned nil")
	}
	if manager.redis != nil {
		t.Error("Manager redis client should be nil")
	}
	if manager.staleRetention != DefaultStaleRetention {
		t.Errorf("staleRetention = %v, want %v", manager.staleRetention, DefaultStaleRetention)
	}
}

func TestManager_Memory_SetAndGet(t *testing.T) {
	manager := NewManager(nil)
	ctx := context.Background()
	key := CacheKey{Endpoint: "/api/v2/pokemon/25"}

	entry := &CacheEntry{
		Data:       []byte(`{"id": 25}`),
		ETag:       `"abc"`,
		Expires:    time.Now().Add(time.Hour),
		StatusCode: 200,
	}

	if err := manager.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := manager.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got.Data) != string(entry.Data) {
		t.Errorf("Data = %s, want %s", got.Data, entry.Data)
	}
	if got.IsExpired() {
		t.Error("entry should be fresh")
	}

	// Returned entries are copies
	got.ETag = "mutated"
	again, _ := manager.Get(ctx, key)
	if again.ETag != `"abc"` {
		t.Errorf("ETag = %v, stored entry was mutated through Get", again.ETag)
	}
}

func TestManager_Memory_Miss(t *testing.T) {
	manager := NewManager(nil)

	_, err := manager.Get(context.Background(), CacheKey{Endpoint: "/api/v2/pokemon/404"})
	if !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get() error = %v, want ErrCacheMiss", err)
	}
}

func TestManager_Memory_StaleRetention(t *testing.T) {
	manager := NewManager(nil)
	ctx := context.Background()
	key := CacheKey{Endpoint: "/api/v2/pokemon/1"}

	stale := &CacheEntry{Data: []byte(`{}`), Expires: time.Now().Add(-time.Minute)}
	if err := manager.Set(ctx, key, stale); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := manager.Get(ctx, key)
	if err != nil {
		t.Fatalf("stale entry within retention should be returned, got %v", err)
	}
	if !got.IsExpired() {
		t.Error("entry should be reported as expired")
	}

	manager.SetStaleRetention(time.Second)
	if _, err := manager.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get() past retention error = %v, want ErrCacheMiss", err)
	}
	if manager.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after retention purge", manager.Len())
	}
}

func TestManager_Memory_UpdateTTLAndDelete(t *testing.T) {
	manager := NewManager(nil)
	ctx := context.Background()
	key := CacheKey{Endpoint: "/api/v2/pokemon/7"}

	if err := manager.Set(ctx, key, &CacheEntry{Data: []byte(`{}`), Expires: time.Now().Add(-time.Minute)}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	newExpires := time.Now().Add(time.Hour)
	if err := manager.UpdateTTL(ctx, key, newExpires); err != nil {
		t.Fatalf("UpdateTTL failed: %v", err)
	}
	got, err := manager.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !got.Expires.Equal(newExpires) {
		t.Errorf("Expires = %v, want %v", got.Expires, newExpires)
	}

	if err := manager.Delete(ctx, key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := manager.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get() after Delete error = %v, want ErrCacheMiss", err)
	}
}

func TestManager_MemoryBytes(t *testing.T) {
	manager := NewManager(nil)
	ctx := context.Background()
	key := CacheKey{Endpoint: "/api/v2/pokemon/25"}
	gaugeBefore := testutil.ToFloat64(CacheSize)

	entry := &CacheEntry{Data: []byte(`{"id":25}`), Expires: time.Now().Add(-time.Minute)}
	if err := manager.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	want := len(entry.Data)

	// A 304 refresh rewrites the same key and must not grow the size.
	for i := 0; i < 3; i++ {
		if err := manager.UpdateTTL(ctx, key, time.Now().Add(time.Hour)); err != nil {
			t.Fatalf("UpdateTTL failed: %v", err)
		}
	}
	if got := manager.MemoryBytes(); got != want {
		t.Errorf("MemoryBytes() after refresh = %d, want %d", got, want)
	}
	if got := testutil.ToFloat64(CacheSize) - gaugeBefore; got != float64(want) {
		t.Errorf("CacheSize delta = %v, want %d", got, want)
	}

	bigger := &CacheEntry{Data: []byte(`{"id":25,"name":"pikachu"}`), Expires: time.Now().Add(time.Hour)}
	if err := manager.Set(ctx, key, bigger); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if got := manager.MemoryBytes(); got != len(bigger.Data) {
		t.Errorf("MemoryBytes() after overwrite = %d, want %d", got, len(bigger.Data))
	}

	if err := manager.Delete(ctx, key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if got := manager.MemoryBytes(); got != 0 {
		t.Errorf("MemoryBytes() after Delete = %d, want 0", got)
	}
	if got := testutil.ToFloat64(CacheSize) - gaugeBefore; got != 0 {
		t.Errorf("CacheSize delta after Delete = %v, want 0", got)
	}
}

func TestManager_Set_NilEntry(t *testing.T) {
	manager := NewManager(nil)

	if err := manager.Set(context.Background(), CacheKey{Endpoint: "/x"}, nil); err == nil {
		t.Error("Set with nil entry should return error")
	}
}

func TestManager_Redis_SetAndGet(t *testing.T) {
	client := setupTestRedis(t)
	writer := NewManager(client)
	ctx := context.Background()

	key := CacheKey{Endpoint: "/api/v2/pokemon/25"}
	entry := &CacheEntry{
		Data:       []byte(`{"id": 25, "name": "pikachu"}`),
		ETag:       `"abc123"`,
		Expires:    time.Now().Add(5 * time.Minute),
		StatusCode: 200,
		Headers:    http.Header{"Content-Type": []string{"application/json"}},
		CachedAt:   time.Now(),
	}

	if err := writer.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// A second manager has an empty memory layer and must read through Redis
	reader := NewManager(client)
	got, err := reader.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got.Data) != string(entry.Data) {
		t.Errorf("Data mismatch: got %s, want %s", got.Data, entry.Data)
	}
	if got.ETag != entry.ETag {
		t.Errorf("ETag mismatch: got %s, want %s", got.ETag, entry.ETag)
	}
	if reader.Len() != 1 {
		t.Errorf("reader memory Len() = %d, want 1 after read-through", reader.Len())
	}

	ttl, err := client.TTL(ctx, key.String()).Result()
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl <= DefaultStaleRetention {
		t.Errorf("redis TTL = %v, want fresh period + stale retention", ttl)
	}
}

func TestManager_Redis_Delete(t *testing.T) {
	client := setupTestRedis(t)
	manager := NewManager(client)
	ctx := context.Background()
	key := CacheKey{Endpoint: "/api/v2/berry/1"}

	if err := manager.Set(ctx, key, &CacheEntry{Data: []byte(`{}`), Expires: time.Now().Add(time.Minute)}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := manager.Delete(ctx, key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := NewManager(client).Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss after Delete, got %v", err)
	}
}
