package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// DefaultStaleRetention is how long stale entries are kept for revalidation.
const DefaultStaleRetention = 7 * 24 * time.Hour

// Manager handles caching operations with a memory layer and an optional
// Redis layer shared between processes.
type Manager struct {
	redis          *redis.Client
	staleRetention time.Duration

	mu     sync.RWMutex
	memory map[string]*CacheEntry
	bytes  int
}

// NewManager creates a new cache manager. redisClient may be nil, in which
// case only the in-process layer is used.
func NewManager(redisClient *redis.Client) *Manager {
	return &Manager{
		redis:          redisClient,
		staleRetention: DefaultStaleRetention,
		memory:         make(map[string]*CacheEntry),
	}
}

// SetStaleRetention overrides how long stale entries are retained.
func (m *Manager) SetStaleRetention(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.staleRetention = d
}

// Get retrieves a cache entry by key.
// Returns ErrCacheMiss if the key doesn't exist or is past its retention.
// A returned entry may be stale; callers check IsExpired.
func (m *Manager) Get(ctx context.Context, key CacheKey) (*CacheEntry, error) {
	cacheKey := key.String()

	if entry, ok := m.getMemory(cacheKey); ok {
		m.countHit(entry, "memory")
		return entry, nil
	}

	if m.redis == nil {
		CacheMisses.Inc()
		return nil, ErrCacheMiss
	}

	data, err := m.redis.Get(ctx, cacheKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			CacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	m.setMemory(cacheKey, &entry)
	m.countHit(&entry, "redis")

	return &entry, nil
}

func (m *Manager) countHit(entry *CacheEntry, layer string) {
	if entry.IsExpired() {
		CacheStale.Inc()
		return
	}
	CacheHits.WithLabelValues(layer).Inc()
}

func (m *Manager) getMemory(cacheKey string) (*CacheEntry, bool) {
	m.mu.RLock()
	entry, ok := m.memory[cacheKey]
	retention := m.staleRetention
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if time.Since(entry.Expires) > retention {
		m.mu.Lock()
		m.deleteMemoryLocked(cacheKey)
		m.mu.Unlock()
		return nil, false
	}

	copied := *entry
	return &copied, true
}

func (m *Manager) setMemory(cacheKey string, entry *CacheEntry) {
	copied := *entry
	m.mu.Lock()
	m.deleteMemoryLocked(cacheKey)
	m.memory[cacheKey] = &copied
	m.bytes += len(copied.Data)
	m.mu.Unlock()
	CacheSize.Add(float64(len(copied.Data)))
}

// deleteMemoryLocked removes cacheKey and its bytes from the memory layer.
func (m *Manager) deleteMemoryLocked(cacheKey string) {
	old, ok := m.memory[cacheKey]
	if !ok {
		return
	}
	delete(m.memory, cacheKey)
	m.bytes -= len(old.Data)
	CacheSize.Sub(float64(len(old.Data)))
}

// Set stores a cache entry. The Redis TTL covers the fresh period plus the
// stale retention window.
func (m *Manager) Set(ctx context.Context, key CacheKey, entry *CacheEntry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	cacheKey := key.String()
	m.setMemory(cacheKey, entry)
	CacheBytesWritten.WithLabelValues("memory").Add(float64(len(entry.Data)))

	if m.redis == nil {
		return nil
	}

	m.mu.RLock()
	ttl := entry.TTL() + m.staleRetention
	m.mu.RUnlock()

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := m.redis.Set(ctx, cacheKey, data, ttl).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	CacheBytesWritten.WithLabelValues("redis").Add(float64(len(data)))

	return nil
}

// Delete removes a cache entry from both layers.
func (m *Manager) Delete(ctx context.Context, key CacheKey) error {
	cacheKey := key.String()

	m.mu.Lock()
	m.deleteMemoryLocked(cacheKey)
	m.mu.Unlock()

	if m.redis == nil {
		return nil
	}

	if err := m.redis.Del(ctx, cacheKey).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}

	return nil
}

// UpdateTTL updates the expiry of an existing cache entry.
// This is used when a conditional request comes back 304 Not Modified.
func (m *Manager) UpdateTTL(ctx context.Context, key CacheKey, newExpires time.Time) error {
	entry, err := m.Get(ctx, key)
	if err != nil {
		return err
	}

	entry.Expires = newExpires

	return m.Set(ctx, key, entry)
}

// MemoryBytes returns the payload bytes held by the memory layer.
func (m *Manager) MemoryBytes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bytes
}

// Len returns the number of entries in the memory layer.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.memory)
}
