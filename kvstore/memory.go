package kvstore

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore is a process-local KV. Data is lost on restart.
type MemoryStore struct {
	cache *gocache.Cache
}

// NewMemoryStore creates an empty store whose entries never expire.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cache: gocache.New(gocache.NoExpiration, 0)}
}

// Get retrieves a value from the store
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	if val, found := s.cache.Get(key); found {
		if b, ok := val.([]byte); ok {
			return append([]byte(nil), b...), nil
		}
	}
	return nil, ErrNotFound
}

// Set stores a copy of value
func (s *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	s.cache.Set(key, append([]byte(nil), value...), gocache.NoExpiration)
	return nil
}

// Delete removes a value from the store
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.cache.Delete(key)
	return nil
}

// MemoryCache is an in-memory imagesort.Cache with a TTL. Values are kept
// JSON-encoded so Get can fill any destination type.
type MemoryCache struct {
	cache *gocache.Cache
	ttl   time.Duration
}

// NewMemoryCache creates a cache whose entries live for ttl and are swept
// every cleanupInterval.
func NewMemoryCache(ttl, cleanupInterval time.Duration) *MemoryCache {
	return &MemoryCache{
		cache: gocache.New(ttl, cleanupInterval),
		ttl:   ttl,
	}
}

// Key builds a cache key from a prefix and a value.
func (c *MemoryCache) Key(prefix, value string) string {
	return hashKey(prefix, value)
}

// Get decodes the cached value into dest.
func (c *MemoryCache) Get(_ context.Context, key string, dest any) bool {
	val, found := c.cache.Get(key)
	if !found {
		return false
	}
	b, ok := val.([]byte)
	if !ok {
		return false
	}
	return json.Unmarshal(b, dest) == nil
}

// Set caches value for the configured TTL.
func (c *MemoryCache) Set(_ context.Context, key string, value any) {
	b, err := json.Marshal(value)
	if err != nil {
		slog.Debug("imagesort: cache marshal failed", "key", key, "error", err.Error())
		return
	}
	c.cache.Set(key, b, c.ttl)
}

// Flush drops every cached value.
func (c *MemoryCache) Flush() {
	c.cache.Flush()
}
