package analytics

import (
	"encoding/json"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache defaults mirror the interactive workload: results are small JSON
// payloads and charts are re-requested within minutes.
const (
	DefaultCacheSize = 512
	DefaultCacheTTL  = 5 * time.Minute
)

// Cache is the process-wide result cache shared by the query and run
// engines. Entries expire after a fixed TTL and are evicted LRU once the
// capacity bound is reached. It is safe for concurrent use and is injected
// explicitly so tests get per-test instances.
type Cache struct {
	lru *expirable.LRU[string, []byte]
}

// NewCache constructs a cache with the given capacity and TTL, substituting
// defaults for non-positive values.
func NewCache(size int, ttl time.Duration) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

// Get returns the cached payload for key, if present and unexpired.
func (c *Cache) Get(key string) ([]byte, bool) {
	return c.lru.Get(key)
}

// Set stores a payload under key.
func (c *Cache) Set(key string, payload []byte) {
	c.lru.Add(key, payload)
}

// GetJSON unmarshals a cached payload into v.
func (c *Cache) GetJSON(key string, v any) bool {
	payload, ok := c.lru.Get(key)
	if !ok {
		return false
	}
	return json.Unmarshal(payload, v) == nil
}

// SetJSON marshals v and stores it under key. Marshal failures are dropped;
// the cache never stores errors.
func (c *Cache) SetJSON(key string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.lru.Add(key, payload)
}

// Len reports the number of live entries.
func (c *Cache) Len() int { return c.lru.Len() }
