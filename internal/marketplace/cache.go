package marketplace

import (
	"sync"
	"time"

	"github.com/company/betterteams/internal/addon"
)

// Cache holds catalog listings per kind for a fixed TTL.
type Cache struct {
	mu       sync.RWMutex
	ttl      time.Duration
	catalogs map[addon.Kind]*cacheEntry[[]addon.Record]
}

type cacheEntry[T any] struct {
	value     T
	expiresAt time.Time
}

// NewCache creates a cache with the given TTL. A zero TTL disables caching.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		ttl:      ttl,
		catalogs: make(map[addon.Kind]*cacheEntry[[]addon.Record]),
	}
}

// GetCatalog returns a copy of the cached catalog if still valid.
func (c *Cache) GetCatalog(kind addon.Kind) ([]addon.Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.catalogs[kind]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return append([]addon.Record(nil), entry.value...), true
}

func (c *Cache) SetCatalog(kind addon.Kind, records []addon.Record) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.catalogs[kind] = &cacheEntry[[]addon.Record]{
		value:     append([]addon.Record(nil), records...),
		expiresAt: time.Now().Add(c.ttl),
	}
}

// Invalidate drops every cached catalog.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.catalogs)
}
