// Package cache holds recently fetched resource snapshots so repeated list
// queries with identical parameters skip the network while nothing mutated.
package cache

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Cache is a TTL and size bounded store keyed by entity type plus the
// canonicalized filter parameters of a list query.
type Cache struct {
	mu         sync.RWMutex
	now        func() time.Time
	ttl        time.Duration
	maxEntries int
	entries    map[string]entry
}

type entry struct {
	value     any
	expiresAt time.Time
}

// New constructs a cache. Non-positive ttl and maxEntries fall back to 30s
// and 128 entries.
func New(ttl time.Duration, maxEntries int, now func() time.Time) *Cache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if maxEntries <= 0 {
		maxEntries = 128
	}
	if now == nil {
		now = time.Now
	}
	return &Cache{
		now:        now,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]entry),
	}
}

// Get returns the cached value for key when present and fresh. Callers own
// cloning: stored values must not be mutated.
func (c *Cache) Get(key string) (any, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// Store records a value under key for the configured TTL.
func (c *Cache) Store(key string, value any) {
	if c == nil {
		return
	}
	expiry := c.now().Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cleanupLocked()
	if len(c.entries) >= c.maxEntries {
		c.evictOneLocked()
	}
	c.entries[key] = entry{value: value, expiresAt: expiry}
}

// Invalidate drops every entry for the given entity type. Called by the
// resource services after any mutation.
func (c *Cache) Invalidate(entity string) {
	if c == nil {
		return
	}
	prefix := entity + "|"
	c.mu.Lock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
}

// InvalidateAll drops everything.
func (c *Cache) InvalidateAll() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}

func (c *Cache) cleanupLocked() {
	now := c.now()
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
		}
	}
}

func (c *Cache) evictOneLocked() {
	for key := range c.entries {
		delete(c.entries, key)
		return
	}
}

// Key canonicalizes an entity type and filter parameters into a cache key.
// Parameter order never matters; identical filters always hit the same entry.
func Key(entity string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v == "" {
			continue
		}
		keys = append(keys, k+"="+v)
	}
	sort.Strings(keys)

	builder := strings.Builder{}
	builder.WriteString(entity)
	builder.WriteString("|")
	builder.WriteString(strings.Join(keys, "&"))
	return builder.String()
}
