// Package cache provides a generic in-process TTL cache with wildcard
// pattern invalidation.
//
// The cache is a pure optimization layer: it is never authoritative, holds
// no persistence, and starts empty on every process start. Entries are
// immutable snapshots after Set and expire lazily on access; there is no
// background sweeper.
package cache

import (
	"strings"
	"sync"
	"time"
)

// DefaultTTL is used when Set is called with a non-positive TTL and the
// cache was constructed without an explicit default.
const DefaultTTL = 5 * time.Minute

// Cache is a key-value store with per-entry expiry.
//
// All methods are safe for concurrent use. Values are stored as-is;
// callers must not mutate a value after handing it to Set.
//
// Example:
//
//	c := cache.New(5 * time.Minute)
//	c.Set("memories:user_001:all", records, 0)
//	if v, ok := c.Get("memories:user_001:all"); ok {
//	    records = v.([]*memory.Record)
//	}
//	c.Invalidate("memories:user_001:*")
type Cache struct {
	mu         sync.Mutex
	entries    map[string]entry
	defaultTTL time.Duration

	hits   uint64
	misses uint64
}

type entry struct {
	value    interface{}
	storedAt time.Time
	ttl      time.Duration
}

func (e entry) expired(now time.Time) bool {
	return now.Sub(e.storedAt) > e.ttl
}

// Stats reports cache occupancy and effectiveness.
type Stats struct {
	// Total is the number of entries physically present, expired or not.
	Total int

	// Active is the number of unexpired entries.
	Active int

	// Expired is the number of entries past their TTL that have not yet
	// been lazily evicted.
	Expired int

	// Hits and Misses count Get outcomes since construction.
	Hits   uint64
	Misses uint64

	// HitRate is Hits / (Hits + Misses), or 0 when no Get has happened.
	HitRate float64
}

// New creates a Cache. defaultTTL applies to Set calls with a
// non-positive TTL; if defaultTTL itself is non-positive, DefaultTTL is
// used.
func New(defaultTTL time.Duration) *Cache {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &Cache{
		entries:    make(map[string]entry),
		defaultTTL: defaultTTL,
	}
}

// Set stores or overwrites an entry under key with the given TTL.
// A non-positive ttl falls back to the cache default.
func (c *Cache) Set(key string, value interface{}, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{
		value:    value,
		storedAt: time.Now(),
		ttl:      ttl,
	}
}

// Get returns the value stored under key if present and unexpired.
// An expired entry is evicted on access and reported as a miss.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if e.expired(time.Now()) {
		delete(c.entries, key)
		c.misses++
		return nil, false
	}
	c.hits++
	return e.value, true
}

// Invalidate removes every entry whose key matches pattern and returns
// the number removed. The pattern may contain a single '*' wildcard
// matching any substring; without '*' it is an exact key match.
func (c *Cache) Invalidate(pattern string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	star := strings.Index(pattern, "*")
	if star < 0 {
		if _, ok := c.entries[pattern]; ok {
			delete(c.entries, pattern)
			removed++
		}
		return removed
	}

	prefix := pattern[:star]
	suffix := pattern[star+1:]
	for key := range c.entries {
		if len(key) >= len(prefix)+len(suffix) &&
			strings.HasPrefix(key, prefix) && strings.HasSuffix(key, suffix) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Flush removes all entries. Hit/miss counters are preserved.
func (c *Cache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

// Stats returns a snapshot of cache occupancy and hit rate.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	s := Stats{
		Total:  len(c.entries),
		Hits:   c.hits,
		Misses: c.misses,
	}
	for _, e := range c.entries {
		if e.expired(now) {
			s.Expired++
		} else {
			s.Active++
		}
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}
