package router

import (
	"container/list"
	"fmt"
	"sync"
	"time"
)

// CacheStrategy selects what the router caches and how loaded data is keyed.
type CacheStrategy string

const (
	// CacheNone disables caching entirely; every match re-scans the routes.
	CacheNone CacheStrategy = "none"

	// CacheByPathAndParams keys loaded data by route and parameters.
	CacheByPathAndParams CacheStrategy = "by-path-and-params"

	// CacheByPathParamsAndQuery also includes the query string in the key.
	CacheByPathParamsAndQuery CacheStrategy = "by-path-params-and-query"

	// CacheByFullURL also includes the fragment in the key.
	CacheByFullURL CacheStrategy = "by-full-url"
)

// Cache defaults.
const (
	DefaultCacheStrategy   = CacheByPathAndParams
	DefaultCacheMaxEntries = 100
)

// Valid reports whether s is a known strategy.
func (s CacheStrategy) Valid() bool {
	switch s {
	case CacheNone, CacheByPathAndParams, CacheByPathParamsAndQuery, CacheByFullURL:
		return true
	}
	return false
}

// ParseCacheStrategy parses a strategy name. The empty string yields the default.
func ParseCacheStrategy(s string) (CacheStrategy, error) {
	if s == "" {
		return DefaultCacheStrategy, nil
	}
	strategy := CacheStrategy(s)
	if !strategy.Valid() {
		return "", fmt.Errorf("%w: unknown strategy %q", ErrInvalidCachePolicy, s)
	}
	return strategy, nil
}

// CachePolicy configures the route-match cache and the loaded-data cache.
//
// The route-match cache only ever stores route identity (route, params,
// path) and is disabled by CacheNone. The strategy otherwise decides how
// loaded data is keyed.
type CachePolicy struct {
	// Strategy selects the caching behaviour. Default: by-path-and-params.
	Strategy CacheStrategy

	// MaxEntries bounds the cache. Least recently used entries are evicted.
	// Default: 100.
	MaxEntries int

	// TTL expires entries after this long. Zero means never.
	TTL time.Duration
}

// DefaultCachePolicy returns the policy used when none is configured.
func DefaultCachePolicy() CachePolicy {
	return CachePolicy{
		Strategy:   DefaultCacheStrategy,
		MaxEntries: DefaultCacheMaxEntries,
	}
}

func (p CachePolicy) withDefaults() CachePolicy {
	if p.Strategy == "" {
		p.Strategy = DefaultCacheStrategy
	}
	if p.MaxEntries <= 0 {
		p.MaxEntries = DefaultCacheMaxEntries
	}
	return p
}

func (p CachePolicy) validate() error {
	if !p.Strategy.Valid() {
		return fmt.Errorf("%w: unknown strategy %q", ErrInvalidCachePolicy, p.Strategy)
	}
	if p.TTL < 0 {
		return fmt.Errorf("%w: negative TTL %s", ErrInvalidCachePolicy, p.TTL)
	}
	return nil
}

// CacheStats is a snapshot of cache counters.
type CacheStats struct {
	Hits        uint64
	Misses      uint64
	Evictions   uint64
	Expirations uint64
	Size        int
}

// add accumulates other into s.
func (s CacheStats) add(other CacheStats) CacheStats {
	s.Hits += other.Hits
	s.Misses += other.Misses
	s.Evictions += other.Evictions
	s.Expirations += other.Expirations
	s.Size += other.Size
	return s
}

// lruCache is a bounded least-recently-used cache with optional TTL.
// Every operation is atomic: no caller ever sees a half-applied
// insert/evict.
type lruCache[V any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	now      func() time.Time
	entries  map[string]*list.Element
	order    *list.List // front = most recently used
	stats    CacheStats
}

type lruItem[V any] struct {
	key       string
	value     V
	expiresAt time.Time // zero => no TTL
}

func newLRUCache[V any](capacity int, ttl time.Duration, now func() time.Time) *lruCache[V] {
	if now == nil {
		now = time.Now
	}
	return &lruCache[V]{
		capacity: capacity,
		ttl:      ttl,
		now:      now,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Get returns the cached value and refreshes its position.
func (c *lruCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	elem, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		return zero, false
	}

	item := elem.Value.(*lruItem[V])
	if !item.expiresAt.IsZero() && !c.now().Before(item.expiresAt) {
		c.order.Remove(elem)
		delete(c.entries, key)
		c.stats.Expirations++
		c.stats.Misses++
		return zero, false
	}

	c.order.MoveToFront(elem)
	c.stats.Hits++
	return item.value, true
}

// Set stores a value. If the cache grows past capacity, the least
// recently used entries are evicted.
func (c *lruCache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if c.ttl > 0 {
		expiresAt = c.now().Add(c.ttl)
	}

	if elem, ok := c.entries[key]; ok {
		item := elem.Value.(*lruItem[V])
		item.value = value
		item.expiresAt = expiresAt
		c.order.MoveToFront(elem)
		return
	}

	elem := c.order.PushFront(&lruItem[V]{key: key, value: value, expiresAt: expiresAt})
	c.entries[key] = elem

	for c.capacity > 0 && c.order.Len() > c.capacity {
		oldest := c.order.Back()
		item := oldest.Value.(*lruItem[V])
		c.order.Remove(oldest)
		delete(c.entries, item.key)
		c.stats.Evictions++
	}
}

// Contains reports whether key is cached, without touching recency or stats.
func (c *lruCache[V]) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

// Len returns the number of cached entries.
func (c *lruCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear removes all cached entries. Counters are kept.
func (c *lruCache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.order = list.New()
}

// Stats returns a snapshot of the counters.
func (c *lruCache[V]) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Size = len(c.entries)
	return s
}

// matchEntry is what the route-match cache stores: route identity only.
// Query, fragment and loaded data vary independently of the route and
// are never cached here.
type matchEntry struct {
	route  *CompiledRoute
	params map[string]string
	path   string
}
