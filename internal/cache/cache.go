// Package cache is an in-memory query cache with expiry and bounded size.
// The HTTP source uses it to avoid refetching snapshots it has just seen.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"
)

// EvictionStrategy defines how cache entries are removed
type EvictionStrategy int

const (
	// LRU removes least recently used entries
	LRU EvictionStrategy = iota
	// LFU removes least frequently used entries
	LFU
	// FIFO removes oldest entries first
	FIFO
)

var strategyNames = map[EvictionStrategy]string{LRU: "lru", LFU: "lfu", FIFO: "fifo"}

func (s EvictionStrategy) String() string {
	if n, ok := strategyNames[s]; ok {
		return n
	}
	return fmt.Sprintf("EvictionStrategy(%d)", int(s))
}

// ParseStrategy maps "lru", "lfu" or "fifo" (any case) to a strategy. The
// empty string selects LRU.
func ParseStrategy(name string) (EvictionStrategy, error) {
	if name == "" {
		return LRU, nil
	}
	for s, n := range strategyNames {
		if strings.EqualFold(n, name) {
			return s, nil
		}
	}
	return LRU, fmt.Errorf("unknown eviction strategy %q", name)
}

// Config holds cache configuration
type Config struct {
	MaxEntries int              // default 256; negative means unbounded
	MaxAge     time.Duration    // default 30s; negative means entries never expire
	Strategy   EvictionStrategy // default LRU
}

// DefaultConfig returns the default cache configuration
func DefaultConfig() Config {
	return Config{
		MaxEntries: 256,
		MaxAge:     30 * time.Second,
		Strategy:   LRU,
	}
}

// Stats tracks cache performance
type Stats struct {
	Hits       int64 `json:"hits"`
	Misses     int64 `json:"misses"`
	Evictions  int64 `json:"evictions"`
	Expired    int64 `json:"expired"`
	EntryCount int   `json:"entry_count"`
}

type entry[V any] struct {
	value       V
	created     time.Time
	lastAccess  time.Time
	accessCount int
}

// Cache maps string keys to values. It is safe for concurrent use.
type Cache[V any] struct {
	mu       sync.Mutex
	entries  map[string]*entry[V]
	max      int
	maxAge   time.Duration
	strategy EvictionStrategy
	stats    Stats
	now      func() time.Time
}

// New creates a cache. Zero fields of config take their defaults.
func New[V any](config Config) *Cache[V] {
	d := DefaultConfig()
	if config.MaxEntries != 0 {
		d.MaxEntries = config.MaxEntries
	}
	if config.MaxAge != 0 {
		d.MaxAge = config.MaxAge
	}
	d.Strategy = config.Strategy
	return &Cache[V]{
		entries:  make(map[string]*entry[V]),
		max:      d.MaxEntries,
		maxAge:   d.MaxAge,
		strategy: d.Strategy,
		now:      time.Now,
	}
}

// Get returns the value for key if present and not expired.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		return zero, false
	}
	if c.isExpired(e) {
		delete(c.entries, key)
		c.stats.Expired++
		c.stats.Misses++
		c.stats.EntryCount = len(c.entries)
		return zero, false
	}
	e.lastAccess = c.now()
	e.accessCount++
	c.stats.Hits++
	return e.value, true
}

// Put stores a value, evicting per the strategy when the cache is full.
func (c *Cache[V]) Put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if e, ok := c.entries[key]; ok {
		e.value = value
		e.created = now
		e.lastAccess = now
		return
	}
	c.ensureSpace()
	c.entries[key] = &entry[V]{value: value, created: now, lastAccess: now}
	c.stats.EntryCount = len(c.entries)
}

// InvalidatePrefix removes every entry whose key starts with prefix and
// returns how many were removed.
func (c *Cache[V]) InvalidatePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
			count++
		}
	}
	c.stats.EntryCount = len(c.entries)
	return count
}

// Len returns the number of entries, expired ones included.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// GetStats returns cache statistics
func (c *Cache[V]) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Key builds a cache key of the form "<scope>:<digest>". The digest hashes
// the inputs length-prefixed, so ("ab", "c") and ("a", "bc") differ; the
// readable scope lets InvalidatePrefix(scope+":") drop one query family.
func Key(scope string, inputs ...string) string {
	h := sha256.New()
	var n [8]byte
	for _, input := range inputs {
		l := len(input)
		for i := range n {
			n[i] = byte(l >> (8 * i))
		}
		h.Write(n[:])
		h.Write([]byte(input))
	}
	return scope + ":" + hex.EncodeToString(h.Sum(nil))
}

func (c *Cache[V]) isExpired(e *entry[V]) bool {
	if c.maxAge <= 0 {
		return false
	}
	return c.now().Sub(e.created) > c.maxAge
}

// ensureSpace makes room for one entry. Caller holds c.mu.
func (c *Cache[V]) ensureSpace() {
	if c.max <= 0 {
		return
	}
	// Expired entries go first.
	if len(c.entries) >= c.max {
		for key, e := range c.entries {
			if c.isExpired(e) {
				delete(c.entries, key)
				c.stats.Expired++
			}
		}
	}
	for len(c.entries) >= c.max {
		var evictKey string
		var victim *entry[V]
		for key, e := range c.entries {
			if victim == nil || c.worse(e, victim) || (!c.worse(victim, e) && key < evictKey) {
				evictKey, victim = key, e
			}
		}
		if victim == nil {
			break
		}
		delete(c.entries, evictKey)
		c.stats.Evictions++
	}
	c.stats.EntryCount = len(c.entries)
}

// worse reports whether a should be evicted before b.
func (c *Cache[V]) worse(a, b *entry[V]) bool {
	switch c.strategy {
	case LFU:
		return a.accessCount < b.accessCount
	case FIFO:
		return a.created.Before(b.created)
	default:
		return a.lastAccess.Before(b.lastAccess)
	}
}
