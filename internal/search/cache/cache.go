// Package cache holds recent search results in memory.
//
// Entries are keyed by the normalized query, expire a fixed time after they
// were inserted and are evicted oldest-inserted first once the cache is full.
// Lookups never change an entry's position.
package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"idsearch/internal/identity/models"
	"idsearch/internal/platform/metrics"
	pstrings "idsearch/pkg/platform/strings"
)

const (
	DefaultCapacity = 100
	DefaultTTL      = 5 * time.Minute
)

// entry is a SearchCacheEntry: the results plus their insertion time.
type entry struct {
	key        string
	results    []models.Identity
	insertedAt time.Time
}

// Cache is safe for concurrent use. Coordinators of one process share it.
type Cache struct {
	mu       sync.Mutex
	order    *list.List
	entries  map[string]*list.Element
	capacity int
	ttl      time.Duration
	clock    clock.Clock
	metrics  *metrics.Metrics
}

// Option configures a Cache.
type Option func(*Cache)

func WithCapacity(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.capacity = n
		}
	}
}

func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithClock(clk clock.Clock) Option {
	return func(c *Cache) {
		c.clock = clk
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) {
		c.metrics = m
	}
}

// New creates an empty cache with capacity 100 and a 5 minute TTL unless
// overridden.
func New(opts ...Option) *Cache {
	c := &Cache{
		order:    list.New(),
		entries:  make(map[string]*list.Element),
		capacity: DefaultCapacity,
		ttl:      DefaultTTL,
		clock:    clock.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key returns the cache key for a raw query.
func Key(query string) string {
	return pstrings.Normalize(query)
}

// Get returns a copy of the results cached for query. An entry whose TTL has
// elapsed is removed and reported as a miss.
func (c *Cache) Get(query string) ([]models.Identity, bool) {
	key := Key(query)

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		c.recordLookup(false)
		return nil, false
	}
	e := el.Value.(*entry)
	if c.expired(e) {
		c.removeElement(el)
		c.recordLookup(false)
		return nil, false
	}
	c.recordLookup(true)
	return clone(e.results), true
}

// Put stores a copy of results for query. Storing a key that is already
// present counts as a fresh insertion: its timestamp is reset and it becomes
// the newest entry.
func (c *Cache) Put(query string, results []models.Identity) {
	key := Key(query)
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		e := el.Value.(*entry)
		e.results = clone(results)
		e.insertedAt = now
		c.order.MoveToBack(el)
		return
	}

	for c.order.Len() >= c.capacity {
		c.removeElement(c.order.Front())
		if c.metrics != nil {
			c.metrics.IncrementCacheEvictions()
		}
	}
	c.entries[key] = c.order.PushBack(&entry{
		key:        key,
		results:    clone(results),
		insertedAt: now,
	})
}

// Delete drops the entry for query, if any.
func (c *Cache) Delete(query string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[Key(query)]; ok {
		c.removeElement(el)
	}
}

// Len returns the number of stored entries, expired ones included until they
// are looked up.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.entries = make(map[string]*list.Element)
}

// expired reports whether e is at or past its TTL.
// Must be called while holding c.mu.
func (c *Cache) expired(e *entry) bool {
	return !c.clock.Now().Before(e.insertedAt.Add(c.ttl))
}

// Must be called while holding c.mu.
func (c *Cache) removeElement(el *list.Element) {
	c.order.Remove(el)
	delete(c.entries, el.Value.(*entry).key)
}

func (c *Cache) recordLookup(hit bool) {
	if c.metrics != nil {
		c.metrics.RecordCacheLookup(hit)
	}
}

func clone(results []models.Identity) []models.Identity {
	if results == nil {
		return []models.Identity{}
	}
	out := make([]models.Identity, len(results))
	copy(out, results)
	return out
}
