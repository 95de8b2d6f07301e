package orchestrator

import (
	"fmt"
	"sync"
	"time"

	"github.com/zumagro/soil-nutrient-service/internal/domain"
)

// CacheKey builds the estimate cache key from rounded coordinates, the end
// date of the search window, and the crop. Four decimals is roughly 11m of
// ground distance, well inside one Sentinel-2 pixel.
func CacheKey(lat, lon float64, end time.Time, crop domain.Crop) string {
	return fmt.Sprintf("%.4f,%.4f|%s|%s", lat, lon, end.UTC().Format("2006-01-02"), crop)
}

// Cache is a thread-safe TTL+LRU cache of fallback results. It is constructed
// explicitly and injected into the orchestrator, so tests and multiple
// orchestrator instances get isolated caches.
type Cache struct {
	maxEntries int
	ttl        time.Duration

	mu      sync.Mutex
	entries map[string]*cacheEntry
	head    *cacheEntry // most recently used
	tail    *cacheEntry // least recently used
}

type cacheEntry struct {
	key       string
	value     domain.FallbackResult
	expiresAt time.Time
	prev      *cacheEntry
	next      *cacheEntry
}

func NewCache(maxEntries int, ttl time.Duration) *Cache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &Cache{
		maxEntries: maxEntries,
		ttl:        ttl,
		entries:    make(map[string]*cacheEntry),
	}
}

// Get returns the cached result for key if present and unexpired. Expired
// entries are dropped on access.
func (c *Cache) Get(key string) (domain.FallbackResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return domain.FallbackResult{}, false
	}
	if domain.Now().After(e.expiresAt) {
		delete(c.entries, e.key)
		c.remove(e)
		return domain.FallbackResult{}, false
	}
	c.moveToFront(e)
	return e.value, true
}

// Put stores a result under key, evicting the least recently used entry when
// the cache is full.
func (c *Cache) Put(key string, value domain.FallbackResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expires := domain.Now().Add(c.ttl)
	if e, ok := c.entries[key]; ok {
		e.value = value
		e.expiresAt = expires
		c.moveToFront(e)
		return
	}

	e := &cacheEntry{key: key, value: value, expiresAt: expires}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

// Len returns the current entry count, expired entries included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) moveToFront(e *cacheEntry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *Cache) addToFront(e *cacheEntry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *Cache) remove(e *cacheEntry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *Cache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
