package cache

import (
	"sync"
	"time"

	"pestmatch/internal/domain"
)

// ResultCache is a size-bounded LRU of comparison results with a TTL,
// keyed by the sha256 of the uploaded image. The reference index never
// changes after it is built, so entries only leave by age or eviction.
type ResultCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	order   []string
	maxSize int
	ttl     time.Duration
	now     func() time.Time

	hits   int
	misses int
}

type cacheEntry struct {
	result    domain.ComparisonResult
	timestamp time.Time
}

func NewResultCache(maxSize int, ttl time.Duration) *ResultCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ResultCache{
		entries: make(map[string]*cacheEntry),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *ResultCache) Get(digest string) (domain.ComparisonResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[digest]
	if !ok {
		c.misses++
		return domain.ComparisonResult{}, false
	}

	if c.now().Sub(entry.timestamp) > c.ttl {
		delete(c.entries, digest)
		c.removeFromOrder(digest)
		c.misses++
		return domain.ComparisonResult{}, false
	}

	c.moveToEnd(digest)
	c.hits++
	return entry.result, true
}

func (c *ResultCache) Put(digest string, result domain.ComparisonResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[digest]; ok {
		c.entries[digest] = &cacheEntry{result: result, timestamp: c.now()}
		c.moveToEnd(digest)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	c.entries[digest] = &cacheEntry{result: result, timestamp: c.now()}
	c.order = append(c.order, digest)
}

func (c *ResultCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns the hit and miss counts since creation.
func (c *ResultCache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

func (c *ResultCache) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
}

func (c *ResultCache) moveToEnd(key string) {
	c.removeFromOrder(key)
	c.order = append(c.order, key)
}

func (c *ResultCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
