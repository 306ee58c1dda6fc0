package nameindex

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
)

// DefaultCacheSize and DefaultMaxCacheAge match spec §4.B's defaults for the
// filter-result LRU.
const (
	DefaultCacheSize   = 2000
	DefaultMaxCacheAge = 10 * time.Minute
)

// ResultCache is a bounded, age-capped cache of filter evaluation results
// keyed by (normalizedFilter, limit, offset).
type ResultCache struct {
	mu     sync.Mutex
	lru    *lru.Cache
	maxAge time.Duration
	now    func() time.Time
}

type cachedResult struct {
	result   Result
	storedAt time.Time
}

// NewResultCache creates a ResultCache with the given capacity and max age.
func NewResultCache(size int, maxAge time.Duration) *ResultCache {
	return &ResultCache{
		lru:    lru.New(size),
		maxAge: maxAge,
		now:    time.Now,
	}
}

// Key builds the cache key for a (filter, limit, offset) triple.
func Key(normalizedFilter string, limit, offset int) string {
	return fmt.Sprintf("%s|%d|%d", normalizedFilter, limit, offset)
}

// Get returns the cached Result for key if present and not older than maxAge.
func (c *ResultCache) Get(key string) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.lru.Get(key)
	if !ok {
		return Result{}, false
	}
	cr := v.(*cachedResult)
	if c.now().Sub(cr.storedAt) > c.maxAge {
		c.lru.Remove(key)
		return Result{}, false
	}
	return cr.result, true
}

// Put stores result under key.
func (c *ResultCache) Put(key string, result Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(key, &cachedResult{result: result, storedAt: c.now()})
}

// Stats reports the current size of the result cache, exposed via the
// facade's /performance/stats endpoint.
func (c *ResultCache) Stats() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return map[string]any{"size": c.lru.Len()}
}
