package maps

import (
	"sync"
	"time"
)

const defaultRouteTTL = 2 * time.Minute

type route struct {
	distanceM float64
	durationS float64
}

type cacheEntry struct {
	v  route
	ts time.Time
}

// routeCache is a small TTL cache for route lookups keyed by the
// origin/destination address pair.
type routeCache struct {
	mu    sync.RWMutex
	store map[string]cacheEntry
	ttl   time.Duration
}

func newRouteCache(ttl time.Duration) *routeCache {
	return &routeCache{store: make(map[string]cacheEntry), ttl: ttl}
}

func cacheKey(origin, destination string) string {
	return origin + "\x00" + destination
}

func (c *routeCache) get(origin, destination string) (route, bool) {
	k := cacheKey(origin, destination)
	c.mu.RLock()
	e, ok := c.store[k]
	c.mu.RUnlock()
	if !ok {
		return route{}, false
	}
	if time.Since(e.ts) > c.ttl {
		c.mu.Lock()
		delete(c.store, k)
		c.mu.Unlock()
		return route{}, false
	}
	return e.v, true
}

func (c *routeCache) set(origin, destination string, v route) {
	c.mu.Lock()
	c.store[cacheKey(origin, destination)] = cacheEntry{v: v, ts: time.Now()}
	c.mu.Unlock()
}
