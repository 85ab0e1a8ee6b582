package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/gilby125/flightcrawler/core"
)

// HealthCache remembers each source's last dispatcher.HealthCheck result
// for a short TTL so an ops surface polled every few seconds (/healthz,
// crawlctl healthcheck) doesn't re-probe every live adapter on every
// request. In-process only, unlike RedisCache above, since health state
// has no value shared across instances.
type HealthCache struct {
	c *gocache.Cache
}

// NewHealthCache builds a cache that expires entries after ttl and purges
// expired entries twice as often.
func NewHealthCache(ttl time.Duration) *HealthCache {
	return &HealthCache{c: gocache.New(ttl, ttl*2)}
}

func (h *HealthCache) Get(source core.DataSource) (bool, bool) {
	v, ok := h.c.Get(SourceHealthKey(source))
	if !ok {
		return false, false
	}
	healthy, ok := v.(bool)
	return healthy, ok
}

func (h *HealthCache) Set(source core.DataSource, healthy bool) {
	h.c.SetDefault(SourceHealthKey(source), healthy)
}

// SourceHealthKey names the cache entry for one source's health state.
func SourceHealthKey(source core.DataSource) string {
	return "source_health:" + string(source)
}
