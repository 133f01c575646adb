package client

import (
	"github.com/coocood/freecache"
)

// Cache stores raw GET response bodies keyed by request path.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
}

// NewCache returns a freecache-backed response cache of sizeMB megabytes whose
// entries expire after ttlSeconds. A non-positive size disables caching.
func NewCache(sizeMB, ttlSeconds int) Cache {
	if sizeMB <= 0 {
		return noopCache{}
	}
	return &memCache{
		cache: freecache.NewCache(sizeMB * 1024 * 1024),
		ttl:   max(ttlSeconds, 1),
	}
}

type memCache struct {
	cache *freecache.Cache
	ttl   int
}

func (c *memCache) Get(key string) ([]byte, bool) {
	val, err := c.cache.Get([]byte(key))
	if err != nil {
		return nil, false
	}
	return val, true
}

func (c *memCache) Set(key string, value []byte) {
	_ = c.cache.Set([]byte(key), value, c.ttl)
}

type noopCache struct{}

func (noopCache) Get(string) ([]byte, bool) { return nil, false }
func (noopCache) Set(string, []byte)        {}
