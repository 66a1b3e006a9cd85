package respcache

import (
	"time"

	"github.com/coocood/freecache"
)

const defaultFreecacheBytes = 64 * 1024 * 1024

// FreecacheStore bounds the cache by total bytes instead of entry count.
// Eviction inside freecache is segmented approximate-LRU, which suits hosts
// that care about a hard RAM cap more than exact recency order.
type FreecacheStore struct {
	inner *freecache.Cache
}

func NewFreecacheStore(sizeBytes int) *FreecacheStore {
	if sizeBytes <= 0 {
		sizeBytes = defaultFreecacheBytes
	}
	return &FreecacheStore{inner: freecache.NewCache(sizeBytes)}
}

func (c *FreecacheStore) Get(key string) ([]byte, bool) {
	value, err := c.inner.Get([]byte(key))
	if err != nil {
		return nil, false
	}
	return value, true
}

func (c *FreecacheStore) Set(key string, value []byte, ttl time.Duration) {
	seconds := int(ttl / time.Second)
	if seconds < 1 {
		seconds = 1 // freecache expiry has one-second granularity
	}
	// Set only fails on oversized entries; an uncacheable payload is simply
	// re-fetched next time.
	_ = c.inner.Set([]byte(key), value, seconds)
}

func (c *FreecacheStore) Len() int {
	return int(c.inner.EntryCount())
}
