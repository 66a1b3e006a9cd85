// Package respcache caches resolved protocol payloads by request fingerprint
// so identical (endpoint, params) requests within a TTL window do not hit the
// upstream again. Keys never include session fields; the per-request macros
// are substituted into the served payload's URLs, not into the cache key.
package respcache

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/xsp-lib/xsp/util/timeutil"
)

// Store is a TTL-aware byte cache. Implementations bound their own size:
// the LRU store by entry count with strict least-recently-used eviction, the
// freecache store by total bytes with approximate eviction.
type Store interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration)
	Len() int
}

// Config selects and sizes a response cache store.
type Config struct {
	// Type is one of "lru", "freecache".
	Type           string `mapstructure:"type"`
	MaxEntries     int    `mapstructure:"max_entries"`
	SizeBytes      int    `mapstructure:"size_bytes"`
	DefaultTTLS    int    `mapstructure:"default_ttl_s"`
	SweepIntervalS int    `mapstructure:"sweep_interval_s"`
}

// NewStore builds the Store named by cfg.Type.
func NewStore(cfg Config, clock timeutil.Time) (Store, error) {
	switch cfg.Type {
	case "", "lru":
		return NewLRU(cfg.MaxEntries, clock), nil
	case "freecache":
		return NewFreecacheStore(cfg.SizeBytes), nil
	default:
		return nil, fmt.Errorf("respcache: unknown store type %q", cfg.Type)
	}
}

// Cache wraps a Store with fetch-through semantics.
type Cache struct {
	store Store
	group singleflight.Group
}

func New(store Store) *Cache {
	return &Cache{store: store}
}

// GetOrFetch returns the cached value for key if one is live, otherwise runs
// fetch, stores its result for ttl, and returns it. The second return value
// reports whether the value came from the cache. A fetch error propagates
// unchanged and nothing is stored.
//
// Concurrent misses on the same key share one fetch: callers that arrive
// while a fetch for the key is in flight wait for it and receive its result
// rather than issuing their own upstream request.
func (c *Cache) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetch func(context.Context) ([]byte, error)) ([]byte, bool, error) {
	if value, ok := c.store.Get(key); ok {
		return value, true, nil
	}

	value, err, _ := c.group.Do(key, func() (interface{}, error) {
		// A winner of the flight may have populated the store between our
		// miss and this call.
		if value, ok := c.store.Get(key); ok {
			return value, nil
		}
		fetched, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.store.Set(key, fetched, ttl)
		return fetched, nil
	})
	if err != nil {
		return nil, false, err
	}
	return value.([]byte), false, nil
}

// Store exposes the underlying store, e.g. for wiring the expiry sweep.
func (c *Cache) Store() Store {
	return c.store
}
