package state

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/xsp-lib/xsp/errortypes"
)

// MemcacheBackend is a distributed Backend on memcached. Memcached has no
// server-side scripting, so the bounded increment is built from its atomic
// Add/Increment/Decrement primitives: increment first, then compensate with a
// decrement when the ceiling was crossed. The counter can transiently read
// above the ceiling between those two calls, but no caller is ever admitted
// past it.
type MemcacheBackend struct {
	client *memcache.Client
}

func NewMemcacheBackend(cfg MemcacheConfig) (*MemcacheBackend, error) {
	if len(cfg.Hosts) == 0 {
		return nil, fmt.Errorf("state.memcache.hosts is required when the memcache backend is enabled")
	}
	return &MemcacheBackend{client: memcache.New(cfg.Hosts...)}, nil
}

func (b *MemcacheBackend) Get(ctx context.Context, key string) (string, error) {
	item, err := b.client.Get(key)
	if err != nil {
		if err == memcache.ErrCacheMiss {
			return "", ErrKeyNotFound
		}
		return "", &errortypes.StateBackend{Message: fmt.Sprintf("memcache get failed: %v", err)}
	}
	return string(item.Value), nil
}

func (b *MemcacheBackend) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	item := &memcache.Item{
		Key:        key,
		Value:      []byte(value),
		Expiration: int32(ttl / time.Second),
	}
	if err := b.client.Set(item); err != nil {
		return &errortypes.StateBackend{Message: fmt.Sprintf("memcache set failed: %v", err)}
	}
	return nil
}

func (b *MemcacheBackend) IncrWithCeiling(ctx context.Context, key string, delta, ceiling int64, ttl time.Duration) (int64, bool, error) {
	if delta < 0 {
		return 0, false, fmt.Errorf("memcache counters cannot be incremented by negative delta %d", delta)
	}

	for {
		next, err := b.client.Increment(key, uint64(delta))
		if err == nil {
			if int64(next) > ceiling {
				if _, err := b.client.Decrement(key, uint64(delta)); err != nil {
					return 0, false, &errortypes.StateBackend{Message: fmt.Sprintf("memcache compensating decrement failed: %v", err)}
				}
				return int64(next) - delta, false, nil
			}
			return int64(next), true, nil
		}
		if err != memcache.ErrCacheMiss {
			return 0, false, &errortypes.StateBackend{Message: fmt.Sprintf("memcache increment failed: %v", err)}
		}

		// First event of a new window. Over-ceiling first events are rejected
		// without creating the key at all.
		if delta > ceiling {
			return 0, false, nil
		}
		item := &memcache.Item{
			Key:        key,
			Value:      []byte(strconv.FormatInt(delta, 10)),
			Expiration: int32(ttl / time.Second),
		}
		err = b.client.Add(item)
		if err == nil {
			return delta, true, nil
		}
		if err != memcache.ErrNotStored {
			return 0, false, &errortypes.StateBackend{Message: fmt.Sprintf("memcache add failed: %v", err)}
		}
		// Lost the creation race to a concurrent caller; retry as an
		// increment against the key they created.
	}
}

func (b *MemcacheBackend) Delete(ctx context.Context, key string) error {
	if err := b.client.Delete(key); err != nil && err != memcache.ErrCacheMiss {
		return &errortypes.StateBackend{Message: fmt.Sprintf("memcache delete failed: %v", err)}
	}
	return nil
}

func (b *MemcacheBackend) Close() error {
	return b.client.Close()
}
