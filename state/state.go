// Package state provides the shared key/value store behind frequency caps and
// budget counters. Backends are selected by configuration, one subpackage-style
// implementation per store, and every mutation is atomic at single-key
// granularity so concurrent requests against the same counter cannot race.
package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xsp-lib/xsp/util/timeutil"
)

// ErrKeyNotFound is returned by Get when the key is absent or expired.
var ErrKeyNotFound = errors.New("state: key not found")

// Backend is a TTL-aware key/value store with an atomic bounded increment.
//
// IncrWithCeiling adds delta to the integer counter at key, but only if the
// resulting value would not exceed ceiling. It returns the counter's value
// after the call and whether the increment was admitted. The
// compare-and-increment is a single atomic operation against the store; two
// concurrent callers fighting over the last slot under the ceiling can never
// both be admitted. A non-zero ttl is applied only when the increment creates
// the key, so a counting window starts at its first event.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	IncrWithCeiling(ctx context.Context, key string, delta, ceiling int64, ttl time.Duration) (int64, bool, error)
	Delete(ctx context.Context, key string) error
	Close() error
}

// Config selects and configures a state backend.
type Config struct {
	// Type is one of "memory", "redis", "memcache".
	Type     string         `mapstructure:"type"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Memcache MemcacheConfig `mapstructure:"memcache"`
}

type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	DB        int    `mapstructure:"db"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	TimeoutMS int    `mapstructure:"timeout_ms"`
}

type MemcacheConfig struct {
	Hosts []string `mapstructure:"hosts"`
}

// NewBackend builds the Backend named by cfg.Type.
func NewBackend(cfg Config, clock timeutil.Time) (Backend, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryBackend(clock), nil
	case "redis":
		return NewRedisBackend(cfg.Redis)
	case "memcache":
		return NewMemcacheBackend(cfg.Memcache)
	default:
		return nil, fmt.Errorf("state: unknown backend type %q", cfg.Type)
	}
}
