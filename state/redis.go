package state

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/xsp-lib/xsp/errortypes"
)

// incrWithCeilingScript performs the whole compare-and-increment server-side
// so it is atomic across every process sharing the store. The TTL is applied
// only when the increment creates the key.
var incrWithCeilingScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
local delta = tonumber(ARGV[1])
local ceiling = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])
if current + delta > ceiling then
	return {current, 0}
end
local next = redis.call('INCRBY', KEYS[1], delta)
if ttl > 0 and redis.call('TTL', KEYS[1]) < 0 then
	redis.call('EXPIRE', KEYS[1], ttl)
end
return {next, 1}
`)

// RedisBackend is the distributed Backend for multi-instance deployments.
type RedisBackend struct {
	client  *redis.Client
	timeout time.Duration
}

func NewRedisBackend(cfg RedisConfig) (*RedisBackend, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("state.redis.addr is required when the redis backend is enabled")
	}

	opts := &redis.Options{
		Addr:         cfg.Addr,
		DB:           cfg.DB,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	}

	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	if timeout == 0 {
		timeout = 200 * time.Millisecond // default
	}

	return &RedisBackend{
		client:  redis.NewClient(opts),
		timeout: timeout,
	}, nil
}

func (b *RedisBackend) Get(ctx context.Context, key string) (string, error) {
	opCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	val, err := b.client.Get(opCtx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", ErrKeyNotFound
		}
		return "", &errortypes.StateBackend{Message: fmt.Sprintf("redis get failed: %v", err)}
	}
	return val, nil
}

func (b *RedisBackend) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	opCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	if err := b.client.Set(opCtx, key, value, ttl).Err(); err != nil {
		return &errortypes.StateBackend{Message: fmt.Sprintf("redis set failed: %v", err)}
	}
	return nil
}

func (b *RedisBackend) IncrWithCeiling(ctx context.Context, key string, delta, ceiling int64, ttl time.Duration) (int64, bool, error) {
	opCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	ttlSeconds := int64(ttl / time.Second)
	raw, err := incrWithCeilingScript.Run(opCtx, b.client, []string{key}, delta, ceiling, ttlSeconds).Result()
	if err != nil {
		return 0, false, &errortypes.StateBackend{Message: fmt.Sprintf("redis bounded increment failed: %v", err)}
	}

	reply, ok := raw.([]interface{})
	if !ok || len(reply) != 2 {
		return 0, false, &errortypes.StateBackend{Message: fmt.Sprintf("redis bounded increment returned unexpected reply %v", raw)}
	}
	value, _ := reply[0].(int64)
	admitted, _ := reply[1].(int64)
	return value, admitted == 1, nil
}

func (b *RedisBackend) Delete(ctx context.Context, key string) error {
	opCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	if err := b.client.Del(opCtx, key).Err(); err != nil {
		return &errortypes.StateBackend{Message: fmt.Sprintf("redis delete failed: %v", err)}
	}
	return nil
}

// Close releases the connection pool.
func (b *RedisBackend) Close() error {
	return b.client.Close()
}

// Ping checks if the store is reachable.
func (b *RedisBackend) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.client.Ping(pingCtx).Err()
}
