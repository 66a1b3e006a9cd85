package state

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/xsp-lib/xsp/util/timeutil"
)

// MemoryBackend is a process-local Backend for single-instance deployments
// and tests. Expiry is checked lazily on access; there is no sweeper, since
// policy counters are few and short-lived.
type MemoryBackend struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	clock   timeutil.Time
}

type memoryEntry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

func NewMemoryBackend(clock timeutil.Time) *MemoryBackend {
	if clock == nil {
		clock = &timeutil.RealTime{}
	}
	return &MemoryBackend{
		entries: make(map[string]memoryEntry),
		clock:   clock,
	}
}

func (b *MemoryBackend) Get(ctx context.Context, key string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.liveEntry(key)
	if !ok {
		return "", ErrKeyNotFound
	}
	return entry.value, nil
}

func (b *MemoryBackend) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[key] = memoryEntry{value: value, expiresAt: b.deadline(ttl)}
	return nil
}

func (b *MemoryBackend) IncrWithCeiling(ctx context.Context, key string, delta, ceiling int64, ttl time.Duration) (int64, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var current int64
	entry, ok := b.liveEntry(key)
	if ok {
		parsed, err := strconv.ParseInt(entry.value, 10, 64)
		if err != nil {
			return 0, false, err
		}
		current = parsed
	}

	if current+delta > ceiling {
		return current, false, nil
	}

	next := current + delta
	updated := memoryEntry{value: strconv.FormatInt(next, 10)}
	if ok {
		// window already open, keep its original deadline
		updated.expiresAt = entry.expiresAt
	} else {
		updated.expiresAt = b.deadline(ttl)
	}
	b.entries[key] = updated
	return next, true, nil
}

func (b *MemoryBackend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.entries, key)
	return nil
}

func (b *MemoryBackend) Close() error {
	return nil
}

// liveEntry returns the entry at key, reaping it first if expired. Callers
// must hold the mutex.
func (b *MemoryBackend) liveEntry(key string) (memoryEntry, bool) {
	entry, ok := b.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !entry.expiresAt.IsZero() && !b.clock.Now().Before(entry.expiresAt) {
		delete(b.entries, key)
		return memoryEntry{}, false
	}
	return entry, true
}

func (b *MemoryBackend) deadline(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return b.clock.Now().Add(ttl)
}
