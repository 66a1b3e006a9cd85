package timeutil

import (
	"sync"
	"time"
)

// MockClock is a Time implementation that only moves when told to, for
// testing TTL expiry and other time-sensitive code deterministically.
type MockClock struct {
	mu      sync.RWMutex
	current time.Time
}

var _ Time = &MockClock{}

// NewMockClock creates a MockClock frozen at the given instant.
func NewMockClock(now time.Time) *MockClock {
	return &MockClock{current: now}
}

// Advance moves the clock forward by d.
func (mc *MockClock) Advance(d time.Duration) {
	mc.mu.Lock()
	mc.current = mc.current.Add(d)
	mc.mu.Unlock()
}

// Set jumps the clock to an absolute instant.
func (mc *MockClock) Set(now time.Time) {
	mc.mu.Lock()
	mc.current = now
	mc.mu.Unlock()
}

// Now returns the clock's current instant.
func (mc *MockClock) Now() time.Time {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.current
}
