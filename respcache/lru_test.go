package respcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/xsp-lib/xsp/util/timeutil"
)

func TestLRUGetSet(t *testing.T) {
	c := NewLRU(10, nil)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("k", []byte("payload"), time.Minute)
	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, []byte("payload"), v)
	assert.Equal(t, 1, c.Len())
}

func TestLRUNeverServesPastDeadline(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(1700000000, 0))
	c := NewLRU(10, clock)

	c.Set("k", []byte("payload"), 30*time.Second)

	clock.Advance(29 * time.Second)
	_, ok := c.Get("k")
	assert.True(t, ok)

	clock.Advance(time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok, "entry at its deadline must not be served")
	assert.Equal(t, 0, c.Len(), "expired entry is dropped on access")
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRU(3, nil)

	c.Set("a", []byte("1"), time.Minute)
	c.Set("b", []byte("2"), time.Minute)
	c.Set("c", []byte("3"), time.Minute)

	// touch "a" so "b" becomes the least recently used
	_, ok := c.Get("a")
	assert.True(t, ok)

	c.Set("d", []byte("4"), time.Minute)

	_, ok = c.Get("b")
	assert.False(t, ok, "least recently used entry must be evicted")
	for _, key := range []string{"a", "c", "d"} {
		_, ok := c.Get(key)
		assert.True(t, ok, "recently used entry %q must survive", key)
	}
	assert.Equal(t, 3, c.Len())
}

func TestLRUSetExistingRefreshes(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(1700000000, 0))
	c := NewLRU(3, clock)

	c.Set("k", []byte("old"), 10*time.Second)
	clock.Advance(8 * time.Second)
	c.Set("k", []byte("new"), 10*time.Second)

	clock.Advance(8 * time.Second)
	v, ok := c.Get("k")
	assert.True(t, ok, "rewritten entry gets a fresh deadline")
	assert.Equal(t, []byte("new"), v)
	assert.Equal(t, 1, c.Len())
}

func TestLRUSweepExpired(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(1700000000, 0))
	c := NewLRU(10, clock)

	c.Set("short", []byte("1"), 10*time.Second)
	c.Set("long", []byte("2"), 10*time.Minute)

	clock.Advance(30 * time.Second)
	removed := c.SweepExpired()

	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, c.Len())
	_, ok := c.Get("long")
	assert.True(t, ok)
}

func TestFreecacheStoreRoundTrip(t *testing.T) {
	c := NewFreecacheStore(512 * 1024)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("k", []byte("payload"), time.Minute)
	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, []byte("payload"), v)
	assert.Equal(t, 1, c.Len())
}

func TestNewStoreTypeSelection(t *testing.T) {
	s, err := NewStore(Config{Type: "lru", MaxEntries: 10}, nil)
	assert.NoError(t, err)
	assert.IsType(t, &LRU{}, s)

	s, err = NewStore(Config{Type: "freecache", SizeBytes: 512 * 1024}, nil)
	assert.NoError(t, err)
	assert.IsType(t, &FreecacheStore{}, s)

	s, err = NewStore(Config{}, nil)
	assert.NoError(t, err)
	assert.IsType(t, &LRU{}, s, "empty type defaults to lru")

	_, err = NewStore(Config{Type: "disk"}, nil)
	assert.Error(t, err)
}
