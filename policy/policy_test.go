package policy

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xsp-lib/xsp/state"
	"github.com/xsp-lib/xsp/util/timeutil"
)

// downBackend simulates an unreachable state store.
type downBackend struct{}

func (downBackend) Get(context.Context, string) (string, error) {
	return "", errors.New("backend unreachable")
}
func (downBackend) Set(context.Context, string, string, time.Duration) error {
	return errors.New("backend unreachable")
}
func (downBackend) IncrWithCeiling(context.Context, string, int64, int64, time.Duration) (int64, bool, error) {
	return 0, false, errors.New("backend unreachable")
}
func (downBackend) Delete(context.Context, string) error { return errors.New("backend unreachable") }
func (downBackend) Close() error                         { return nil }

func TestFrequencyCapSequential(t *testing.T) {
	ctx := context.Background()
	capper := NewFrequencyCapper(state.NewMemoryBackend(nil), Config{})

	for i := 0; i < 3; i++ {
		assert.True(t, capper.CheckAndIncrement(ctx, "u1", "c1", 3, time.Minute), "impression %d within the cap", i+1)
	}
	assert.False(t, capper.CheckAndIncrement(ctx, "u1", "c1", 3, time.Minute), "impression past the cap must be refused")

	count, err := capper.Count(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count, "refused check must not increment")

	// other users and campaigns have independent windows
	assert.True(t, capper.CheckAndIncrement(ctx, "u2", "c1", 3, time.Minute))
	assert.True(t, capper.CheckAndIncrement(ctx, "u1", "c2", 3, time.Minute))
}

func TestFrequencyCapWindowExpiry(t *testing.T) {
	ctx := context.Background()
	clock := timeutil.NewMockClock(time.Unix(1700000000, 0))
	capper := NewFrequencyCapper(state.NewMemoryBackend(clock), Config{})

	require.True(t, capper.CheckAndIncrement(ctx, "u1", "c1", 1, 30*time.Second))
	require.False(t, capper.CheckAndIncrement(ctx, "u1", "c1", 1, 30*time.Second))

	clock.Advance(31 * time.Second)
	assert.True(t, capper.CheckAndIncrement(ctx, "u1", "c1", 1, 30*time.Second), "a fresh window opens after expiry")
}

func TestFrequencyCapAtomicUnderConcurrency(t *testing.T) {
	const (
		callers = 40
		limit   = 5
	)
	ctx := context.Background()
	capper := NewFrequencyCapper(state.NewMemoryBackend(nil), Config{})

	var wg sync.WaitGroup
	served := make(chan bool, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			served <- capper.CheckAndIncrement(ctx, "u1", "c1", limit, time.Minute)
		}()
	}
	wg.Wait()
	close(served)

	admitted := 0
	for ok := range served {
		if ok {
			admitted++
		}
	}
	assert.Equal(t, limit, admitted, "exactly limit callers may serve, never more")
}

func TestFrequencyCapFailOpenAndClosed(t *testing.T) {
	ctx := context.Background()

	open := NewFrequencyCapper(downBackend{}, Config{})
	assert.True(t, open.CheckAndIncrement(ctx, "u1", "c1", 1, time.Minute), "fail-open serves through an outage")

	closed := NewFrequencyCapper(downBackend{}, Config{FailClosed: true})
	assert.False(t, closed.CheckAndIncrement(ctx, "u1", "c1", 1, time.Minute), "fail-closed refuses through an outage")
}

func TestFrequencyCapReset(t *testing.T) {
	ctx := context.Background()
	capper := NewFrequencyCapper(state.NewMemoryBackend(nil), Config{})

	require.True(t, capper.CheckAndIncrement(ctx, "u1", "c1", 1, time.Minute))
	require.False(t, capper.CheckAndIncrement(ctx, "u1", "c1", 1, time.Minute))
	require.NoError(t, capper.Reset(ctx, "u1", "c1"))
	assert.True(t, capper.CheckAndIncrement(ctx, "u1", "c1", 1, time.Minute))
}

func TestBudgetSequentialExactArithmetic(t *testing.T) {
	ctx := context.Background()
	tracker := NewBudgetTracker(state.NewMemoryBackend(nil), Config{})
	limit := decimal.RequireFromString("1.00")
	dime := decimal.RequireFromString("0.10")

	// ten dimes exactly exhaust a dollar; float arithmetic would drift here
	for i := 0; i < 10; i++ {
		assert.True(t, tracker.TrySpend(ctx, "c1", dime, limit), "spend %d within budget", i+1)
	}
	assert.False(t, tracker.TrySpend(ctx, "c1", decimal.RequireFromString("0.000001"), limit),
		"a single micro-unit past the limit must be refused")

	spent, err := tracker.Spent(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, spent.Equal(limit), "spent %s, want %s", spent, limit)
}

func TestBudgetRejectsBadAmounts(t *testing.T) {
	ctx := context.Background()
	tracker := NewBudgetTracker(state.NewMemoryBackend(nil), Config{})
	limit := decimal.RequireFromString("10.00")

	assert.False(t, tracker.TrySpend(ctx, "c1", decimal.RequireFromString("0.0000001"), limit),
		"sub-micro precision is rejected")
	assert.False(t, tracker.TrySpend(ctx, "c1", decimal.Zero, limit))
	assert.False(t, tracker.TrySpend(ctx, "c1", decimal.RequireFromString("-1"), limit))

	spent, err := tracker.Spent(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, spent.IsZero())
}

func TestBudgetAtomicUnderConcurrency(t *testing.T) {
	const callers = 40
	ctx := context.Background()
	tracker := NewBudgetTracker(state.NewMemoryBackend(nil), Config{})
	limit := decimal.RequireFromString("5.00")
	amount := decimal.RequireFromString("0.75")

	var wg sync.WaitGroup
	served := make(chan bool, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			served <- tracker.TrySpend(ctx, "c1", amount, limit)
		}()
	}
	wg.Wait()
	close(served)

	admitted := 0
	for ok := range served {
		if ok {
			admitted++
		}
	}

	total := amount.Mul(decimal.NewFromInt(int64(admitted)))
	assert.True(t, total.LessThanOrEqual(limit), "admitted spend %s exceeds limit %s", total, limit)
	assert.Equal(t, 6, admitted, "6 x 0.75 = 4.50 fits, a 7th would cross 5.00")

	spent, err := tracker.Spent(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, spent.Equal(total))
}

func TestBudgetFailOpenAndClosed(t *testing.T) {
	ctx := context.Background()
	amount := decimal.RequireFromString("0.50")
	limit := decimal.RequireFromString("1.00")

	open := NewBudgetTracker(downBackend{}, Config{})
	assert.True(t, open.TrySpend(ctx, "c1", amount, limit))

	closed := NewBudgetTracker(downBackend{}, Config{FailClosed: true})
	assert.False(t, closed.TrySpend(ctx, "c1", amount, limit))
}
