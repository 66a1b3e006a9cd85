package policy

import (
	"context"
	"strconv"

	"github.com/golang/glog"
	"github.com/shopspring/decimal"

	"github.com/xsp-lib/xsp/state"
)

// microShift converts currency amounts to integer micro-units, the resolution
// the backend counters run at. Integer micros keep the arithmetic exact over
// millions of increments; binary floats would drift.
const microShift = 6

// BudgetTracker enforces "total campaign spend must not exceed budget".
type BudgetTracker struct {
	backend    state.Backend
	failClosed bool
}

func NewBudgetTracker(backend state.Backend, cfg Config) *BudgetTracker {
	return &BudgetTracker{backend: backend, failClosed: cfg.FailClosed}
}

// TrySpend records amount against campaignID's running spend if the budget
// still covers it, and reports whether the ad may serve. The read, compare
// and add are one atomic backend operation, so concurrent spenders can never
// jointly exceed the limit.
//
// Amounts finer than one micro-unit are a caller bug and are rejected.
func (t *BudgetTracker) TrySpend(ctx context.Context, campaignID string, amount, budgetLimit decimal.Decimal) bool {
	amountMicros, ok := toMicros(amount)
	if !ok || amountMicros <= 0 {
		glog.Errorf("Rejecting spend of %s on campaign %s: amounts must be positive multiples of a micro-unit", amount, campaignID)
		return false
	}
	limitMicros, ok := toMicros(budgetLimit)
	if !ok {
		glog.Errorf("Rejecting spend on campaign %s: budget limit %s is finer than a micro-unit", campaignID, budgetLimit)
		return false
	}

	key := budgetKey(campaignID)
	_, admitted, err := t.backend.IncrWithCeiling(ctx, key, amountMicros, limitMicros, 0)
	if err != nil {
		glog.Warningf("Budget check for %s unavailable (fail-%s): %v", key, failMode(t.failClosed), err)
		return !t.failClosed
	}
	return admitted
}

// Spent reads campaignID's running spend; zero if nothing was recorded.
func (t *BudgetTracker) Spent(ctx context.Context, campaignID string) (decimal.Decimal, error) {
	raw, err := t.backend.Get(ctx, budgetKey(campaignID))
	if err != nil {
		if err == state.ErrKeyNotFound {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	micros, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.New(micros, -microShift), nil
}

// toMicros converts a currency amount to whole micro-units. The second
// return value is false when the amount has sub-micro precision.
func toMicros(amount decimal.Decimal) (int64, bool) {
	shifted := amount.Shift(microShift)
	if !shifted.IsInteger() {
		return 0, false
	}
	return shifted.IntPart(), true
}

func budgetKey(campaignID string) string {
	return "budget:" + campaignID
}
