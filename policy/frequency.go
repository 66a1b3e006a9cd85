// Package policy holds the session-scoped serving policies: frequency caps
// and budget ceilings. Both ride on state.Backend's atomic bounded increment,
// so the check and the increment are one operation even when the store is
// shared across processes. Rejections are routine outcomes expressed as
// booleans, not errors; backend outages are absorbed here via the configured
// fail-open/fail-closed policy and never fail the request.
package policy

import (
	"context"
	"fmt"
	"time"

	"github.com/golang/glog"

	"github.com/xsp-lib/xsp/state"
)

// Config tunes policy behavior.
type Config struct {
	// FailClosed suppresses serving when the state backend is unreachable.
	// The default is fail-open: a broken counter store should degrade
	// capping, not take the whole service down. This is a product decision;
	// hosts that must never over-serve flip it.
	FailClosed bool `mapstructure:"fail_closed"`
}

// FrequencyCapper enforces "at most N impressions per user per campaign per
// window".
type FrequencyCapper struct {
	backend    state.Backend
	failClosed bool
}

func NewFrequencyCapper(backend state.Backend, cfg Config) *FrequencyCapper {
	return &FrequencyCapper{backend: backend, failClosed: cfg.FailClosed}
}

// CheckAndIncrement consumes one impression slot for (userID, campaignID) if
// any remain in the current window and reports whether the ad may serve. The
// window TTL starts at the first impression and is not extended by later
// ones.
func (f *FrequencyCapper) CheckAndIncrement(ctx context.Context, userID, campaignID string, limit int64, window time.Duration) bool {
	if limit <= 0 {
		return false
	}

	key := frequencyKey(userID, campaignID)
	_, admitted, err := f.backend.IncrWithCeiling(ctx, key, 1, limit, window)
	if err != nil {
		glog.Warningf("Frequency check for %s unavailable (fail-%s): %v", key, failMode(f.failClosed), err)
		return !f.failClosed
	}
	return admitted
}

// Count reads the current impression count for (userID, campaignID); zero if
// no window is open.
func (f *FrequencyCapper) Count(ctx context.Context, userID, campaignID string) (int64, error) {
	raw, err := f.backend.Get(ctx, frequencyKey(userID, campaignID))
	if err != nil {
		if err == state.ErrKeyNotFound {
			return 0, nil
		}
		return 0, err
	}
	var count int64
	if _, err := fmt.Sscanf(raw, "%d", &count); err != nil {
		return 0, fmt.Errorf("frequency counter %q is not an integer: %w", raw, err)
	}
	return count, nil
}

// Reset clears the window for (userID, campaignID).
func (f *FrequencyCapper) Reset(ctx context.Context, userID, campaignID string) error {
	return f.backend.Delete(ctx, frequencyKey(userID, campaignID))
}

func frequencyKey(userID, campaignID string) string {
	return "freq:" + userID + ":" + campaignID
}

func failMode(failClosed bool) string {
	if failClosed {
		return "closed"
	}
	return "open"
}
