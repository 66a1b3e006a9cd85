// Package session holds the per-request identity threaded through a wrapper
// chain resolution: timestamps, correlation ids and the caller's cookie
// snapshot. A Context is built once per inbound ad request and never mutated.
package session

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/golang/glog"
)

// Context is an immutable snapshot of one inbound ad request's identity. The
// correlator is stable across every hop of the chain; the cache-busting token
// is minted fresh per top-level request so intermediate HTTP caches never
// serve a stale creative.
type Context struct {
	timestampMS  int64
	correlator   string
	cacheBusting string
	requestID    string
	cookies      map[string]string
}

// New builds a Context stamped with the current wall clock and freshly minted
// identifiers. The cookie map is copied; later changes by the caller do not
// leak into the session.
func New(cookies map[string]string) Context {
	return NewWithValues(
		time.Now().UnixMilli(),
		newID(),
		newID(),
		newID(),
		cookies,
	)
}

// NewWithValues builds a Context from explicit field values. Callers outside
// of tests should prefer New.
func NewWithValues(timestampMS int64, correlator, cacheBusting, requestID string, cookies map[string]string) Context {
	snapshot := make(map[string]string, len(cookies))
	for k, v := range cookies {
		snapshot[k] = v
	}
	return Context{
		timestampMS:  timestampMS,
		correlator:   correlator,
		cacheBusting: cacheBusting,
		requestID:    requestID,
		cookies:      snapshot,
	}
}

// TimestampMS returns the session creation time in milliseconds since epoch.
func (c Context) TimestampMS() int64 {
	return c.timestampMS
}

// Correlator returns the chain-stable correlation id.
func (c Context) Correlator() string {
	return c.correlator
}

// CacheBusting returns the per-request cache-busting token.
func (c Context) CacheBusting() string {
	return c.cacheBusting
}

// RequestID returns the log/trace correlation id.
func (c Context) RequestID() string {
	return c.requestID
}

// Cookie returns the value of one cookie from the session snapshot.
func (c Context) Cookie(name string) (string, bool) {
	v, ok := c.cookies[name]
	return v, ok
}

// Cookies returns a copy of the cookie snapshot.
func (c Context) Cookies() map[string]string {
	out := make(map[string]string, len(c.cookies))
	for k, v := range c.cookies {
		out[k] = v
	}
	return out
}

func newID() string {
	rawUuid, err := uuid.NewV4()
	if err != nil {
		// uuid.NewV4 only fails when the OS entropy source does; nothing
		// downstream can proceed sensibly without ids.
		glog.Fatalf("Error generating session id: %v", err)
	}
	return rawUuid.String()
}
