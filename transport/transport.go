// Package transport is the network boundary of the resolution engine: one
// operation, fetch a URL and return its body. The chain resolver consumes
// this interface and never touches HTTP itself, which keeps hop fetching
// mockable in tests.
package transport

import (
	"context"
)

// Transport fetches the raw payload behind an ad tag URL. Failures are
// reported as *errortypes.Transport.
type Transport interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Func adapts a plain function to the Transport interface, for tests and
// small compositions.
type Func func(ctx context.Context, url string) ([]byte, error)

func (f Func) Fetch(ctx context.Context, url string) ([]byte, error) {
	return f(ctx, url)
}
