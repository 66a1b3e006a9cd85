package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xsp-lib/xsp/errortypes"
	"github.com/xsp-lib/xsp/resolver"
	"github.com/xsp-lib/xsp/respcache"
	"github.com/xsp-lib/xsp/session"
)

type fakeResolver struct {
	calls  int
	result *resolver.Result
	err    error
}

func (f *fakeResolver) Resolve(ctx context.Context, url string, sc session.Context) (*resolver.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func newTestOrchestrator(r ProtocolResolver) *Orchestrator {
	o := New(respcache.New(respcache.NewLRU(16, nil)), time.Minute, nil)
	o.Register(ProtocolVAST, r)
	return o
}

func testRequest(sc session.Context) AdRequest {
	return AdRequest{
		Protocol: "vast",
		TagURL:   "https://ads.example.com/vast?cb=[CACHEBUSTING]",
		Params:   map[string]string{"placement": "preroll", "size": "640x480"},
		Session:  sc,
	}
}

func TestServeResolvesAndCaches(t *testing.T) {
	fake := &fakeResolver{result: &resolver.Result{
		TerminalPayload: []byte("<VAST/>"),
		HopCount:        2,
		TrackingURLs:    []string{"http://t.example.com/1", "http://t.example.com/2"},
	}}
	o := newTestOrchestrator(fake)

	resp, err := o.Serve(context.Background(), testRequest(session.New(nil)))
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, []byte("<VAST/>"), resp.Payload)
	assert.Equal(t, 2, resp.HopCount)
	assert.Len(t, resp.TrackingURLs, 2)
	assert.False(t, resp.Cached)
	assert.NotEmpty(t, resp.RequestID)

	// a second request with a different session hits the cache: session
	// fields are not part of the fingerprint
	resp2, err := o.Serve(context.Background(), testRequest(session.New(nil)))
	require.NoError(t, err)
	assert.True(t, resp2.Cached)
	assert.Equal(t, resp.Payload, resp2.Payload)
	assert.Equal(t, resp.HopCount, resp2.HopCount, "hop metadata survives the cache")
	assert.Equal(t, 1, fake.calls, "resolver runs once within the TTL")
	assert.NotEqual(t, resp.RequestID, resp2.RequestID)
}

func TestServeUnknownProtocol(t *testing.T) {
	o := newTestOrchestrator(&fakeResolver{})

	_, err := o.Serve(context.Background(), AdRequest{
		Protocol: "openrtb",
		TagURL:   "https://ads.example.com/rtb",
		Session:  session.New(nil),
	})
	require.Error(t, err)
	assert.Equal(t, errortypes.UnknownProtocolErrorCode, errortypes.ReadCode(err))
}

func TestServeProtocolTagCaseInsensitive(t *testing.T) {
	fake := &fakeResolver{result: &resolver.Result{TerminalPayload: []byte("<VAST/>")}}
	o := newTestOrchestrator(fake)

	req := testRequest(session.New(nil))
	req.Protocol = "VAST"
	_, err := o.Serve(context.Background(), req)
	assert.NoError(t, err)
}

func TestServeResolverErrorNotCached(t *testing.T) {
	fake := &fakeResolver{err: &errortypes.Transport{Message: "upstream down", TrackingURLs: []string{"http://t.example.com/1"}}}
	o := newTestOrchestrator(fake)

	_, err := o.Serve(context.Background(), testRequest(session.New(nil)))
	require.Error(t, err)
	assert.Equal(t, errortypes.TransportErrorCode, errortypes.ReadCode(err))
	assert.Equal(t, []string{"http://t.example.com/1"}, errortypes.ReadTrackers(err),
		"partial trackers survive through the orchestrator")

	// the failure is not cached; a recovered upstream is retried
	fake.err = nil
	fake.result = &resolver.Result{TerminalPayload: []byte("<VAST/>")}
	_, err = o.Serve(context.Background(), testRequest(session.New(nil)))
	assert.NoError(t, err)
	assert.Equal(t, 2, fake.calls)
}

func TestFingerprint(t *testing.T) {
	base := fingerprint("vast", "https://a.example.com/tag", map[string]string{"a": "1", "b": "2"})

	assert.Equal(t, base,
		fingerprint("VAST", "https://a.example.com/tag", map[string]string{"b": "2", "a": "1"}),
		"param order and protocol case do not change the key")
	assert.NotEqual(t, base, fingerprint("vast", "https://a.example.com/tag", map[string]string{"a": "1"}))
	assert.NotEqual(t, base, fingerprint("vast", "https://b.example.com/tag", map[string]string{"a": "1", "b": "2"}))
	assert.NotEqual(t, base, fingerprint("openrtb", "https://a.example.com/tag", map[string]string{"a": "1", "b": "2"}))
}
