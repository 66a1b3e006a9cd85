// Package orchestrator is the facade over the resolution engine: it routes a
// protocol-tagged ad request to its registered resolver, caches resolved
// chains by request fingerprint, and returns a normalized response envelope.
package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/xsp-lib/xsp/errortypes"
	"github.com/xsp-lib/xsp/metrics"
	"github.com/xsp-lib/xsp/resolver"
	"github.com/xsp-lib/xsp/respcache"
	"github.com/xsp-lib/xsp/session"
)

// ProtocolVAST is the tag of the stock VAST resolver.
const ProtocolVAST = "vast"

// ProtocolResolver resolves one protocol's ad tag to a terminal creative.
type ProtocolResolver interface {
	Resolve(ctx context.Context, url string, sc session.Context) (*resolver.Result, error)
}

// AdRequest is one inbound ad request, already carrying its session.
type AdRequest struct {
	// Protocol selects the registered resolver, e.g. "vast".
	Protocol string
	// TagURL is the starting ad tag, possibly containing session macro
	// tokens. The tokens are substituted per hop at fetch time, so the raw
	// template is session-free and safe to fingerprint.
	TagURL string
	// Params are normalized non-session parameters that distinguish
	// otherwise identical tags (placement, size). They participate in the
	// cache key.
	Params  map[string]string
	Session session.Context
}

// AdResponse is the normalized envelope returned to the caller.
type AdResponse struct {
	Status       string   `json:"status"`
	Payload      []byte   `json:"payload,omitempty"`
	HopCount     int      `json:"hop_count"`
	TrackingURLs []string `json:"tracking_urls,omitempty"`
	ElapsedMS    int64    `json:"elapsed_ms"`
	RequestID    string   `json:"request_id"`
	Cached       bool     `json:"cached"`
}

// cachedResolution is the cache payload: the terminal creative plus the hop
// metadata that must survive a cache hit.
type cachedResolution struct {
	Payload      []byte   `json:"payload"`
	HopCount     int      `json:"hop_count"`
	TrackingURLs []string `json:"tracking_urls"`
}

// Orchestrator composes the registered resolvers with the response cache. It
// has no state beyond that composition.
type Orchestrator struct {
	resolvers map[string]ProtocolResolver
	cache     *respcache.Cache
	cacheTTL  time.Duration
	metrics   *metrics.Engine
}

func New(cache *respcache.Cache, cacheTTL time.Duration, me *metrics.Engine) *Orchestrator {
	if me == nil {
		me = metrics.NewBlank()
	}
	return &Orchestrator{
		resolvers: make(map[string]ProtocolResolver),
		cache:     cache,
		cacheTTL:  cacheTTL,
		metrics:   me,
	}
}

// Register binds a resolver to a protocol tag. Tags are case-insensitive.
func (o *Orchestrator) Register(protocol string, r ProtocolResolver) {
	o.resolvers[strings.ToLower(protocol)] = r
}

// Serve resolves req via the registered resolver for its protocol, through
// the response cache. Resolution errors propagate to the caller unwrapped;
// the ingress layer decides how to present them.
func (o *Orchestrator) Serve(ctx context.Context, req AdRequest) (*AdResponse, error) {
	start := time.Now()

	protocolResolver, ok := o.resolvers[strings.ToLower(req.Protocol)]
	if !ok {
		o.metrics.RecordError()
		return nil, &errortypes.UnknownProtocol{Message: fmt.Sprintf("no resolver registered for protocol %q", req.Protocol)}
	}

	key := fingerprint(req.Protocol, req.TagURL, req.Params)
	raw, cached, err := o.cache.GetOrFetch(ctx, key, o.cacheTTL, func(fetchCtx context.Context) ([]byte, error) {
		result, err := protocolResolver.Resolve(fetchCtx, req.TagURL, req.Session)
		if err != nil {
			return nil, err
		}
		return json.Marshal(cachedResolution{
			Payload:      result.TerminalPayload,
			HopCount:     result.HopCount,
			TrackingURLs: result.TrackingURLs,
		})
	})
	if err != nil {
		o.metrics.RecordError()
		return nil, err
	}

	var resolution cachedResolution
	if err := json.Unmarshal(raw, &resolution); err != nil {
		// Can only happen if a foreign writer shares the cache store.
		o.metrics.RecordError()
		glog.Errorf("Corrupt cache entry for key %s: %v", key, err)
		return nil, fmt.Errorf("corrupt cache entry for key %s: %w", key, err)
	}

	elapsed := time.Since(start)
	o.metrics.RecordResolution(elapsed, resolution.HopCount, cached)

	return &AdResponse{
		Status:       "ok",
		Payload:      resolution.Payload,
		HopCount:     resolution.HopCount,
		TrackingURLs: resolution.TrackingURLs,
		ElapsedMS:    elapsed.Milliseconds(),
		RequestID:    req.Session.RequestID(),
		Cached:       cached,
	}, nil
}

// fingerprint builds the cache key from the protocol, the tag template and
// the sorted normalized params. Session fields never participate: the
// per-request macros must not bust the cache, only the served URLs.
func fingerprint(protocol, tagURL string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	h.Write([]byte(strings.ToLower(protocol)))
	h.Write([]byte{0})
	h.Write([]byte(tagURL))
	for _, k := range keys {
		h.Write([]byte{0})
		h.Write([]byte(k))
		h.Write([]byte{'='})
		h.Write([]byte(params[k]))
	}
	return hex.EncodeToString(h.Sum(nil))
}
