// Package resolver follows a VAST wrapper chain from a starting ad tag URL to
// its terminal inline creative. Hops are strictly sequential: each hop's URL
// only exists inside the previous hop's response. The resolver itself holds
// no state across calls, so one instance serves any number of concurrent
// requests.
package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/golang/glog"

	"github.com/xsp-lib/xsp/errortypes"
	"github.com/xsp-lib/xsp/macros"
	"github.com/xsp-lib/xsp/session"
	"github.com/xsp-lib/xsp/transport"
	"github.com/xsp-lib/xsp/vast"
)

// DefaultMaxDepth follows IAB guidance on wrapper chain length.
const DefaultMaxDepth = 5

// Config tunes one ChainResolver.
type Config struct {
	// MaxDepth is the maximum number of wrapper hops to follow.
	MaxDepth int `mapstructure:"max_depth"`
	// PerHopTimeoutMS bounds each individual hop fetch. Zero leaves the
	// transport's own timeout in charge.
	PerHopTimeoutMS int `mapstructure:"per_hop_timeout_ms"`
}

// Result is a completed resolution: the terminal creative plus everything
// collected on the way there.
type Result struct {
	// TerminalPayload is the inline creative ending the chain.
	TerminalPayload []byte
	// HopCount is the number of wrapper hops followed; zero means the first
	// fetch was already terminal.
	HopCount int
	// TrackingURLs holds every traversed hop's trackers concatenated in hop
	// order. Players must fire trackers for every wrapper, not just the
	// terminal ad, so order and completeness both matter.
	TrackingURLs []string
	// ElapsedMS is the resolution wall-clock duration.
	ElapsedMS int64
}

// Classifier decides whether a fetched payload is a wrapper or a terminal
// creative. vast.Classify is the stock implementation.
type Classifier func(payload []byte) (*vast.Classification, error)

// ChainResolver resolves wrapper chains over a Transport.
type ChainResolver struct {
	fetcher       transport.Transport
	classify      Classifier
	maxDepth      int
	perHopTimeout time.Duration
}

// New builds a ChainResolver with an explicit classifier.
func New(fetcher transport.Transport, classify Classifier, cfg Config) *ChainResolver {
	maxDepth := cfg.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &ChainResolver{
		fetcher:       fetcher,
		classify:      classify,
		maxDepth:      maxDepth,
		perHopTimeout: time.Duration(cfg.PerHopTimeoutMS) * time.Millisecond,
	}
}

// NewVAST builds a ChainResolver using the VAST classifier.
func NewVAST(fetcher transport.Transport, cfg Config) *ChainResolver {
	return New(fetcher, vast.Classify, cfg)
}

// Resolve walks the wrapper chain starting at startURL. Session macros are
// substituted into every hop's URL before fetching. On failure the returned
// error carries the tracking URLs collected from the hops that did complete;
// callers are expected to fire them anyway.
func (r *ChainResolver) Resolve(ctx context.Context, startURL string, sc session.Context) (*Result, error) {
	if startURL == "" {
		return nil, &errortypes.BadInput{Message: "resolve requires a non-empty starting url"}
	}

	start := time.Now()
	provider := macros.NewProvider(sc)

	var collected []string
	hops := 0
	url := startURL

	for {
		payload, err := r.fetchHop(ctx, macros.Replace(url, provider))
		if err != nil {
			return nil, r.attachProgress(err, collected, hops, sc)
		}

		classification, err := r.classify(payload)
		if err != nil {
			return nil, r.attachProgress(err, collected, hops, sc)
		}

		if classification.Kind == vast.KindInline {
			collected = append(collected, classification.TrackingURLs...)
			result := &Result{
				TerminalPayload: classification.Creative,
				HopCount:        hops,
				TrackingURLs:    collected,
				ElapsedMS:       time.Since(start).Milliseconds(),
			}
			glog.V(2).Infof("Resolved chain for request %s: %d hops, %d trackers, %dms",
				sc.RequestID(), result.HopCount, len(result.TrackingURLs), result.ElapsedMS)
			return result, nil
		}

		// Wrapper. Following it costs one hop; refuse before fetching past
		// the depth limit so the violating hop's trackers are never mixed in.
		if hops+1 > r.maxDepth {
			glog.Warningf("Chain for request %s exceeded max depth %d", sc.RequestID(), r.maxDepth)
			return nil, &errortypes.DepthExceeded{
				Message:      fmt.Sprintf("wrapper chain exceeded max depth %d", r.maxDepth),
				MaxDepth:     r.maxDepth,
				TrackingURLs: collected,
				Hops:         hops,
			}
		}
		collected = append(collected, classification.TrackingURLs...)
		hops++
		url = classification.NextURL
	}
}

func (r *ChainResolver) fetchHop(ctx context.Context, url string) ([]byte, error) {
	if r.perHopTimeout > 0 {
		hopCtx, cancel := context.WithTimeout(ctx, r.perHopTimeout)
		defer cancel()
		return r.fetcher.Fetch(hopCtx, url)
	}
	return r.fetcher.Fetch(ctx, url)
}

// attachProgress copies the partial chain state into errors that can carry
// it, so the caller can still fire the trackers collected before the failure.
func (r *ChainResolver) attachProgress(err error, collected []string, hops int, sc session.Context) error {
	switch e := err.(type) {
	case *errortypes.Transport:
		e.TrackingURLs = collected
		e.Hops = hops
		glog.Warningf("Chain for request %s failed at hop %d: %v", sc.RequestID(), hops+1, err)
		return e
	case *errortypes.MalformedResponse:
		e.TrackingURLs = collected
		e.Hops = hops
		glog.Warningf("Chain for request %s returned unclassifiable payload at hop %d: %v", sc.RequestID(), hops+1, err)
		return e
	default:
		return &errortypes.Transport{
			Message:      fmt.Sprintf("hop fetch failed: %v", err),
			TrackingURLs: collected,
			Hops:         hops,
		}
	}
}
