package vast

import (
	"fmt"
	"strings"

	"github.com/xsp-lib/xsp/errortypes"
)

// Kind tells the resolver whether a hop ended the chain.
type Kind int

const (
	// KindWrapper means the payload redirects to another ad tag URL.
	KindWrapper Kind = iota
	// KindInline means the payload is the terminal, playable creative.
	KindInline
)

// Classification is the resolver-facing view of one fetched payload.
type Classification struct {
	Kind Kind
	// NextURL is the wrapped ad tag URI. Set only for KindWrapper.
	NextURL string
	// TrackingURLs are this hop's impression and error trackers, in that
	// order, as they appeared in the document.
	TrackingURLs []string
	// Creative is the raw terminal payload. Set only for KindInline.
	Creative []byte
}

// Classify decides whether payload is a wrapper or an inline creative and
// extracts its tracking URLs. Anything that cannot be decided either way
// (not VAST, broken XML, empty VAST, an ad with neither InLine nor Wrapper,
// a wrapper without a tag URI) is a *errortypes.MalformedResponse.
func Classify(payload []byte) (*Classification, error) {
	if !strings.Contains(string(payload), "<VAST") {
		return nil, &errortypes.MalformedResponse{Message: "payload does not contain VAST XML"}
	}

	doc, err := Parse(payload)
	if err != nil {
		return nil, &errortypes.MalformedResponse{Message: fmt.Sprintf("failed to parse VAST XML: %v", err)}
	}

	if len(doc.Ads) == 0 {
		return nil, &errortypes.MalformedResponse{Message: "VAST response contains no ads"}
	}

	// Multi-ad pods are out of scope; the first ad decides the hop.
	ad := doc.Ads[0]
	switch {
	case ad.Wrapper != nil:
		nextURL := strings.TrimSpace(ad.Wrapper.VASTAdTagURI)
		if nextURL == "" {
			return nil, &errortypes.MalformedResponse{Message: "wrapper is missing VASTAdTagURI"}
		}
		return &Classification{
			Kind:         KindWrapper,
			NextURL:      nextURL,
			TrackingURLs: trackers(ad.Wrapper.Impressions, ad.Wrapper.Errors),
		}, nil
	case ad.InLine != nil:
		return &Classification{
			Kind:         KindInline,
			TrackingURLs: trackers(ad.InLine.Impressions, ad.InLine.Errors),
			Creative:     payload,
		}, nil
	default:
		return nil, &errortypes.MalformedResponse{Message: "ad contains neither InLine nor Wrapper"}
	}
}
