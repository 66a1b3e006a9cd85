// Package vast parses VAST XML far enough to drive chain resolution: is this
// document a wrapper pointing at another ad tag, or an inline creative, and
// which tracking URLs does it carry. Rendering-level elements (media files,
// companions, verification) are deliberately not modeled; the terminal
// payload is handed to the player verbatim.
package vast

import (
	"encoding/xml"
	"strings"
)

type VAST struct {
	XMLName xml.Name `xml:"VAST"`
	Version string   `xml:"version,attr"`
	Ads     []Ad     `xml:"Ad"`
}

type Ad struct {
	ID      string   `xml:"id,attr"`
	InLine  *InLine  `xml:"InLine"`
	Wrapper *Wrapper `xml:"Wrapper"`
}

type InLine struct {
	AdSystem    string   `xml:"AdSystem"`
	Impressions []string `xml:"Impression"`
	Errors      []string `xml:"Error"`
}

type Wrapper struct {
	AdSystem     string   `xml:"AdSystem"`
	VASTAdTagURI string   `xml:"VASTAdTagURI"`
	Impressions  []string `xml:"Impression"`
	Errors       []string `xml:"Error"`
}

// Parse unmarshals a VAST document. It does not judge wrapper vs inline;
// that is Classify's job.
func Parse(payload []byte) (*VAST, error) {
	var doc VAST
	if err := xml.Unmarshal(payload, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// trackers returns an element's impression and error URLs, trimmed, in that
// order, dropping empty entries.
func trackers(impressions, errs []string) []string {
	out := make([]string, 0, len(impressions)+len(errs))
	for _, u := range impressions {
		if trimmed := strings.TrimSpace(u); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	for _, u := range errs {
		if trimmed := strings.TrimSpace(u); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
