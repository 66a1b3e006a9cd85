package macros

import (
	"strconv"

	"github.com/xsp-lib/xsp/session"
)

// Session macro keys, bracket form, as they appear in ad tag URLs.
const (
	MacroKeyTimestamp    = "TIMESTAMP"
	MacroKeyCacheBusting = "CACHEBUSTING"
	MacroKeyCorrelator   = "CORRELATOR"
)

type Provider interface {
	// GetMacro returns the macro value for the given macro key and whether the
	// key is known to this provider.
	GetMacro(key string) (string, bool)
}

type sessionProvider struct {
	macros map[string]string
}

// NewProvider builds a Provider exposing the three session macros from the
// given session context.
func NewProvider(sc session.Context) Provider {
	return &sessionProvider{macros: map[string]string{
		MacroKeyTimestamp:    strconv.FormatInt(sc.TimestampMS(), 10),
		MacroKeyCacheBusting: sc.CacheBusting(),
		MacroKeyCorrelator:   sc.Correlator(),
	}}
}

func (p *sessionProvider) GetMacro(key string) (string, bool) {
	value, found := p.macros[key]
	return value, found
}
