// Package macros substitutes session macro tokens ([TIMESTAMP],
// [CACHEBUSTING], [CORRELATOR]) into ad tag URLs before each hop fetch.
package macros

import (
	"bytes"
	"strings"
)

const (
	macroPrefix    string = `[`
	macroSuffix    string = `]`
	macroPrefixLen int    = len(macroPrefix)
	macroSuffixLen int    = len(macroSuffix)
)

// Replace substitutes every known macro token in the input string with the
// provider's value for it. Bracket tokens the provider does not know are left
// untouched; they belong to downstream systems (players, trackers) that do
// their own expansion.
func Replace(in string, provider Provider) string {
	var out bytes.Buffer
	pos, size := 0, len(in)

	for pos < size {
		start := strings.Index(in[pos:], macroPrefix)
		if start == -1 {
			out.WriteString(in[pos:])
			break
		}
		start += pos

		end := strings.Index(in[start+macroPrefixLen:], macroSuffix)
		if end == -1 {
			out.WriteString(in[pos:])
			break
		}
		end += start + macroPrefixLen

		out.WriteString(in[pos:start])

		key := in[start+macroPrefixLen : end]
		if value, found := provider.GetMacro(key); found {
			out.WriteString(value)
		} else {
			out.WriteString(in[start : end+macroSuffixLen])
		}

		pos = end + macroSuffixLen
	}

	return out.String()
}
