package shared

import (
	"strings"

	"github.com/nexrelay/gatewaycore/pkg/config"
)

// ResolveSuffix strips the first suffix in suffixes that requestedModel
// ends with (leaving a non-empty base). It returns the base model, the
// mapped effort, and whether a suffix was found (spec §4.C). Passed
// config.Settings.AllSuffixes, which is ordered longest-first, the first
// match is the longest.
func ResolveSuffix(requestedModel string, suffixes []config.SuffixEffort) (baseModel string, effort string, matched bool) {
	for _, se := range suffixes {
		if strings.HasSuffix(requestedModel, se.Suffix) {
			base := strings.TrimSuffix(requestedModel, se.Suffix)
			if base == "" {
				continue
			}
			return base, se.Effort, true
		}
	}
	return requestedModel, "", false
}

// EffectiveMaxMultiplier returns the minimum of every provided ceiling,
// ignoring nils (spec §4.C: "Effective ceiling = minimum of all provided
// values"). It returns ok=false when none of the sources provided a value,
// meaning there is no ceiling at all.
func EffectiveMaxMultiplier(sources ...*float64) (ceiling float64, ok bool) {
	for _, s := range sources {
		if s == nil {
			continue
		}
		if !ok || *s < ceiling {
			ceiling = *s
			ok = true
		}
	}
	return ceiling, ok
}
