package shared

import (
	"regexp"
	"strings"
)

// MatchGlob reports whether model matches pattern, where `*` stands for any
// run of characters (including empty) and `?` stands for exactly one
// character. There is no other metacharacter; everything else in pattern is
// matched literally (spec §4.J).
func MatchGlob(pattern, model string) bool {
	re, err := compileGlob(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(model)
}

// AnyGlobMatches reports whether model matches any of patterns. An empty
// patterns slice matches everything, the way an absent `models` filter on a
// transform rule applies to every model (spec §4.J: "models?: glob[]").
func AnyGlobMatches(patterns []string, model string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if MatchGlob(p, model) {
			return true
		}
	}
	return false
}

func compileGlob(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}
