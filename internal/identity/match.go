package identity

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultThreshold is the similarity score at which a candidate is accepted.
const DefaultThreshold = 0.6

// Similarity scores two company names in [0, 1]. Names are compared by their
// lower-cased core. Exact match scores 1, containment scores the length ratio
// and anything else falls back to character-set Jaccard similarity.
//
// The Jaccard fallback is a coarse signal and is permissive for short names.
func Similarity(a, b string) float64 {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return 0
	}

	n1 := strings.ToLower(Normalize(a).Core)
	n2 := strings.ToLower(Normalize(b).Core)
	if n1 == "" || n2 == "" {
		return 0
	}
	if n1 == n2 {
		return 1
	}

	l1, l2 := utf8.RuneCountInString(n1), utf8.RuneCountInString(n2)
	if strings.Contains(n2, n1) {
		return float64(l1) / float64(l2)
	}
	if strings.Contains(n1, n2) {
		return float64(l2) / float64(l1)
	}

	return jaccard(charSet(n1), charSet(n2))
}

// IsGoodMatch reports whether candidate should be accepted as the same
// company as search. It accepts on score, on core-name containment in either
// direction, or on equal foreign names.
func IsGoodMatch(search, candidate string, threshold float64) bool {
	if Similarity(search, candidate) >= threshold {
		return true
	}

	s := Normalize(search)
	c := Normalize(candidate)

	sc, cc := strings.ToLower(s.Core), strings.ToLower(c.Core)
	if sc != "" && cc != "" && (strings.Contains(cc, sc) || strings.Contains(sc, cc)) {
		return true
	}

	return s.Foreign != "" && c.Foreign != "" && strings.EqualFold(s.Foreign, c.Foreign)
}

// Matcher carries the configured acceptance threshold.
type Matcher struct {
	Threshold float64
}

// NewMatcher returns a Matcher, using DefaultThreshold when threshold <= 0.
func NewMatcher(threshold float64) Matcher {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return Matcher{Threshold: threshold}
}

// Match is IsGoodMatch at the matcher's threshold.
func (m Matcher) Match(search, candidate string) bool {
	return IsGoodMatch(search, candidate, m.Threshold)
}

func charSet(s string) map[rune]struct{} {
	set := make(map[rune]struct{})
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		set[r] = struct{}{}
	}
	return set
}

func jaccard(a, b map[rune]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for r := range a {
		if _, ok := b[r]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
