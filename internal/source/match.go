package source

import (
	"strings"

	"go.uber.org/zap"

	"github.com/byeongteuk/btmap/internal/identity"
	"github.com/byeongteuk/btmap/internal/model"
)

// MatchKind tells how a search candidate was accepted.
type MatchKind int

const (
	// MatchNone means no candidate was accepted.
	MatchNone MatchKind = iota
	// MatchName means the candidate name is a good match for the registry name.
	MatchName
	// MatchQuery means the candidate name contains the search query.
	MatchQuery
	// MatchSmallResult means the first candidate of a short result list was
	// taken without a name match.
	MatchSmallResult
)

func (k MatchKind) String() string {
	switch k {
	case MatchName:
		return "name"
	case MatchQuery:
		return "query"
	case MatchSmallResult:
		return "small_result"
	default:
		return "none"
	}
}

// DefaultSmallResultMax is the largest result list for which the first
// candidate is accepted without a name match.
const DefaultSmallResultMax = 3

// MatchPolicy decides which search candidate, if any, is the company.
type MatchPolicy struct {
	Source  model.Source
	Matcher identity.Matcher

	// SmallResultFallback accepts the first candidate when the source
	// returned at most SmallResultMax candidates and none matched by name.
	// Every use is logged so the accepted pairs can be audited.
	SmallResultFallback bool
	SmallResultMax      int
}

// DefaultMatchPolicy returns the policy with the default threshold and the
// small-result fallback enabled.
func DefaultMatchPolicy(src model.Source) MatchPolicy {
	return MatchPolicy{
		Source:              src,
		Matcher:             identity.NewMatcher(identity.DefaultThreshold),
		SmallResultFallback: true,
		SmallResultMax:      DefaultSmallResultMax,
	}
}

// Select picks a candidate for the company registered as registryName,
// searched for with query. It returns the candidate's index, or -1 with
// MatchNone.
func (p MatchPolicy) Select(registryName, query string, candidates []string) (int, MatchKind) {
	if len(candidates) == 0 {
		return -1, MatchNone
	}

	matcher := p.Matcher
	if matcher.Threshold <= 0 {
		matcher = identity.NewMatcher(0)
	}
	for i, name := range candidates {
		if matcher.Match(registryName, name) {
			return i, MatchName
		}
	}

	q := strings.ToLower(strings.TrimSpace(query))
	if q != "" {
		for i, name := range candidates {
			if strings.Contains(strings.ToLower(name), q) {
				return i, MatchQuery
			}
		}
	}

	limit := p.SmallResultMax
	if limit <= 0 {
		limit = DefaultSmallResultMax
	}
	if p.SmallResultFallback && len(candidates) <= limit {
		zap.L().Warn("accepting first candidate of small result set without a name match",
			zap.String("source", string(p.Source)),
			zap.String("company", registryName),
			zap.String("query", query),
			zap.String("candidate", candidates[0]),
			zap.Int("candidates", len(candidates)),
		)
		return 0, MatchSmallResult
	}
	return -1, MatchNone
}
