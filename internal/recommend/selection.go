package recommend

import (
	"errors"

	"github.com/kira-project/kira-recommender/internal/matcher"
)

// ErrNoCandidates signals that filtering left nothing to recommend. Surfaced
// to the caller as a "no recommendation available" outcome, not a crash.
var ErrNoCandidates = errors.New("no candidates available for recommendation")

// Choose picks the final recommendation from the ranked pools.
//
// Inside the comfort zone the top of the primary pool wins, falling back to
// the fallback pool when the primary is empty: stay within a familiar,
// preferred occupational category. Outside the comfort zone the primary and
// broader rankings are concatenated (primary first, duplicates kept) and
// truncated to k, exploring cross-category options.
func Choose(primary, fallback, broader matcher.CandidateSet, comfortZone bool, k int) (matcher.Candidate, matcher.CandidateSet, error) {
	if comfortZone {
		if winner, ok := primary.Head(); ok {
			return winner, primary.Truncate(k), nil
		}
		if winner, ok := fallback.Head(); ok {
			return winner, fallback.Truncate(k), nil
		}
		return matcher.Candidate{}, nil, ErrNoCandidates
	}

	merged := make(matcher.CandidateSet, 0, primary.Len()+broader.Len())
	merged = append(merged, primary...)
	merged = append(merged, broader...)
	merged = merged.Truncate(k)

	if winner, ok := merged.Head(); ok {
		return winner, merged, nil
	}
	if winner, ok := fallback.Head(); ok {
		return winner, fallback.Truncate(k), nil
	}
	return matcher.Candidate{}, nil, ErrNoCandidates
}
