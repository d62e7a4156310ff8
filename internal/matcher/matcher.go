package matcher

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/kira-project/kira-recommender/internal/occupation"
)

var (
	// ErrSchemaMismatch signals that two vectors were built on different
	// dimension schemas and must not be compared.
	ErrSchemaMismatch = errors.New("profile vectors have mismatched dimensions")
	// ErrDegenerateVector signals that cosine distance is undefined because a
	// vector has zero magnitude.
	ErrDegenerateVector = errors.New("cosine distance is undefined for a zero-magnitude vector")
)

// Method selects the distance metric used for ranking.
type Method int

const (
	MethodEuclidean Method = iota
	MethodCosine
)

func (m Method) String() string {
	switch m {
	case MethodEuclidean:
		return "euclidean"
	case MethodCosine:
		return "cosine"
	default:
		return fmt.Sprintf("method(%d)", int(m))
	}
}

// ParseMethod converts a configuration value into a Method.
func ParseMethod(s string) (Method, error) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "", "euclidean":
		return MethodEuclidean, nil
	case "cosine":
		return MethodCosine, nil
	default:
		return 0, fmt.Errorf("unsupported distance method: %s", s)
	}
}

// Candidate is one scored occupation. Lower distance means more similar.
type Candidate struct {
	URI      string
	Distance float64
}

// CandidateSet is a ranking ordered ascending by distance, ties broken by
// URI. URIs are unique within a set.
type CandidateSet []Candidate

func (s CandidateSet) Len() int {
	return len(s)
}

// Head returns the best candidate, false when the set is empty.
func (s CandidateSet) Head() (Candidate, bool) {
	if len(s) == 0 {
		return Candidate{}, false
	}
	return s[0], true
}

// URIs returns the ranked identifiers.
func (s CandidateSet) URIs() []string {
	uris := make([]string, 0, len(s))
	for _, c := range s {
		uris = append(uris, c.URI)
	}
	return uris
}

// Truncate returns at most the k best candidates.
func (s CandidateSet) Truncate(k int) CandidateSet {
	if k < 0 || k >= len(s) {
		return s
	}
	return s[:k]
}

// Euclidean returns the Euclidean distance between two vectors of equal
// dimension.
func Euclidean(a, b occupation.ProfileVector) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrSchemaMismatch, len(a), len(b))
	}

	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// CosineDistance returns 1 minus the cosine similarity of two vectors, in
// [0, 2]. Fails with ErrDegenerateVector when either vector has zero
// magnitude.
func CosineDistance(a, b occupation.ProfileVector) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrSchemaMismatch, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0, ErrDegenerateVector
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB)), nil
}

// Rank scores every candidate vector against the target and returns the
// ascending ranking. A candidate with zero magnitude under the cosine metric
// is dropped from the ranking; a degenerate target fails the whole call. Any
// dimensionality mismatch is fatal. Inputs are never mutated.
func Rank(target occupation.ProfileVector, candidates map[string]occupation.ProfileVector, method Method) (CandidateSet, error) {
	ranked := make(CandidateSet, 0, len(candidates))

	for uri, profile := range candidates {
		var distance float64
		var err error

		switch method {
		case MethodEuclidean:
			distance, err = Euclidean(target, profile)
		case MethodCosine:
			distance, err = CosineDistance(target, profile)
		default:
			return nil, fmt.Errorf("unsupported distance method: %s", method)
		}

		if err != nil {
			if errors.Is(err, ErrDegenerateVector) {
				if isZero(target) {
					return nil, fmt.Errorf("target profile: %w", err)
				}
				// Candidate is unrankable under cosine, not a request failure.
				continue
			}
			return nil, fmt.Errorf("candidate %s: %w", uri, err)
		}

		ranked = append(ranked, Candidate{URI: uri, Distance: distance})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Distance != ranked[j].Distance {
			return ranked[i].Distance < ranked[j].Distance
		}
		return ranked[i].URI < ranked[j].URI
	})

	return ranked, nil
}

// InComfortZone reports whether the user profile sits within threshold of
// their most recent job's profile under the Euclidean metric.
func InComfortZone(user, lastJob occupation.ProfileVector, threshold float64) (bool, error) {
	distance, err := Euclidean(user, lastJob)
	if err != nil {
		return false, err
	}
	return distance < threshold, nil
}

func isZero(v occupation.ProfileVector) bool {
	for _, score := range v {
		if score != 0 {
			return false
		}
	}
	return true
}
