package matcher

import (
	"errors"
	"math"
	"testing"

	"github.com/kira-project/kira-recommender/internal/occupation"
)

func TestEuclideanProperties(t *testing.T) {
	a := occupation.ProfileVector{10, 20, 30}
	b := occupation.ProfileVector{40, 50, 60}

	d, err := Euclidean(a, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d < 0 {
		t.Fatalf("distance must be non-negative, got %v", d)
	}

	self, err := Euclidean(a, a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if self != 0 {
		t.Fatalf("distance to self must be 0, got %v", self)
	}
}

func TestEuclideanSchemaMismatch(t *testing.T) {
	_, err := Euclidean(occupation.ProfileVector{1, 2}, occupation.ProfileVector{1, 2, 3})
	if !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestCosineDistanceProperties(t *testing.T) {
	a := occupation.ProfileVector{1, 2, 3}
	b := occupation.ProfileVector{-1, -2, -3}

	self, err := CosineDistance(a, a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(self) > 1e-12 {
		t.Fatalf("cosine distance to self must be 0, got %v", self)
	}

	opposite, err := CosineDistance(a, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opposite < 0 || opposite > 2 {
		t.Fatalf("cosine distance must be in [0,2], got %v", opposite)
	}
	if math.Abs(opposite-2) > 1e-12 {
		t.Fatalf("opposite vectors must have distance 2, got %v", opposite)
	}
}

func TestCosineDistanceDegenerateVector(t *testing.T) {
	zero := occupation.ProfileVector{0, 0, 0}
	_, err := CosineDistance(zero, occupation.ProfileVector{1, 2, 3})
	if !errors.Is(err, ErrDegenerateVector) {
		t.Fatalf("expected ErrDegenerateVector, got %v", err)
	}
}

func TestRankEuclideanScenario(t *testing.T) {
	target := occupation.ProfileVector{0, 0}
	candidates := map[string]occupation.ProfileVector{
		"O1": {0, 0},
		"O2": {10, 10},
		"O3": {1, 1},
	}

	ranked, err := Rank(target, candidates, MethodEuclidean)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"O1", "O3", "O2"}
	got := ranked.URIs()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}

	if ranked[0].Distance != 0 {
		t.Fatalf("expected O1 distance 0, got %v", ranked[0].Distance)
	}
	if math.Abs(ranked[1].Distance-math.Sqrt(2)) > 1e-12 {
		t.Fatalf("expected O3 distance sqrt(2), got %v", ranked[1].Distance)
	}
	if math.Abs(ranked[2].Distance-math.Sqrt(200)) > 1e-12 {
		t.Fatalf("expected O2 distance sqrt(200), got %v", ranked[2].Distance)
	}
}

func TestRankDeterministicTieBreak(t *testing.T) {
	target := occupation.ProfileVector{0, 0}
	candidates := map[string]occupation.ProfileVector{
		"zeta":  {3, 4},
		"alpha": {4, 3},
		"mid":   {0, 5},
	}

	var first []string
	for run := 0; run < 5; run++ {
		ranked, err := Rank(target, candidates, MethodEuclidean)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got := ranked.URIs()
		if first == nil {
			first = got
			continue
		}
		for i := range first {
			if got[i] != first[i] {
				t.Fatalf("ranking is not stable: %v vs %v", first, got)
			}
		}
	}

	// All three are at distance 5; order must be lexicographic.
	want := []string{"alpha", "mid", "zeta"}
	for i := range want {
		if first[i] != want[i] {
			t.Fatalf("expected tie-break order %v, got %v", want, first)
		}
	}
}

func TestRankCosineDropsDegenerateCandidate(t *testing.T) {
	target := occupation.ProfileVector{1, 1}
	candidates := map[string]occupation.ProfileVector{
		"good": {2, 2},
		"zero": {0, 0},
	}

	ranked, err := Rank(target, candidates, MethodCosine)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ranked.Len() != 1 {
		t.Fatalf("expected degenerate candidate dropped, got %d entries", ranked.Len())
	}
	if ranked[0].URI != "good" {
		t.Fatalf("unexpected winner: %s", ranked[0].URI)
	}
}

func TestRankCosineDegenerateTargetFails(t *testing.T) {
	target := occupation.ProfileVector{0, 0}
	candidates := map[string]occupation.ProfileVector{"good": {2, 2}}

	if _, err := Rank(target, candidates, MethodCosine); !errors.Is(err, ErrDegenerateVector) {
		t.Fatalf("expected ErrDegenerateVector for zero target, got %v", err)
	}
}

func TestRankSchemaMismatchIsFatal(t *testing.T) {
	target := occupation.ProfileVector{1, 2, 3}
	candidates := map[string]occupation.ProfileVector{"bad": {1, 2}}

	if _, err := Rank(target, candidates, MethodEuclidean); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestInComfortZone(t *testing.T) {
	user := occupation.ProfileVector{50, 50}
	near := occupation.ProfileVector{55, 50}
	far := occupation.ProfileVector{50, 120}

	in, err := InComfortZone(user, near, 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !in {
		t.Fatalf("expected near job to be inside the comfort zone")
	}

	in, err = InComfortZone(user, far, 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in {
		t.Fatalf("expected far job to be outside the comfort zone")
	}
}

func TestParseMethod(t *testing.T) {
	if m, err := ParseMethod("cosine"); err != nil || m != MethodCosine {
		t.Fatalf("expected cosine, got %v (%v)", m, err)
	}
	if m, err := ParseMethod(""); err != nil || m != MethodEuclidean {
		t.Fatalf("expected euclidean default, got %v (%v)", m, err)
	}
	if _, err := ParseMethod("hamming"); err == nil {
		t.Fatalf("expected error for unsupported method")
	}
}
