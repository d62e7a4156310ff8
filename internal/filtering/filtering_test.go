package filtering

import (
	"errors"
	"sort"
	"testing"

	"github.com/kira-project/kira-recommender/internal/occupation"
	"go.uber.org/zap"
)

func newTestCatalog(t *testing.T) *occupation.Catalog {
	t.Helper()

	vector := func(base float64) occupation.ProfileVector {
		v := make(occupation.ProfileVector, occupation.Dimensions)
		for i := range v {
			v[i] = base
		}
		return v
	}

	catalog, err := occupation.NewCatalog([]*occupation.Occupation{
		{URI: "occ:analyst", Sector: "4", Profile: vector(80)},
		{URI: "occ:dev", Sector: "4", Profile: vector(75)},
		{URI: "occ:nurse", Sector: "8", Profile: vector(30)},
		{URI: "occ:teacher", Sector: "8", Profile: vector(35)},
		{URI: "occ:farmer", Sector: "1", Profile: vector(10)},
	})
	if err != nil {
		t.Fatalf("building test catalog: %v", err)
	}
	return catalog
}

func sortedURIs(set *occupation.Set) []string {
	uris := set.URIs()
	sort.Strings(uris)
	return uris
}

func equalURIs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSelectCandidatesEmptyLogEmptyPreferences(t *testing.T) {
	catalog := newTestCatalog(t)
	deps := Deps{Logger: zap.NewNop(), Catalog: catalog}

	pools, err := SelectCandidates(deps, Log{}, Options{DislikeRadius: 30})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if pools.Primary.Len() != catalog.Len() {
		t.Fatalf("expected primary to be the full catalog, got %d of %d", pools.Primary.Len(), catalog.Len())
	}
	if !equalURIs(sortedURIs(pools.Primary), sortedURIs(pools.Fallback)) {
		t.Fatalf("expected primary and fallback to match: %v vs %v", sortedURIs(pools.Primary), sortedURIs(pools.Fallback))
	}
}

func TestSelectCandidatesUnratedRestrictsPrimaryByPreference(t *testing.T) {
	catalog := newTestCatalog(t)
	deps := Deps{Logger: zap.NewNop(), Catalog: catalog}

	// Most recent recommendation was skipped: no recency signal.
	log := Log{URIs: []string{"occ:dev"}, Ratings: []int{RatingSkipped}}

	pools, err := SelectCandidates(deps, log, Options{Preferences: []string{"8"}, DislikeRadius: 30})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"occ:nurse", "occ:teacher"}
	if !equalURIs(sortedURIs(pools.Primary), want) {
		t.Fatalf("expected primary %v, got %v", want, sortedURIs(pools.Primary))
	}

	// Fallback drops the logged occupation but keeps all sectors.
	if pools.Fallback.Len() != catalog.Len()-1 {
		t.Fatalf("expected fallback of %d, got %d", catalog.Len()-1, pools.Fallback.Len())
	}
	if pools.Fallback.FindByURI("occ:dev") != nil {
		t.Fatalf("expected logged occupation excluded from fallback")
	}
}

func TestSelectCandidatesNoRelevantNeverRestrictsByPreference(t *testing.T) {
	catalog := newTestCatalog(t)
	deps := Deps{Logger: zap.NewNop(), Catalog: catalog}

	// The liked entry does not resolve in the catalog, so no relevant
	// position survives. Preferences must not narrow either pool.
	log := Log{URIs: []string{"occ:gone"}, Ratings: []int{RatingLiked}}

	pools, err := SelectCandidates(deps, log, Options{Preferences: []string{"8"}, DislikeRadius: 30})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if pools.Primary.Len() != catalog.Len() {
		t.Fatalf("expected unrestricted primary, got %d of %d", pools.Primary.Len(), catalog.Len())
	}
	if pools.Primary.FindByURI("occ:dev") == nil {
		t.Fatalf("expected non-preferred sector to survive the no-relevant branch")
	}
}

func TestSelectCandidatesRelevantBiasesTowardSharedSectors(t *testing.T) {
	catalog := newTestCatalog(t)
	deps := Deps{Logger: zap.NewNop(), Catalog: catalog}

	// Both liked entries resolve; only occ:dev's sector is preferred.
	log := Log{
		URIs:    []string{"occ:nurse", "occ:dev"},
		Ratings: []int{RatingLiked, RatingLiked},
	}

	pools, err := SelectCandidates(deps, log, Options{Preferences: []string{"4"}, DislikeRadius: 30})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"occ:analyst"}
	if !equalURIs(sortedURIs(pools.Primary), want) {
		t.Fatalf("expected primary %v, got %v", want, sortedURIs(pools.Primary))
	}

	if pools.Fallback.Len() != catalog.Len()-2 {
		t.Fatalf("expected fallback of %d, got %d", catalog.Len()-2, pools.Fallback.Len())
	}
	if pools.Fallback.FindByURI("occ:farmer") == nil {
		t.Fatalf("expected fallback to stay unrestricted by sector")
	}
}

func TestSelectCandidatesRelevantOutsidePreferencesYieldsEmptyPrimary(t *testing.T) {
	catalog := newTestCatalog(t)
	deps := Deps{Logger: zap.NewNop(), Catalog: catalog}

	// The liked occupation's sector is not among the preferences: primary
	// must come out empty and the result has to come from the fallback.
	log := Log{URIs: []string{"occ:nurse"}, Ratings: []int{RatingLiked}}

	pools, err := SelectCandidates(deps, log, Options{Preferences: []string{"4"}, DislikeRadius: 30})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if pools.Primary.Len() != 0 {
		t.Fatalf("expected empty primary, got %v", sortedURIs(pools.Primary))
	}
	if pools.Fallback.Len() == 0 {
		t.Fatalf("expected non-empty fallback")
	}
}

func TestSelectCandidatesMalformedHistory(t *testing.T) {
	catalog := newTestCatalog(t)
	deps := Deps{Logger: zap.NewNop(), Catalog: catalog}

	log := Log{URIs: []string{"occ:dev"}, Ratings: []int{1, -1}}
	if _, err := SelectCandidates(deps, log, Options{}); !errors.Is(err, ErrMalformedHistory) {
		t.Fatalf("expected ErrMalformedHistory, got %v", err)
	}
}

func TestDislikedSimilarityRemovesNearbyOccupations(t *testing.T) {
	catalog := newTestCatalog(t)
	deps := Deps{Logger: zap.NewNop(), Catalog: catalog}

	// occ:dev (all 75) is disliked; occ:analyst (all 80) sits sqrt(250)
	// away, inside a radius of 30. Everything else is far.
	history := []RatedJob{{URI: "occ:dev", Liked: false}}

	set := catalog.All()
	step, err := NewDislikedSimilarity(history, 30).Apply(deps, set)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if step.Dropped != 2 {
		t.Fatalf("expected 2 occupations dropped, got %d", step.Dropped)
	}
	if set.FindByURI("occ:dev") != nil || set.FindByURI("occ:analyst") != nil {
		t.Fatalf("expected disliked job and its neighborhood removed, left %v", sortedURIs(set))
	}
	if set.FindByURI("occ:nurse") == nil {
		t.Fatalf("expected distant occupations to survive")
	}
}

type stubRelations struct {
	narrower map[string][]string
}

func (s *stubRelations) Narrower(uri string) []string {
	return s.narrower[uri]
}

func TestDislikedSimilarityRemovesNarrowerOccupations(t *testing.T) {
	catalog := newTestCatalog(t)
	relations := &stubRelations{narrower: map[string][]string{
		// occ:farmer (all 10) sits far outside the radius of any disliked
		// job; only the hierarchy can remove it.
		"occ:nurse": {"occ:farmer"},
	}}
	deps := Deps{Logger: zap.NewNop(), Catalog: catalog, Relations: relations}

	history := []RatedJob{{URI: "occ:nurse", Liked: false}}

	set := catalog.All()
	if _, err := NewDislikedSimilarity(history, 30).Apply(deps, set); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if set.FindByURI("occ:farmer") != nil {
		t.Fatalf("expected narrower occupation of disliked job removed, left %v", sortedURIs(set))
	}
	if set.FindByURI("occ:analyst") == nil {
		t.Fatalf("expected unrelated occupations to survive")
	}
}

func TestDislikedNarrowerRemovalWithoutCatalogProfile(t *testing.T) {
	catalog := newTestCatalog(t)
	relations := &stubRelations{narrower: map[string][]string{
		"occ:retired": {"occ:teacher", "occ:nurse"},
	}}
	deps := Deps{Logger: zap.NewNop(), Catalog: catalog, Relations: relations}

	// The disliked job itself is not in the catalog, so there is no profile
	// to compare against. Its narrower occupations still go.
	history := []RatedJob{{URI: "occ:retired", Liked: false}}

	set := catalog.All()
	step, err := NewDislikedSimilarity(history, 30).Apply(deps, set)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if step.Dropped != 2 {
		t.Fatalf("expected 2 occupations dropped, got %d", step.Dropped)
	}
	if set.FindByURI("occ:teacher") != nil || set.FindByURI("occ:nurse") != nil {
		t.Fatalf("expected narrower occupations removed, left %v", sortedURIs(set))
	}
}

func TestLogLastRating(t *testing.T) {
	if _, ok := (Log{}).LastRating(); ok {
		t.Fatalf("empty log must have no last rating")
	}

	log := Log{URIs: []string{"a", "b"}, Ratings: []int{RatingLiked, RatingSkipped}}
	if _, ok := log.LastRating(); ok {
		t.Fatalf("skipped last entry must count as unrated")
	}

	log = Log{URIs: []string{"a", "b"}, Ratings: []int{RatingSkipped, RatingDisliked}}
	rating, ok := log.LastRating()
	if !ok || rating != RatingDisliked {
		t.Fatalf("expected disliked last rating, got %d (%v)", rating, ok)
	}
}
