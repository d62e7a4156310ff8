package filtering

import (
	"fmt"

	"github.com/kira-project/kira-recommender/internal/matcher"
	"github.com/kira-project/kira-recommender/internal/occupation"
	"go.uber.org/zap"
)

type logExclusionFilter struct {
	log Log
}

// NewLogExclusion creates a filter that removes occupations the user has
// already been recommended.
func NewLogExclusion(log Log) Filter {
	return &logExclusionFilter{log: log}
}

func (f *logExclusionFilter) Name() string { return "log_exclusion" }

func (f *logExclusionFilter) Apply(deps Deps, set *occupation.Set) (Step, error) {
	initial := set.Len()
	if f.log.Len() == 0 {
		return Step{Initial: initial, Left: set.Len()}, nil
	}

	excluded := set.Exclude(f.log.URIs)
	if deps.Logger != nil && len(excluded) > 0 {
		deps.Logger.Info("excluding previously recommended occupations",
			zap.Strings("excluded_occupations", excluded),
			zap.Int("occupations_left", set.Len()),
		)
	}

	return Step{Initial: initial, Dropped: len(excluded), Left: set.Len()}, nil
}

type sectorRestrictionFilter struct {
	sectors []string
}

// NewSectorRestriction creates a filter that keeps only occupations in the
// given sectors. An empty sector list keeps the set untouched.
func NewSectorRestriction(sectors []string) Filter {
	return &sectorRestrictionFilter{sectors: sectors}
}

func (f *sectorRestrictionFilter) Name() string { return "sector_restriction" }

func (f *sectorRestrictionFilter) Apply(deps Deps, set *occupation.Set) (Step, error) {
	initial := set.Len()
	if len(f.sectors) == 0 {
		return Step{Initial: initial, Left: set.Len()}, nil
	}

	excluded := set.KeepSectors(f.sectors)
	if deps.Logger != nil && len(excluded) > 0 {
		deps.Logger.Info("restricting occupations by sector",
			zap.Strings("sectors", f.sectors),
			zap.Int("dropped", len(excluded)),
			zap.Int("occupations_left", set.Len()),
		)
	}

	return Step{Initial: initial, Dropped: len(excluded), Left: set.Len()}, nil
}

type emptyRestrictionFilter struct{}

// NewEmptyRestriction creates a filter that drops every occupation. Used when
// the relevant log positions share no sector with the user's preferences:
// the primary pool must come out empty so the fallback pool decides.
func NewEmptyRestriction() Filter {
	return emptyRestrictionFilter{}
}

func (emptyRestrictionFilter) Name() string { return "empty_restriction" }

func (emptyRestrictionFilter) Apply(_ Deps, set *occupation.Set) (Step, error) {
	initial := set.Len()
	set.Items = nil
	return Step{Initial: initial, Dropped: initial, Left: 0}, nil
}

type dislikedSimilarityFilter struct {
	history []RatedJob
	radius  float64
}

// NewDislikedSimilarity creates a filter that removes occupations whose
// profile lies within radius (Euclidean) of any job the user disliked in
// their job history, the disliked jobs and their narrower occupations
// included.
func NewDislikedSimilarity(history []RatedJob, radius float64) Filter {
	return &dislikedSimilarityFilter{history: history, radius: radius}
}

func (f *dislikedSimilarityFilter) Name() string { return "disliked_similarity" }

func (f *dislikedSimilarityFilter) Apply(deps Deps, set *occupation.Set) (Step, error) {
	initial := set.Len()

	var disliked []*occupation.Occupation
	var remove []string
	for _, job := range f.history {
		if job.Liked {
			continue
		}
		// A disliked job taints everything below it in the hierarchy, even
		// when the job itself carries no profile to compare against.
		if deps.Relations != nil {
			remove = append(remove, deps.Relations.Narrower(job.URI)...)
		}
		if deps.Catalog == nil {
			continue
		}
		if occ := deps.Catalog.FindByURI(job.URI); occ != nil {
			disliked = append(disliked, occ)
		}
	}

	if len(disliked) == 0 && len(remove) == 0 {
		return Step{Initial: initial, Left: set.Len()}, nil
	}

	for _, occ := range set.Items {
		for _, bad := range disliked {
			distance, err := matcher.Euclidean(bad.Profile, occ.Profile)
			if err != nil {
				return Step{}, fmt.Errorf("comparing %s with disliked %s: %w", occ.URI, bad.URI, err)
			}
			if distance < f.radius {
				remove = append(remove, occ.URI)
				break
			}
		}
	}

	excluded := set.Exclude(remove)
	if deps.Logger != nil && len(excluded) > 0 {
		deps.Logger.Info("excluding occupations similar to disliked jobs",
			zap.Float64("radius", f.radius),
			zap.Strings("excluded_occupations", excluded),
			zap.Int("occupations_left", set.Len()),
		)
	}

	return Step{Initial: initial, Dropped: len(excluded), Left: set.Len()}, nil
}
