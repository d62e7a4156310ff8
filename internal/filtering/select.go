package filtering

import (
	"go.uber.org/zap"

	"github.com/kira-project/kira-recommender/internal/occupation"
)

// branch is the decision taken over the recommendation log. Exactly one
// branch applies per request.
type branch int

const (
	// branchUnrated: log empty or most recent recommendation not rated.
	branchUnrated branch = iota
	// branchNoRelevant: the most recent rating has no other log position
	// with the same rating.
	branchNoRelevant
	// branchRelevant: log positions with the same rating as the most recent
	// one exist and bias the candidate pool.
	branchRelevant
)

func (b branch) String() string {
	switch b {
	case branchUnrated:
		return "unrated"
	case branchNoRelevant:
		return "no_relevant"
	default:
		return "relevant"
	}
}

// Pools holds the two prioritized candidate subsets produced by the history
// filter. Primary may be empty; Fallback guards against that.
type Pools struct {
	Primary  *occupation.Set
	Fallback *occupation.Set
}

// Options tunes candidate selection for one request.
type Options struct {
	// Preferences is the user's favored sector codes, empty meaning no
	// constraint.
	Preferences []string
	// History is the user's rated job history, most recent first.
	History []RatedJob
	// DislikeRadius is the Euclidean distance under which an occupation
	// counts as similar to a disliked job and is removed.
	DislikeRadius float64
}

// SelectCandidates narrows the catalog into a primary and a fallback pool
// using the recommendation log and the sector preferences.
//
// Branches over the most recent rating:
//   - unrated: primary = catalog minus log, restricted to preferred sectors;
//     fallback = same exclusion without the restriction.
//   - rating present, no relevant positions: primary = fallback = catalog
//     minus log; preferences never narrow this branch.
//   - relevant positions exist: primary keeps only sectors that appear at
//     those positions and are also preferred; fallback stays unrestricted.
//
// Occupations similar to explicitly disliked jobs are removed from both
// pools first.
func SelectCandidates(deps Deps, log Log, opts Options) (*Pools, error) {
	if err := log.Validate(); err != nil {
		return nil, err
	}

	base := []Filter{
		NewLogExclusion(log),
		NewDislikedSimilarity(opts.History, opts.DislikeRadius),
	}

	chosen, restriction := decideBranch(deps, log, opts.Preferences)

	if deps.Logger != nil {
		deps.Logger.Info("history filter branch",
			zap.String("branch", chosen.String()),
			zap.Strings("preferences", opts.Preferences),
			zap.Int("log_entries", log.Len()),
		)
	}

	primary, err := Run(deps, deps.Catalog.All(), appendRestriction(base, restriction))
	if err != nil {
		return nil, err
	}

	fallback, err := Run(deps, deps.Catalog.All(), base)
	if err != nil {
		return nil, err
	}

	return &Pools{Primary: primary, Fallback: fallback}, nil
}

func appendRestriction(base []Filter, restriction Filter) []Filter {
	steps := make([]Filter, len(base), len(base)+1)
	copy(steps, base)
	if restriction != nil {
		steps = append(steps, restriction)
	}
	return steps
}

// decideBranch returns the branch taken and the restriction step applied to
// the primary pool only. Relevant log positions must resolve to a catalog
// occupation: partitioning by sector needs the sector, so unresolvable
// entries cannot participate.
func decideBranch(deps Deps, log Log, preferences []string) (branch, Filter) {
	last, ok := log.LastRating()
	if !ok {
		return branchUnrated, NewSectorRestriction(preferences)
	}

	relevant := resolveIndices(deps.Catalog, log, log.RelevantIndices(last))
	if len(relevant) == 0 {
		return branchNoRelevant, nil
	}

	shared := sharedSectors(relevant, preferences)
	if len(shared) == 0 {
		// A consistent reaction exists but none of it overlaps the stated
		// preferences. The primary pool must come out empty.
		return branchRelevant, NewEmptyRestriction()
	}
	return branchRelevant, NewSectorRestriction(shared)
}

func resolveIndices(catalog *occupation.Catalog, log Log, indices []int) []*occupation.Occupation {
	var resolved []*occupation.Occupation
	for _, idx := range indices {
		if occ := catalog.FindByURI(log.URIs[idx]); occ != nil {
			resolved = append(resolved, occ)
		}
	}
	return resolved
}

// sharedSectors collects the sectors of the relevant occupations that are
// also among the user's preferences.
func sharedSectors(relevant []*occupation.Occupation, preferences []string) []string {
	preferred := make(map[string]struct{}, len(preferences))
	for _, sector := range preferences {
		preferred[sector] = struct{}{}
	}

	seen := make(map[string]struct{})
	var shared []string
	for _, occ := range relevant {
		if _, ok := preferred[occ.Sector]; !ok {
			continue
		}
		if _, ok := seen[occ.Sector]; ok {
			continue
		}
		seen[occ.Sector] = struct{}{}
		shared = append(shared, occ.Sector)
	}
	return shared
}
