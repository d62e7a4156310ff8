package recommend

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/kira-project/kira-recommender/internal/filtering"
	"github.com/kira-project/kira-recommender/internal/matcher"
	"github.com/kira-project/kira-recommender/internal/occupation"
)

const (
	defaultTopK = 10
	// defaultComfortZoneThreshold is the maximum Euclidean distance between
	// the user profile and their last job's profile that still counts as
	// staying in the comfort zone.
	defaultComfortZoneThreshold = 30
	// defaultDislikeRadius removes occupations this close to a disliked job.
	defaultDislikeRadius = 30
)

// Config tunes the recommendation engine.
type Config struct {
	Method               matcher.Method
	TopK                 int
	ComfortZoneThreshold float64
	DislikeRadius        float64
}

func (c Config) withDefaults() Config {
	if c.TopK <= 0 {
		c.TopK = defaultTopK
	}
	if c.ComfortZoneThreshold <= 0 {
		c.ComfortZoneThreshold = defaultComfortZoneThreshold
	}
	if c.DislikeRadius <= 0 {
		c.DislikeRadius = defaultDislikeRadius
	}
	return c
}

// Request is one recommendation request. All fields are request-scoped; the
// engine keeps no state between calls.
type Request struct {
	// Profile is the user's future-skill vector.
	Profile occupation.ProfileVector
	// Preferences is the user's favored sector codes, may be empty.
	Preferences []string
	// History is the rated job history, most recent first.
	History []filtering.RatedJob
	// Log is the previously issued recommendations with their ratings,
	// oldest first.
	Log filtering.Log
}

// Recommendation is the chosen occupation plus the ranked candidate list it
// was drawn from.
type Recommendation struct {
	URI         string
	Distance    float64
	Profile     occupation.ProfileVector
	ComfortZone bool
	Candidates  matcher.CandidateSet
}

// Relations exposes the occupation hierarchy: direct parents for grouping
// recommendations, the narrower closure for history filtering.
type Relations interface {
	Broader(uri string) []string
	Narrower(uri string) []string
}

// Engine sequences history filtering, distance scoring and selection over a
// shared read-only catalog. Safe for concurrent use: every invocation works
// on its own request data.
type Engine struct {
	catalog   *occupation.Catalog
	relations Relations
	cfg       Config
	logger    *zap.Logger
}

// NewEngine builds an engine. relations may be nil when no occupation
// hierarchy is loaded; hierarchy-based narrowing and grouping are skipped
// then.
func NewEngine(catalog *occupation.Catalog, relations Relations, cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{catalog: catalog, relations: relations, cfg: cfg.withDefaults(), logger: logger}
}

// Recommend runs the full pipeline for one request: filter the catalog by
// history and preferences, rank the surviving pools against the user
// profile, then pick the winner depending on the comfort-zone signal.
func (e *Engine) Recommend(req *Request) (*Recommendation, error) {
	if len(req.Profile) != occupation.Dimensions {
		return nil, fmt.Errorf("%w: user profile has %d dimensions, schema has %d",
			matcher.ErrSchemaMismatch, len(req.Profile), occupation.Dimensions)
	}

	deps := filtering.Deps{Logger: e.logger, Catalog: e.catalog, Relations: e.relations}

	pools, err := filtering.SelectCandidates(deps, req.Log, filtering.Options{
		Preferences:   req.Preferences,
		History:       req.History,
		DislikeRadius: e.cfg.DislikeRadius,
	})
	if err != nil {
		return nil, fmt.Errorf("filtering candidates: %w", err)
	}

	comfortZone, anchor, err := e.comfortZone(req)
	if err != nil {
		return nil, fmt.Errorf("computing comfort zone: %w", err)
	}

	rankedPrimary, err := matcher.Rank(req.Profile, pools.Primary.Vectors(), e.cfg.Method)
	if err != nil {
		return nil, fmt.Errorf("ranking primary pool: %w", err)
	}

	rankedFallback, err := matcher.Rank(req.Profile, pools.Fallback.Vectors(), e.cfg.Method)
	if err != nil {
		return nil, fmt.Errorf("ranking fallback pool: %w", err)
	}

	if comfortZone {
		// One occupation per broader group inside the comfort zone.
		rankedPrimary = e.dedupByBroaderGroup(rankedPrimary)
		rankedFallback = e.dedupByBroaderGroup(rankedFallback)
	}

	var rankedBroader matcher.CandidateSet
	if !comfortZone {
		broader := e.broaderPool(pools, anchor)
		rankedBroader, err = matcher.Rank(req.Profile, broader.Vectors(), e.cfg.Method)
		if err != nil {
			return nil, fmt.Errorf("ranking broader pool: %w", err)
		}
	}

	e.logger.Info("scored candidate pools",
		zap.String("method", e.cfg.Method.String()),
		zap.Bool("comfort_zone", comfortZone),
		zap.Int("primary", rankedPrimary.Len()),
		zap.Int("fallback", rankedFallback.Len()),
		zap.Int("broader", rankedBroader.Len()),
	)

	winner, candidates, err := Choose(rankedPrimary, rankedFallback, rankedBroader, comfortZone, e.cfg.TopK)
	if err != nil {
		return nil, err
	}

	occ := e.catalog.FindByURI(winner.URI)
	if occ == nil {
		return nil, fmt.Errorf("chosen occupation %s vanished from catalog", winner.URI)
	}

	e.logger.Info("recommendation selected",
		zap.String("uri", winner.URI),
		zap.Float64("distance", winner.Distance),
		zap.Int("candidates", candidates.Len()),
	)

	return &Recommendation{
		URI:         winner.URI,
		Distance:    winner.Distance,
		Profile:     occ.Profile,
		ComfortZone: comfortZone,
		Candidates:  candidates,
	}, nil
}

// comfortZone derives the comfort-zone flag from the distance between the
// user profile and their most recent job's profile. Without a resolvable
// last job there is nothing to leave, so the conservative strategy applies.
func (e *Engine) comfortZone(req *Request) (bool, *occupation.Occupation, error) {
	if len(req.History) == 0 {
		return true, nil, nil
	}

	anchor := e.catalog.FindByURI(req.History[0].URI)
	if anchor == nil {
		e.logger.Debug("last job not in catalog, keeping comfort zone",
			zap.String("uri", req.History[0].URI),
		)
		return true, nil, nil
	}

	in, err := matcher.InComfortZone(req.Profile, anchor.Profile, e.cfg.ComfortZoneThreshold)
	if err != nil {
		return false, nil, err
	}
	return in, anchor, nil
}

// dedupByBroaderGroup keeps the first (nearest) candidate per broader
// occupation group. Candidates with no known parent are all kept.
func (e *Engine) dedupByBroaderGroup(ranked matcher.CandidateSet) matcher.CandidateSet {
	if e.relations == nil {
		return ranked
	}

	seen := make(map[string]struct{})
	kept := make(matcher.CandidateSet, 0, len(ranked))
	for _, candidate := range ranked {
		parents := e.relations.Broader(candidate.URI)
		if len(parents) == 0 {
			kept = append(kept, candidate)
			continue
		}
		if _, ok := seen[parents[0]]; ok {
			continue
		}
		seen[parents[0]] = struct{}{}
		kept = append(kept, candidate)
	}
	return kept
}

// broaderPool builds the cross-category pool used by the exploratory
// strategy: fallback occupations outside the anchor sector, or outside every
// primary sector when no anchor job resolved.
func (e *Engine) broaderPool(pools *filtering.Pools, anchor *occupation.Occupation) *occupation.Set {
	exclude := make(map[string]struct{})
	if anchor != nil {
		exclude[anchor.Sector] = struct{}{}
	} else {
		for _, occ := range pools.Primary.Items {
			exclude[occ.Sector] = struct{}{}
		}
	}

	broader := &occupation.Set{}
	for _, occ := range pools.Fallback.Items {
		if _, ok := exclude[occ.Sector]; ok {
			continue
		}
		broader.Items = append(broader.Items, occ)
	}
	return broader
}
