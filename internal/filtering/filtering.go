package filtering

import (
	"errors"
	"fmt"

	"github.com/kira-project/kira-recommender/internal/occupation"
	"go.uber.org/zap"
)

// ErrMalformedHistory signals that the recommendation log's URI and rating
// sequences have different lengths. The transport layer rejects this before
// the engine runs; the check here is a defensive assert.
var ErrMalformedHistory = errors.New("recommendation and rating sequences have different lengths")

// Rating values recorded in the recommendation log.
const (
	RatingDisliked = -1
	RatingSkipped  = 0
	RatingLiked    = 1
)

// Filter represents a single narrowing step applied to a candidate set.
type Filter interface {
	Name() string
	Apply(deps Deps, set *occupation.Set) (Step, error)
}

// Relations exposes the occupation hierarchy to filtering steps.
type Relations interface {
	// Narrower returns every occupation below uri in the hierarchy.
	Narrower(uri string) []string
}

// Deps aggregates dependencies shared across all filtering steps. Relations
// may be nil when no occupation hierarchy is loaded.
type Deps struct {
	Logger    *zap.Logger
	Catalog   *occupation.Catalog
	Relations Relations
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Log is the user's prior recommendation/rating history. URIs and Ratings
// are index-aligned, oldest first.
type Log struct {
	URIs    []string
	Ratings []int
}

func (l Log) Len() int {
	return len(l.URIs)
}

// Validate asserts the log invariant.
func (l Log) Validate() error {
	if len(l.URIs) != len(l.Ratings) {
		return fmt.Errorf("%w: %d uris, %d ratings", ErrMalformedHistory, len(l.URIs), len(l.Ratings))
	}
	return nil
}

// LastRating returns the most recent rating. ok is false when the log is
// empty or the most recent entry was skipped, meaning there is no usable
// recency signal.
func (l Log) LastRating() (int, bool) {
	if len(l.Ratings) == 0 {
		return 0, false
	}
	last := l.Ratings[len(l.Ratings)-1]
	if last == RatingSkipped {
		return 0, false
	}
	return last, true
}

// RelevantIndices returns the log positions whose rating equals rating.
func (l Log) RelevantIndices(rating int) []int {
	var indices []int
	for idx, r := range l.Ratings {
		if r == rating {
			indices = append(indices, idx)
		}
	}
	return indices
}

// RatedJob is one entry of the user's job history (last, second-last,
// previous), most recent first.
type RatedJob struct {
	URI   string
	Liked bool
}

// Run executes the supplied filters sequentially over the working set.
func Run(deps Deps, set *occupation.Set, steps []Filter) (*occupation.Set, error) {
	for _, step := range steps {
		info, err := step.Apply(deps, set)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		if deps.Logger != nil {
			deps.Logger.Info("filter step",
				zap.String("name", step.Name()),
				zap.Int("initial", info.Initial),
				zap.Int("dropped", info.Dropped),
				zap.Int("left", info.Left),
			)
		}
	}
	return set, nil
}
