package ai

import (
	"context"

	"github.com/kira-project/kira-recommender/internal/esco"
	"github.com/kira-project/kira-recommender/internal/occupation"
)

// Explanation is a natural-language justification for a recommendation.
type Explanation struct {
	Summary        string
	MatchingSkills []string
	Raw            string
}

// Explainer produces an explanation of why the recommended occupation fits
// the user's future-skill profile.
type Explainer interface {
	Explain(ctx context.Context, profile occupation.ProfileVector, details *esco.Details) (*Explanation, error)
}
