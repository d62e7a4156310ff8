package gemini

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kira-project/kira-recommender/internal/esco"
	"github.com/kira-project/kira-recommender/internal/occupation"
)

type stubGenerator struct {
	response   string
	err        error
	lastPrompt string
}

func (s *stubGenerator) GenerateContent(_ context.Context, prompt string) (string, error) {
	s.lastPrompt = prompt
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func testDetails() *esco.Details {
	return &esco.Details{
		URI:         "occ:baker",
		Label:       "Baker",
		Description: "Bakes bread",
		Skills:      []string{"prepare dough"},
	}
}

func testProfile() occupation.ProfileVector {
	v := make(occupation.ProfileVector, occupation.Dimensions)
	for i := range v {
		v[i] = 60
	}
	return v
}

func TestExplainerExplain(t *testing.T) {
	stub := &stubGenerator{response: `{"summary": "Your organization scores fit baking.", "matching_skills": ["organization"]}`}
	explainer := NewExplainer(stub, zap.NewNop(), 0)

	explanation, err := explainer.Explain(context.Background(), testProfile(), testDetails())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if explanation.Summary != "Your organization scores fit baking." {
		t.Fatalf("unexpected summary: %q", explanation.Summary)
	}
	if len(explanation.MatchingSkills) != 1 || explanation.MatchingSkills[0] != "organization" {
		t.Fatalf("unexpected matching skills: %v", explanation.MatchingSkills)
	}
	if explanation.Raw == "" {
		t.Fatalf("expected raw response to be kept")
	}

	if !strings.Contains(stub.lastPrompt, "occ:baker") {
		t.Fatalf("expected occupation uri in prompt")
	}
	if !strings.Contains(stub.lastPrompt, "FS1") {
		t.Fatalf("expected profile keys in prompt")
	}
}

func TestExplainerHandlesFencedJSON(t *testing.T) {
	stub := &stubGenerator{response: "```json\n{\"summary\": \"Fits well.\"}\n```"}
	explainer := NewExplainer(stub, zap.NewNop(), 0)

	explanation, err := explainer.Explain(context.Background(), testProfile(), testDetails())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if explanation.Summary != "Fits well." {
		t.Fatalf("unexpected summary: %q", explanation.Summary)
	}
}

func TestExplainerFallsBackToProse(t *testing.T) {
	stub := &stubGenerator{response: "This occupation matches your strong problem solving."}
	explainer := NewExplainer(stub, zap.NewNop(), 0)

	explanation, err := explainer.Explain(context.Background(), testProfile(), testDetails())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if explanation.Summary != "This occupation matches your strong problem solving." {
		t.Fatalf("unexpected summary: %q", explanation.Summary)
	}
}

func TestExplainerPropagatesGeneratorError(t *testing.T) {
	stub := &stubGenerator{err: errors.New("quota exceeded")}
	explainer := NewExplainer(stub, zap.NewNop(), 0)

	if _, err := explainer.Explain(context.Background(), testProfile(), testDetails()); err == nil {
		t.Fatalf("expected generator error to propagate")
	}
}
