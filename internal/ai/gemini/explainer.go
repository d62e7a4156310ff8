package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/kira-project/kira-recommender/internal/ai"
	"github.com/kira-project/kira-recommender/internal/esco"
	"github.com/kira-project/kira-recommender/internal/logger"
	"github.com/kira-project/kira-recommender/internal/occupation"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// Explainer asks Gemini to justify a recommendation in natural language.
type Explainer struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

//go:embed prompt.md
var promptTemplate string

const defaultMaxLogLength = 200

func NewExplainer(generator contentGenerator, log *zap.Logger, maxLogLength int) *Explainer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Explainer{
		generator: generator,
		logger:    log,
		maxLogLen: maxLogLength,
	}
}

func (e *Explainer) Explain(ctx context.Context, profile occupation.ProfileVector, details *esco.Details) (*ai.Explanation, error) {
	if details == nil {
		return nil, fmt.Errorf("occupation details are required")
	}

	profileJSON, err := json.MarshalIndent(profile.ToMap(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal profile payload: %w", err)
	}

	occupationPayload := map[string]any{
		"uri":         details.URI,
		"label":       details.Label,
		"description": details.Description,
		"skills":      details.Skills,
	}
	occupationJSON, err := json.MarshalIndent(occupationPayload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal occupation payload: %w", err)
	}

	prompt := buildPrompt(string(profileJSON), string(occupationJSON))

	e.logger.Debug("gemini explanation request",
		zap.String("occupation_uri", details.URI),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", logger.TruncateForLog(prompt, e.maxLogLen)),
	)

	raw, err := e.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("gemini explanation response",
		zap.String("occupation_uri", details.URI),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", logger.TruncateForLog(raw, e.maxLogLen)),
	)

	explanation, err := parseResponse(raw)
	if err != nil {
		return nil, err
	}

	explanation.Raw = raw
	return explanation, nil
}

func buildPrompt(profileJSON, occupationJSON string) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "User profile:\n{{PROFILE_JSON}}\n\nOccupation:\n{{OCCUPATION_JSON}}\n\nJSON Response:"
	}
	prompt := strings.ReplaceAll(template, "{{PROFILE_JSON}}", profileJSON)
	prompt = strings.ReplaceAll(prompt, "{{OCCUPATION_JSON}}", occupationJSON)
	return prompt
}

func parseResponse(raw string) (*ai.Explanation, error) {
	cleaned := extractJSON(raw)

	var data struct {
		Summary        string   `json:"summary"`
		MatchingSkills []string `json:"matching_skills"`
	}
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		// The model sometimes answers in prose despite the format
		// instruction; treat the whole text as the summary then.
		return &ai.Explanation{Summary: strings.TrimSpace(raw)}, nil
	}

	summary := strings.TrimSpace(data.Summary)
	if summary == "" {
		return nil, fmt.Errorf("gemini response has no summary")
	}

	return &ai.Explanation{
		Summary:        summary,
		MatchingSkills: data.MatchingSkills,
	}, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}
