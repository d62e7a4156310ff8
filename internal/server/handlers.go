package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/kira-project/kira-recommender/internal/filtering"
	"github.com/kira-project/kira-recommender/internal/occupation"
	"github.com/kira-project/kira-recommender/internal/recommend"
)

// ratedJobPayload is one job history entry as sent by the frontend.
type ratedJobPayload struct {
	URI   string `json:"uri"`
	Liked bool   `json:"liked"`
}

type recommendationRequest struct {
	Profile            map[string]float64 `json:"profile"`
	PreferencedSectors []string           `json:"preferenced_sectors"`
	LastJob            *ratedJobPayload   `json:"last_job"`
	SecondLastJob      *ratedJobPayload   `json:"second_last_job"`
	PreviousJob        *ratedJobPayload   `json:"previous_job"`
	JobRecommendations []string           `json:"job_recommendations"`
	JobRatings         []int              `json:"job_ratings"`
}

type skillPayload struct {
	Label string `json:"label"`
}

type occupationPayload struct {
	URI         string             `json:"uri"`
	Label       string             `json:"label"`
	Description string             `json:"description"`
	Skills      []skillPayload     `json:"skills"`
	Profile     map[string]float64 `json:"profile"`
}

type candidatePayload struct {
	URI      string  `json:"uri"`
	Distance float64 `json:"distance"`
}

type explanationPayload struct {
	Summary        string   `json:"summary"`
	MatchingSkills []string `json:"matching_skills,omitempty"`
}

type recommendationResponse struct {
	occupationPayload
	Distance    float64             `json:"distance"`
	ComfortZone bool                `json:"comfort_zone"`
	Candidates  []candidatePayload  `json:"candidates"`
	Explanation *explanationPayload `json:"explanation,omitempty"`
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	payload, err := decodeRecommendationRequest(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	req, err := payload.toEngineRequest()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	rec, err := s.engine.Recommend(req)
	if err != nil {
		if errors.Is(err, recommend.ErrNoCandidates) {
			s.writeJSON(w, http.StatusOK, map[string]any{
				"recommendation": nil,
				"reason":         "no recommendation available",
			})
			return
		}
		s.logger.Error("recommendation failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, errors.New("recommendation failed"))
		return
	}

	details, err := s.resolver.Resolve(rec.URI)
	if err != nil {
		s.logger.Error("resolving recommended occupation", zap.String("uri", rec.URI), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, errors.New("occupation lookup failed"))
		return
	}

	response := &recommendationResponse{
		occupationPayload: occupationPayload{
			URI:         rec.URI,
			Label:       details.Label,
			Description: details.Description,
			Skills:      skillPayloads(details.Skills),
			Profile:     rec.Profile.ToMap(),
		},
		Distance:    rec.Distance,
		ComfortZone: rec.ComfortZone,
		Candidates:  candidatePayloads(rec),
	}

	if s.explainer != nil {
		explanation, err := s.explainer.Explain(r.Context(), req.Profile, details)
		if err != nil {
			// The recommendation stands on its own; a failed explanation is
			// logged and omitted.
			s.logger.Warn("ai explanation failed", zap.String("uri", rec.URI), zap.Error(err))
		} else {
			response.Explanation = &explanationPayload{
				Summary:        explanation.Summary,
				MatchingSkills: explanation.MatchingSkills,
			}
		}
	}

	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleOccupations(w http.ResponseWriter, r *http.Request) {
	uriList := strings.TrimSpace(r.URL.Query().Get("uri_list"))
	if uriList == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("no uris provided"))
		return
	}

	var result []*occupationPayload
	for _, uri := range strings.Split(uriList, ",") {
		uri = strings.TrimSpace(uri)
		if uri == "" {
			continue
		}

		details, err := s.resolver.Resolve(uri)
		if err != nil {
			s.writeError(w, http.StatusNotFound, fmt.Errorf("occupation %s not found", uri))
			return
		}

		payload := &occupationPayload{
			URI:         uri,
			Label:       details.Label,
			Description: details.Description,
			Skills:      skillPayloads(details.Skills),
		}
		if occ := s.catalog.FindByURI(uri); occ != nil {
			payload.Profile = occ.Profile.ToMap()
		}
		result = append(result, payload)
	}

	s.writeJSON(w, http.StatusOK, result)
}

// decodeRecommendationRequest parses the JSON body into the request payload
// via an intermediate map, keeping the decode tolerant of numeric types the
// frontend sends.
func decodeRecommendationRequest(r *http.Request) (*recommendationRequest, error) {
	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("invalid json body: %w", err)
	}

	var payload recommendationRequest
	cfg := &mapstructure.DecoderConfig{
		Result:           &payload,
		TagName:          "json",
		WeaklyTypedInput: true,
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("invalid request payload: %w", err)
	}

	return &payload, nil
}

// toEngineRequest validates the payload and converts it into an engine
// request. The log-length invariant is enforced here, before the engine
// runs.
func (p *recommendationRequest) toEngineRequest() (*recommend.Request, error) {
	if len(p.Profile) == 0 {
		return nil, errors.New("profile is required")
	}

	vector, err := occupation.VectorFromMap(p.Profile)
	if err != nil {
		return nil, err
	}

	if len(p.JobRecommendations) != len(p.JobRatings) {
		return nil, fmt.Errorf("%w: %d recommendations, %d ratings",
			filtering.ErrMalformedHistory, len(p.JobRecommendations), len(p.JobRatings))
	}

	for _, rating := range p.JobRatings {
		if rating < filtering.RatingDisliked || rating > filtering.RatingLiked {
			return nil, fmt.Errorf("invalid rating %d, must be -1, 0 or 1", rating)
		}
	}

	var history []filtering.RatedJob
	for _, job := range []*ratedJobPayload{p.LastJob, p.SecondLastJob, p.PreviousJob} {
		if job == nil || strings.TrimSpace(job.URI) == "" {
			continue
		}
		history = append(history, filtering.RatedJob{URI: job.URI, Liked: job.Liked})
	}

	return &recommend.Request{
		Profile:     vector,
		Preferences: p.PreferencedSectors,
		History:     history,
		Log: filtering.Log{
			URIs:    p.JobRecommendations,
			Ratings: p.JobRatings,
		},
	}, nil
}

func skillPayloads(skills []string) []skillPayload {
	result := make([]skillPayload, 0, len(skills))
	for _, skill := range skills {
		result = append(result, skillPayload{Label: skill})
	}
	return result
}

func candidatePayloads(rec *recommend.Recommendation) []candidatePayload {
	result := make([]candidatePayload, 0, rec.Candidates.Len())
	for _, c := range rec.Candidates {
		result = append(result, candidatePayload{URI: c.URI, Distance: c.Distance})
	}
	return result
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encoding response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
