package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"talentmatch/api/internal/config"
)

// NLPService is the typed client for the external parsing and matching
// collaborator. The core never interprets document content itself; it ships
// bytes (or raw text) out and persists what comes back.
type NLPService interface {
	ParseResume(ctx context.Context, req ParseResumeRequest) (*ResumeParse, error)
	ParseJob(ctx context.Context, req ParseJobRequest) (*JobParse, error)
	ComputeMatch(ctx context.Context, req MatchRequest) (*MatchResponse, error)
}

type ParseResumeRequest struct {
	Filename   string `json:"filename"`
	MimeType   string `json:"mime_type"`
	ContentB64 string `json:"content_b64"`
}

type ParsedSkill struct {
	Skill           string   `json:"skill"`
	ExperienceYears *float64 `json:"experience_years,omitempty"`
	Proficiency     *string  `json:"proficiency,omitempty"`
}

type ResumeParse struct {
	Skills     []ParsedSkill   `json:"skills"`
	Sections   json.RawMessage `json:"sections"`
	Profile    json.RawMessage `json:"profile"`
	Statistics json.RawMessage `json:"statistics"`
}

// ParseJobRequest carries either file content or raw text, matching the two
// job ingestion sources.
type ParseJobRequest struct {
	Filename   *string `json:"filename,omitempty"`
	MimeType   string  `json:"mime_type,omitempty"`
	ContentB64 *string `json:"content_b64,omitempty"`
	Text       *string `json:"text,omitempty"`
}

type ParsedRequirement struct {
	Skill      string  `json:"skill"`
	Importance float64 `json:"importance"`
	Inferred   bool    `json:"inferred"`
}

type ParsedSoftSkill struct {
	Skill string  `json:"skill"`
	Value float64 `json:"value"`
}

type JobParse struct {
	Requirements []ParsedRequirement `json:"requirements"`
	Highlights   json.RawMessage     `json:"highlights"`
	Summary      json.RawMessage     `json:"summary"`
	Onet         json.RawMessage     `json:"onet,omitempty"`
	SoftSkills   []ParsedSoftSkill   `json:"soft_skills,omitempty"`
}

type CandidateSkillPayload struct {
	Skill           string   `json:"skill"`
	ExperienceYears *float64 `json:"experience_years,omitempty"`
	Proficiency     *string  `json:"proficiency,omitempty"`
}

type RequirementPayload struct {
	Skill      string  `json:"skill"`
	Importance float64 `json:"importance"`
	Inferred   bool    `json:"inferred"`
}

type MatchRequest struct {
	CandidateSkills []CandidateSkillPayload `json:"candidate_skills"`
	Requirements    []RequirementPayload    `json:"requirements"`
}

type MatchDetail struct {
	Requirement  string  `json:"requirement"`
	Similarity   float64 `json:"similarity"`
	MatchedSkill string  `json:"matched_skill,omitempty"`
}

type MatchNLPSummary struct {
	Details           []MatchDetail `json:"details"`
	Strengths         []string      `json:"strengths"`
	Gaps              []string      `json:"gaps"`
	OverallMatchScore *float64      `json:"overall_match_score,omitempty"`
}

type MatchResponse struct {
	Score   *float64        `json:"score,omitempty"`
	Summary MatchNLPSummary `json:"summary"`
}

type nlpService struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

func NewNLPService(cfg config.NLPConfig, logger *zap.Logger) NLPService {
	return &nlpService{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}
}

// ParseResume implements NLPService.
func (n *nlpService) ParseResume(ctx context.Context, req ParseResumeRequest) (*ResumeParse, error) {
	var parsed ResumeParse
	if err := n.post(ctx, "/parse/resume", req, &parsed); err != nil {
		return nil, err
	}
	return &parsed, nil
}

// ParseJob implements NLPService.
func (n *nlpService) ParseJob(ctx context.Context, req ParseJobRequest) (*JobParse, error) {
	var parsed JobParse
	if err := n.post(ctx, "/parse/job", req, &parsed); err != nil {
		return nil, err
	}
	return &parsed, nil
}

// ComputeMatch implements NLPService.
func (n *nlpService) ComputeMatch(ctx context.Context, req MatchRequest) (*MatchResponse, error) {
	var resp MatchResponse
	if err := n.post(ctx, "/match", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (n *nlpService) post(ctx context.Context, path string, payload, target interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("nlp service request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read nlp response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		n.logger.Warn("nlp service returned non-OK status",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return fmt.Errorf("nlp service %s returned status %d", path, resp.StatusCode)
	}

	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("failed to decode nlp response: %w", err)
	}

	return nil
}
