package services_test

import (
	"encoding/json"
	"testing"

	"talentmatch/api/internal/models"
	"talentmatch/api/internal/services"
)

func floatPtr(v float64) *float64 { return &v }

func TestBuildMatchSummaryCommentsThreeCases(t *testing.T) {
	resp := &services.MatchResponse{
		Score: floatPtr(0.7),
		Summary: services.MatchNLPSummary{
			Details: []services.MatchDetail{
				{Requirement: "python", Similarity: 0.82, MatchedSkill: "Python"},
				{Requirement: "kubernetes", Similarity: 0.61},
				{Requirement: "rust", Similarity: 0.2, MatchedSkill: "Go"},
			},
		},
	}

	summary := services.BuildMatchSummary(resp, nil, nil, nil)

	if len(summary.Details) != 3 {
		t.Fatalf("expected 3 details, got %d", len(summary.Details))
	}

	cases := []struct {
		hasExperience bool
		comments      string
	}{
		{true, "Matched via Python (similarity 0.82)"},
		{true, "Matched with similarity 0.61"},
		{false, "No close match found"},
	}
	for i, want := range cases {
		got := summary.Details[i]
		if got.CandidateHasExperience != want.hasExperience {
			t.Errorf("detail %d: candidate_has_experience = %v, want %v", i, got.CandidateHasExperience, want.hasExperience)
		}
		if got.Comments != want.comments {
			t.Errorf("detail %d: comments = %q, want %q", i, got.Comments, want.comments)
		}
	}
}

func TestBuildMatchSummaryThresholdBoundary(t *testing.T) {
	resp := &services.MatchResponse{
		Score: floatPtr(0.5),
		Summary: services.MatchNLPSummary{
			Details: []services.MatchDetail{
				{Requirement: "exactly", Similarity: 0.5},
				{Requirement: "below", Similarity: 0.4999},
			},
		},
	}

	summary := services.BuildMatchSummary(resp, nil, nil, nil)

	if !summary.Details[0].CandidateHasExperience {
		t.Fatal("similarity exactly 0.5 must count as matched")
	}
	if summary.Details[1].CandidateHasExperience {
		t.Fatal("similarity below 0.5 must not count as matched")
	}
}

func TestBuildMatchSummaryScoreFallback(t *testing.T) {
	withScore := &services.MatchResponse{
		Score: floatPtr(0.9),
		Summary: services.MatchNLPSummary{
			OverallMatchScore: floatPtr(0.1),
		},
	}
	if got := services.BuildMatchSummary(withScore, nil, nil, nil).OverallMatchScore; got != 0.9 {
		t.Fatalf("top-level score must win, got %v", got)
	}

	fromSummary := &services.MatchResponse{
		Summary: services.MatchNLPSummary{
			OverallMatchScore: floatPtr(0.3),
		},
	}
	if got := services.BuildMatchSummary(fromSummary, nil, nil, nil).OverallMatchScore; got != 0.3 {
		t.Fatalf("summary score is the fallback, got %v", got)
	}

	neither := &services.MatchResponse{}
	if got := services.BuildMatchSummary(neither, nil, nil, nil).OverallMatchScore; got != 0 {
		t.Fatalf("missing scores default to 0, got %v", got)
	}
}

func TestBuildMatchSummaryStrengthsAndWeaknesses(t *testing.T) {
	resp := &services.MatchResponse{
		Score: floatPtr(0.6),
		Summary: services.MatchNLPSummary{
			Details: []services.MatchDetail{
				{Requirement: "python", Similarity: 0.9},
			},
			Strengths: []string{"python"},
			Gaps:      []string{"kubernetes"},
		},
	}
	requirements := []services.RequirementPayload{
		{Skill: "python", Importance: 0.8},
		{Skill: "kubernetes", Importance: 0.75},
	}

	summary := services.BuildMatchSummary(resp, nil, nil, requirements)

	if len(summary.Strengths) != 1 || summary.Strengths[0] != "python (similarity 0.9)" {
		t.Fatalf("unexpected strengths: %v", summary.Strengths)
	}
	if len(summary.Weaknesses) != 1 || summary.Weaknesses[0] != "kubernetes (importance 0.75)" {
		t.Fatalf("unexpected weaknesses: %v", summary.Weaknesses)
	}
}

func TestBuildMatchSummaryCandidateView(t *testing.T) {
	profile := json.RawMessage(`{
		"name": "Ada",
		"experience_years": 7,
		"degrees": ["BSc"],
		"certifications": ["CKA"],
		"summary": "seasoned engineer"
	}`)
	skills := []models.CandidateSkill{
		{Skill: "python"},
		{Skill: "Python"},
		{Skill: "go"},
	}

	summary := services.BuildMatchSummary(&services.MatchResponse{Score: floatPtr(1)}, profile, skills, nil)

	c := summary.Candidate
	if c.Name != "Ada" || c.ExperienceYears != 7 || c.Summary != "seasoned engineer" {
		t.Fatalf("profile fields not surfaced: %+v", c)
	}
	if len(c.Skills) != 2 {
		t.Fatalf("skills must be case-insensitively deduped, got %v", c.Skills)
	}
	if c.Skills[0] != "go" || c.Skills[1] != "python" {
		t.Fatalf("skills must be sorted ascending, got %v", c.Skills)
	}
}

func TestBuildMatchSummaryUnreadableProfile(t *testing.T) {
	summary := services.BuildMatchSummary(
		&services.MatchResponse{Score: floatPtr(0.2)},
		json.RawMessage(`not json`),
		nil,
		nil,
	)

	if summary.Candidate.Name != "" {
		t.Fatal("unreadable profile must leave fields zeroed")
	}
	if summary.Candidate.Degrees == nil || summary.Candidate.Certifications == nil {
		t.Fatal("list fields must serialize as empty arrays, not null")
	}
}

func TestClampImportance(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{-0.5, 0},
		{0, 0},
		{0.42, 0.42},
		{1, 1},
		{3.7, 1},
	}
	for _, c := range cases {
		if got := services.ClampImportance(c.in); got != c.want {
			t.Errorf("ClampImportance(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}
