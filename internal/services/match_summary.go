package services

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"talentmatch/api/internal/models"
)

// matchThreshold is the similarity at or above which a requirement counts
// as covered by the candidate.
const matchThreshold = 0.5

// MatchSummary is the enriched object persisted with a completed match.
type MatchSummary struct {
	OverallMatchScore float64       `json:"overall_match_score"`
	Candidate         CandidateView `json:"candidate"`
	Details           []DetailView  `json:"details"`
	Strengths         []string      `json:"strengths"`
	Weaknesses        []string      `json:"weaknesses"`
}

type CandidateView struct {
	Name            string   `json:"name"`
	Skills          []string `json:"skills"`
	ExperienceYears float64  `json:"experience_years"`
	Degrees         []string `json:"degrees"`
	Certifications  []string `json:"certifications"`
	Summary         string   `json:"summary"`
}

type DetailView struct {
	Requirement            string  `json:"requirement"`
	Similarity             float64 `json:"similarity"`
	CandidateHasExperience bool    `json:"candidate_has_experience"`
	Comments               string  `json:"comments"`
}

// BuildMatchSummary assembles the persisted summary from the NLP response,
// the candidate's parsed profile, their skill rows, and the requirements
// that were sent to the matcher.
func BuildMatchSummary(resp *MatchResponse, profile json.RawMessage, skills []models.CandidateSkill, requirements []RequirementPayload) MatchSummary {
	summary := MatchSummary{
		OverallMatchScore: overallScore(resp),
		Candidate:         buildCandidateView(profile, skills),
		Details:           make([]DetailView, 0, len(resp.Summary.Details)),
		Strengths:         make([]string, 0, len(resp.Summary.Strengths)),
		Weaknesses:        make([]string, 0, len(resp.Summary.Gaps)),
	}

	similarityByRequirement := make(map[string]float64, len(resp.Summary.Details))
	for _, d := range resp.Summary.Details {
		similarityByRequirement[d.Requirement] = d.Similarity

		matched := d.Similarity >= matchThreshold
		summary.Details = append(summary.Details, DetailView{
			Requirement:            d.Requirement,
			Similarity:             d.Similarity,
			CandidateHasExperience: matched,
			Comments:               detailComment(d, matched),
		})
	}

	importanceByRequirement := make(map[string]float64, len(requirements))
	for _, r := range requirements {
		importanceByRequirement[r.Skill] = r.Importance
	}

	for _, strength := range resp.Summary.Strengths {
		summary.Strengths = append(summary.Strengths,
			fmt.Sprintf("%s (similarity %s)", strength, formatScore(similarityByRequirement[strength])))
	}

	for _, gap := range resp.Summary.Gaps {
		summary.Weaknesses = append(summary.Weaknesses,
			fmt.Sprintf("%s (importance %s)", gap, formatScore(importanceByRequirement[gap])))
	}

	return summary
}

func overallScore(resp *MatchResponse) float64 {
	if resp.Score != nil {
		return *resp.Score
	}
	if resp.Summary.OverallMatchScore != nil {
		return *resp.Summary.OverallMatchScore
	}
	return 0
}

func detailComment(d MatchDetail, matched bool) string {
	switch {
	case matched && d.MatchedSkill != "":
		return fmt.Sprintf("Matched via %s (similarity %s)", d.MatchedSkill, formatScore(d.Similarity))
	case matched:
		return fmt.Sprintf("Matched with similarity %s", formatScore(d.Similarity))
	default:
		return "No close match found"
	}
}

// candidateProfile is the subset of the opaque résumé profile blob the
// summary surfaces. Unknown keys are ignored.
type candidateProfile struct {
	Name            string   `json:"name"`
	ExperienceYears float64  `json:"experience_years"`
	Degrees         []string `json:"degrees"`
	Certifications  []string `json:"certifications"`
	Summary         string   `json:"summary"`
}

func buildCandidateView(profile json.RawMessage, skills []models.CandidateSkill) CandidateView {
	var p candidateProfile
	if len(profile) > 0 {
		// Best effort; an unreadable profile leaves the fields zeroed.
		_ = json.Unmarshal(profile, &p)
	}

	seen := make(map[string]struct{}, len(skills))
	names := make([]string, 0, len(skills))
	for _, s := range skills {
		key := strings.ToLower(s.Skill)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		names = append(names, s.Skill)
	}
	sort.Strings(names)

	view := CandidateView{
		Name:            p.Name,
		Skills:          names,
		ExperienceYears: p.ExperienceYears,
		Degrees:         p.Degrees,
		Certifications:  p.Certifications,
		Summary:         p.Summary,
	}
	if view.Degrees == nil {
		view.Degrees = []string{}
	}
	if view.Certifications == nil {
		view.Certifications = []string{}
	}

	return view
}

// ClampImportance normalizes a requirement weight into [0,1].
func ClampImportance(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func formatScore(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}
