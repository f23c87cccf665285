package models

import (
	"encoding/json"
	"time"
)

type CreatedResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type CreateJobRequest struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

type CreateMatchRequest struct {
	ResumeID string `json:"resumeId"`
	JobID    string `json:"jobId"`
}

type ResumeListItem struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	MimeType  string    `json:"mimeType"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type ResumeDetailResponse struct {
	ID         string           `json:"id"`
	Status     string           `json:"status"`
	Filename   string           `json:"filename"`
	MimeType   string           `json:"mimeType"`
	ParsedData json.RawMessage  `json:"parsedData,omitempty"`
	Skills     []CandidateSkill `json:"skills"`
	CreatedAt  time.Time        `json:"createdAt"`
	UpdatedAt  time.Time        `json:"updatedAt"`
}

type JobListItem struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Source    string    `json:"source"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type JobDetailResponse struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	Source       string          `json:"source"`
	Status       string          `json:"status"`
	ParsedData   json.RawMessage `json:"parsedData,omitempty"`
	Requirements []Requirement   `json:"requirements"`
	SoftSkills   []JobSoftSkill  `json:"soft_skills"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

type MatchListItem struct {
	ID        string    `json:"id"`
	ResumeID  string    `json:"resumeId"`
	JobID     string    `json:"jobId"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type MatchDetailResponse struct {
	ID       string           `json:"id"`
	Status   string           `json:"status"`
	ResumeID string           `json:"resumeId"`
	JobID    string           `json:"jobId"`
	Error    *string          `json:"error,omitempty"`
	Match    *MatchResultView `json:"match,omitempty"`
}

type MatchResultView struct {
	ID        string          `json:"id"`
	Score     float64         `json:"score"`
	Summary   json.RawMessage `json:"summary"`
	CreatedAt time.Time       `json:"createdAt"`
}

type UsageResponse struct {
	AnnualLimit       int        `json:"annual_limit"`
	AnnualUsageCount  int        `json:"annual_usage_count"`
	AnnualPeriodStart *time.Time `json:"annual_period_start"`
	Remaining         int        `json:"remaining"`
}
