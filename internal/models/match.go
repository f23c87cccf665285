package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type MatchStatus string

const (
	MatchQueued    MatchStatus = "queued"
	MatchRunning   MatchStatus = "running"
	MatchCompleted MatchStatus = "completed"
	MatchFailed    MatchStatus = "failed"
)

// MatchJob tracks one asynchronous match computation. ResultID is set in the
// same update that moves the job to completed, so it is non-null exactly for
// completed jobs.
type MatchJob struct {
	ID           uuid.UUID   `gorm:"type:uuid;primary_key" json:"id"`
	UserID       uuid.UUID   `gorm:"type:uuid;not null;index" json:"user_id"`
	ResumeID     uuid.UUID   `gorm:"type:uuid;not null" json:"resume_id"`
	JobID        uuid.UUID   `gorm:"type:uuid;not null" json:"job_id"`
	Status       MatchStatus `gorm:"type:text;not null;default:'queued'" json:"status"`
	ErrorMessage *string     `gorm:"type:text" json:"error_message,omitempty"`
	ResultID     *uuid.UUID  `gorm:"type:uuid" json:"result_id,omitempty"`
	CreatedAt    time.Time   `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time   `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (MatchJob) TableName() string {
	return "match_jobs"
}

type MatchResult struct {
	ID        uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	UserID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	ResumeID  uuid.UUID      `gorm:"type:uuid;not null" json:"resume_id"`
	JobID     uuid.UUID      `gorm:"type:uuid;not null" json:"job_id"`
	Score     float64        `gorm:"type:decimal(4,3);not null" json:"score"`
	Summary   datatypes.JSON `gorm:"type:text" json:"summary"`
	CreatedAt time.Time      `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (MatchResult) TableName() string {
	return "matches"
}
