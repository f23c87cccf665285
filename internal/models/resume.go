package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type DocumentStatus string

const (
	StatusQueued     DocumentStatus = "queued"
	StatusProcessing DocumentStatus = "processing"
	StatusReady      DocumentStatus = "ready"
	StatusError      DocumentStatus = "error"
)

type Resume struct {
	ID            uuid.UUID        `gorm:"type:uuid;primary_key" json:"id"`
	UserID        uuid.UUID        `gorm:"type:uuid;not null;index" json:"user_id"`
	Filename      string           `gorm:"type:text;not null" json:"filename"`
	MimeType      string           `gorm:"type:text;not null" json:"mime_type"`
	StorageKey    string           `gorm:"type:text;not null" json:"storage_key"`
	Status        DocumentStatus   `gorm:"type:text;not null;default:'queued'" json:"status"`
	ParsedSummary datatypes.JSON   `gorm:"type:text" json:"parsed_summary,omitempty"`
	IsDeleted     bool             `gorm:"not null;default:false" json:"-"`
	DeletedAt     *time.Time       `gorm:"type:timestamp" json:"-"`
	CreatedAt     time.Time        `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time        `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
	Skills        []CandidateSkill `gorm:"foreignKey:ResumeID" json:"skills,omitempty"`
}

func (Resume) TableName() string {
	return "resumes"
}

// CandidateSkill rows are derived by a résumé parse and wholly replaced on
// every successful re-parse.
type CandidateSkill struct {
	ID              uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	ResumeID        uuid.UUID `gorm:"type:uuid;not null;index" json:"-"`
	Skill           string    `gorm:"type:text;not null" json:"skill"`
	ExperienceYears *float64  `gorm:"type:decimal(5,2)" json:"experience_years,omitempty"`
	Proficiency     *string   `gorm:"type:text" json:"proficiency,omitempty"`
}

func (CandidateSkill) TableName() string {
	return "candidate_skills"
}
