package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type JobSource string

const (
	JobSourceFile JobSource = "file"
	JobSourceText JobSource = "text"
)

type Job struct {
	ID            uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	UserID        uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Title         string         `gorm:"type:text;not null" json:"title"`
	Source        JobSource      `gorm:"type:text;not null" json:"source"`
	Filename      *string        `gorm:"type:text" json:"filename,omitempty"`
	MimeType      string         `gorm:"type:text;not null" json:"mime_type"`
	StorageKey    *string        `gorm:"type:text" json:"storage_key,omitempty"`
	RawText       *string        `gorm:"type:text" json:"raw_text,omitempty"`
	Status        DocumentStatus `gorm:"type:text;not null;default:'queued'" json:"status"`
	ParsedSummary datatypes.JSON `gorm:"type:text" json:"parsed_summary,omitempty"`
	IsDeleted     bool           `gorm:"not null;default:false" json:"-"`
	DeletedAt     *time.Time     `gorm:"type:timestamp" json:"-"`
	CreatedAt     time.Time      `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
	Requirements  []Requirement  `gorm:"foreignKey:JobID" json:"requirements,omitempty"`
	SoftSkills    []JobSoftSkill `gorm:"foreignKey:JobID" json:"soft_skills,omitempty"`
}

func (Job) TableName() string {
	return "job_descriptions"
}

// Requirement rows are derived by a job parse. Importance is kept inside
// [0,1]; Inferred marks requirements the parser added beyond the literal
// posting text.
type Requirement struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	JobID      uuid.UUID `gorm:"type:uuid;not null;index" json:"-"`
	Skill      string    `gorm:"type:text;not null" json:"skill"`
	Importance float64   `gorm:"type:decimal(3,2);not null" json:"importance"`
	Inferred   bool      `gorm:"not null;default:false" json:"inferred"`
}

func (Requirement) TableName() string {
	return "requirements"
}

type JobSoftSkill struct {
	ID    uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	JobID uuid.UUID `gorm:"type:uuid;not null;index" json:"-"`
	Skill string    `gorm:"type:text;not null" json:"skill"`
	Value float64   `gorm:"type:decimal(3,2);not null" json:"value"`
}

func (JobSoftSkill) TableName() string {
	return "job_soft_skills"
}
