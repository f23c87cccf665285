package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// DefaultAnnualLimit is the number of match computations a fresh account may
// run within one rolling 365-day window.
const DefaultAnnualLimit = 100

// AnnualWindow is the rolling quota window for match creation.
const AnnualWindow = 365 * 24 * time.Hour

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrNotReady        = errors.New("entity not ready")
	ErrUpgradeRequired = errors.New("upgrade required")
)

// User maps an external identity-provider subject to an internal account and
// carries the per-account quota counters.
type User struct {
	ID                uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	ExternalSubject   string     `gorm:"type:text;not null;uniqueIndex" json:"external_subject"`
	Email             *string    `gorm:"type:text" json:"email,omitempty"`
	AnnualLimit       int        `gorm:"not null;default:100" json:"annual_limit"`
	AnnualUsageCount  int        `gorm:"not null;default:0" json:"annual_usage_count"`
	AnnualPeriodStart *time.Time `gorm:"type:timestamp" json:"annual_period_start,omitempty"`
	CreatedAt         time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// WindowExpired reports whether the quota window has lapsed at the given
// instant. A user that never created a match has no window yet.
func (u *User) WindowExpired(now time.Time) bool {
	if u.AnnualPeriodStart == nil {
		return true
	}
	return now.Sub(*u.AnnualPeriodStart) > AnnualWindow
}
