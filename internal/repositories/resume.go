package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"talentmatch/api/internal/events"
	"talentmatch/api/internal/models"
)

type ResumeRepository interface {
	Create(ctx context.Context, resume *models.Resume) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.DocumentStatus, parsedSummary datatypes.JSON) error
	GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.Resume, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Resume, error)
	SoftDelete(ctx context.Context, id, userID uuid.UUID) error
	ReplaceSkills(ctx context.Context, id uuid.UUID, skills []models.CandidateSkill) error
	FindWithSubject(ctx context.Context, id uuid.UUID) (*models.Resume, string, error)
}

type resumeRepository struct {
	db  *gorm.DB
	bus *events.Bus
}

func NewResumeRepository(db *gorm.DB, bus *events.Bus) ResumeRepository {
	return &resumeRepository{db: db, bus: bus}
}

// Create inserts the row; a re-submit with the same id is a no-op so the
// ingest path can be retried safely.
func (r *resumeRepository) Create(ctx context.Context, resume *models.Resume) error {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).
		Create(resume)
	if result.Error != nil {
		return fmt.Errorf("failed to create resume: %w", result.Error)
	}

	return nil
}

// UpdateStatus writes the authoritative row and then emits
// resume.status.changed. The emission happens only after the durable write
// succeeds and only when a live row was actually touched, so subscribers
// never observe uncommitted state.
func (r *resumeRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.DocumentStatus, parsedSummary datatypes.JSON) error {
	now := time.Now()
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": now,
	}
	if parsedSummary != nil {
		updates["parsed_summary"] = parsedSummary
	}

	result := r.db.WithContext(ctx).
		Model(&models.Resume{}).
		Where("id = ? AND is_deleted = ?", id, false).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update resume status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return models.ErrNotFound
	}

	r.bus.Publish(events.TopicResumeStatusChanged, events.StatusEvent{
		ID:     id,
		Status: string(status),
		TS:     now,
	})

	return nil
}

func (r *resumeRepository) GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.Resume, error) {
	var resume models.Resume
	err := r.db.WithContext(ctx).
		Preload("Skills").
		Where("id = ? AND user_id = ? AND is_deleted = ?", id, userID, false).
		First(&resume).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find resume: %w", err)
	}

	return &resume, nil
}

func (r *resumeRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Resume, error) {
	var resumes []models.Resume
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_deleted = ?", userID, false).
		Order("created_at DESC").
		Find(&resumes).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list resumes: %w", err)
	}

	return resumes, nil
}

// SoftDelete hides the row from every subsequent read. Irreversible.
func (r *resumeRepository) SoftDelete(ctx context.Context, id, userID uuid.UUID) error {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&models.Resume{}).
		Where("id = ? AND user_id = ? AND is_deleted = ?", id, userID, false).
		Updates(map[string]interface{}{
			"is_deleted": true,
			"deleted_at": now,
			"updated_at": now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to soft delete resume: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return models.ErrNotFound
	}

	return nil
}

// ReplaceSkills drops and reinserts the derived skill rows. The two steps
// are not transactional; readers gate on status, which flips to ready only
// after the insert.
func (r *resumeRepository) ReplaceSkills(ctx context.Context, id uuid.UUID, skills []models.CandidateSkill) error {
	if err := r.db.WithContext(ctx).
		Where("resume_id = ?", id).
		Delete(&models.CandidateSkill{}).Error; err != nil {
		return fmt.Errorf("failed to delete candidate skills: %w", err)
	}

	if len(skills) == 0 {
		return nil
	}

	for i := range skills {
		skills[i].ResumeID = id
	}

	if err := r.db.WithContext(ctx).Create(&skills).Error; err != nil {
		return fmt.Errorf("failed to insert candidate skills: %w", err)
	}

	return nil
}

// FindWithSubject reads the row together with its owner's external subject
// for realtime routing. Soft-deleted rows stay hidden.
func (r *resumeRepository) FindWithSubject(ctx context.Context, id uuid.UUID) (*models.Resume, string, error) {
	var row struct {
		models.Resume
		ExternalSubject string
	}
	err := r.db.WithContext(ctx).
		Model(&models.Resume{}).
		Select("resumes.*, users.external_subject").
		Joins("JOIN users ON users.id = resumes.user_id").
		Where("resumes.id = ? AND resumes.is_deleted = ?", id, false).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to find resume with owner: %w", err)
	}

	return &row.Resume, row.ExternalSubject, nil
}
