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

type JobRepository interface {
	Create(ctx context.Context, job *models.Job) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.DocumentStatus, parsedSummary datatypes.JSON) error
	GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.Job, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Job, error)
	SoftDelete(ctx context.Context, id, userID uuid.UUID) error
	ReplaceChildren(ctx context.Context, id uuid.UUID, requirements []models.Requirement, softSkills []models.JobSoftSkill) error
	FindWithSubject(ctx context.Context, id uuid.UUID) (*models.Job, string, error)
}

type jobRepository struct {
	db  *gorm.DB
	bus *events.Bus
}

func NewJobRepository(db *gorm.DB, bus *events.Bus) JobRepository {
	return &jobRepository{db: db, bus: bus}
}

func (r *jobRepository) Create(ctx context.Context, job *models.Job) error {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).
		Create(job)
	if result.Error != nil {
		return fmt.Errorf("failed to create job: %w", result.Error)
	}

	return nil
}

func (r *jobRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.DocumentStatus, parsedSummary datatypes.JSON) error {
	now := time.Now()
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": now,
	}
	if parsedSummary != nil {
		updates["parsed_summary"] = parsedSummary
	}

	result := r.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("id = ? AND is_deleted = ?", id, false).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update job status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return models.ErrNotFound
	}

	r.bus.Publish(events.TopicJobStatusChanged, events.StatusEvent{
		ID:     id,
		Status: string(status),
		TS:     now,
	})

	return nil
}

func (r *jobRepository) GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.Job, error) {
	var job models.Job
	err := r.db.WithContext(ctx).
		Preload("Requirements").
		Preload("SoftSkills").
		Where("id = ? AND user_id = ? AND is_deleted = ?", id, userID, false).
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find job: %w", err)
	}

	return &job, nil
}

func (r *jobRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Job, error) {
	var jobs []models.Job
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_deleted = ?", userID, false).
		Order("created_at DESC").
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return jobs, nil
}

func (r *jobRepository) SoftDelete(ctx context.Context, id, userID uuid.UUID) error {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("id = ? AND user_id = ? AND is_deleted = ?", id, userID, false).
		Updates(map[string]interface{}{
			"is_deleted": true,
			"deleted_at": now,
			"updated_at": now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to soft delete job: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return models.ErrNotFound
	}

	return nil
}

// ReplaceChildren swaps both derived row families for the job. Delete and
// insert are separate statements; readers gate on status.
func (r *jobRepository) ReplaceChildren(ctx context.Context, id uuid.UUID, requirements []models.Requirement, softSkills []models.JobSoftSkill) error {
	if err := r.db.WithContext(ctx).
		Where("job_id = ?", id).
		Delete(&models.Requirement{}).Error; err != nil {
		return fmt.Errorf("failed to delete requirements: %w", err)
	}
	if err := r.db.WithContext(ctx).
		Where("job_id = ?", id).
		Delete(&models.JobSoftSkill{}).Error; err != nil {
		return fmt.Errorf("failed to delete soft skills: %w", err)
	}

	if len(requirements) > 0 {
		for i := range requirements {
			requirements[i].JobID = id
		}
		if err := r.db.WithContext(ctx).Create(&requirements).Error; err != nil {
			return fmt.Errorf("failed to insert requirements: %w", err)
		}
	}

	if len(softSkills) > 0 {
		for i := range softSkills {
			softSkills[i].JobID = id
		}
		if err := r.db.WithContext(ctx).Create(&softSkills).Error; err != nil {
			return fmt.Errorf("failed to insert soft skills: %w", err)
		}
	}

	return nil
}

func (r *jobRepository) FindWithSubject(ctx context.Context, id uuid.UUID) (*models.Job, string, error) {
	var row struct {
		models.Job
		ExternalSubject string
	}
	err := r.db.WithContext(ctx).
		Model(&models.Job{}).
		Select("job_descriptions.*, users.external_subject").
		Joins("JOIN users ON users.id = job_descriptions.user_id").
		Where("job_descriptions.id = ? AND job_descriptions.is_deleted = ?", id, false).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to find job with owner: %w", err)
	}

	return &row.Job, row.ExternalSubject, nil
}
