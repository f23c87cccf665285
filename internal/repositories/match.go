package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"talentmatch/api/internal/events"
	"talentmatch/api/internal/models"
)

type MatchRepository interface {
	CreateJob(ctx context.Context, job *models.MatchJob) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.MatchStatus) error
	Complete(ctx context.Context, id, resultID uuid.UUID) error
	Fail(ctx context.Context, id uuid.UUID, message string) error
	GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.MatchJob, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.MatchJob, error)
	CreateResult(ctx context.Context, result *models.MatchResult) error
	GetResult(ctx context.Context, id, userID uuid.UUID) (*models.MatchResult, error)
	FindWithSubject(ctx context.Context, id uuid.UUID) (*models.MatchJob, string, error)
}

type matchRepository struct {
	db  *gorm.DB
	bus *events.Bus
}

func NewMatchRepository(db *gorm.DB, bus *events.Bus) MatchRepository {
	return &matchRepository{db: db, bus: bus}
}

func (r *matchRepository) CreateJob(ctx context.Context, job *models.MatchJob) error {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).
		Create(job)
	if result.Error != nil {
		return fmt.Errorf("failed to create match job: %w", result.Error)
	}

	return nil
}

func (r *matchRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.MatchStatus) error {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&models.MatchJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update match status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return models.ErrNotFound
	}

	r.publish(id, status, now)
	return nil
}

// Complete attaches the result and flips the job to completed in a single
// UPDATE, so result_id is non-null exactly when status is completed.
func (r *matchRepository) Complete(ctx context.Context, id, resultID uuid.UUID) error {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&models.MatchJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     models.MatchCompleted,
			"result_id":  resultID,
			"updated_at": now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to complete match job: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return models.ErrNotFound
	}

	r.publish(id, models.MatchCompleted, now)
	return nil
}

func (r *matchRepository) Fail(ctx context.Context, id uuid.UUID, message string) error {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&models.MatchJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        models.MatchFailed,
			"error_message": message,
			"updated_at":    now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark match job failed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return models.ErrNotFound
	}

	r.publish(id, models.MatchFailed, now)
	return nil
}

func (r *matchRepository) publish(id uuid.UUID, status models.MatchStatus, ts time.Time) {
	r.bus.Publish(events.TopicMatchStatusChanged, events.StatusEvent{
		ID:     id,
		Status: string(status),
		TS:     ts,
	})
}

func (r *matchRepository) GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.MatchJob, error) {
	var job models.MatchJob
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find match job: %w", err)
	}

	return &job, nil
}

func (r *matchRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.MatchJob, error) {
	var jobs []models.MatchJob
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list match jobs: %w", err)
	}

	return jobs, nil
}

func (r *matchRepository) CreateResult(ctx context.Context, result *models.MatchResult) error {
	if err := r.db.WithContext(ctx).Create(result).Error; err != nil {
		return fmt.Errorf("failed to create match result: %w", err)
	}

	return nil
}

func (r *matchRepository) GetResult(ctx context.Context, id, userID uuid.UUID) (*models.MatchResult, error) {
	var result models.MatchResult
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find match result: %w", err)
	}

	return &result, nil
}

func (r *matchRepository) FindWithSubject(ctx context.Context, id uuid.UUID) (*models.MatchJob, string, error) {
	var row struct {
		models.MatchJob
		ExternalSubject string
	}
	err := r.db.WithContext(ctx).
		Model(&models.MatchJob{}).
		Select("match_jobs.*, users.external_subject").
		Joins("JOIN users ON users.id = match_jobs.user_id").
		Where("match_jobs.id = ?", id).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to find match job with owner: %w", err)
	}

	return &row.MatchJob, row.ExternalSubject, nil
}
