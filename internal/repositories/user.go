package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"talentmatch/api/internal/models"
)

type UserRepository interface {
	EnsureUser(ctx context.Context, externalSubject string, email *string) (*models.User, error)
	GetUserID(ctx context.Context, externalSubject string) (*uuid.UUID, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	IncrementAnnualUsage(ctx context.Context, userID uuid.UUID) (int, int, error)
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// EnsureUser resolves an external subject to its user row, inserting the row
// with default quota counters on first sight. Concurrent first requests for
// the same subject race on the unique index; the loser re-reads.
func (r *userRepository) EnsureUser(ctx context.Context, externalSubject string, email *string) (*models.User, error) {
	if strings.TrimSpace(externalSubject) == "" {
		return nil, fmt.Errorf("%w: empty external subject", models.ErrInvalidInput)
	}

	var user models.User
	err := r.db.WithContext(ctx).
		Where("external_subject = ?", externalSubject).
		First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	now := time.Now()
	user = models.User{
		ID:               uuid.New(),
		ExternalSubject:  externalSubject,
		Email:            email,
		AnnualLimit:      models.DefaultAnnualLimit,
		AnnualUsageCount: 0,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_subject"}},
			DoNothing: true,
		}).
		Create(&user)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to create user: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		// Lost the insert race; the winner's row is authoritative.
		if err := r.db.WithContext(ctx).
			Where("external_subject = ?", externalSubject).
			First(&user).Error; err != nil {
			return nil, fmt.Errorf("failed to re-read user after conflict: %w", err)
		}
	}

	return &user, nil
}

// GetUserID is the read-only resolution path; it never creates.
func (r *userRepository) GetUserID(ctx context.Context, externalSubject string) (*uuid.UUID, error) {
	if strings.TrimSpace(externalSubject) == "" {
		return nil, fmt.Errorf("%w: empty external subject", models.ErrInvalidInput)
	}

	var user models.User
	err := r.db.WithContext(ctx).
		Select("id").
		Where("external_subject = ?", externalSubject).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user id: %w", err)
	}

	return &user.ID, nil
}

func (r *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	return &user, nil
}

// IncrementAnnualUsage bumps the rolling-window counter and returns the new
// count together with the limit. An expired (or never-started) window is
// reset first. The increment itself is a single atomic UPDATE; only the
// window reset is a read-then-write, so under contention the counter can
// overshoot by at most one.
func (r *userRepository) IncrementAnnualUsage(ctx context.Context, userID uuid.UUID) (int, int, error) {
	user, err := r.FindByID(ctx, userID)
	if err != nil {
		return 0, 0, err
	}

	now := time.Now()
	if user.WindowExpired(now) {
		result := r.db.WithContext(ctx).
			Model(&models.User{}).
			Where("id = ?", userID).
			Updates(map[string]interface{}{
				"annual_usage_count":  0,
				"annual_period_start": now,
				"updated_at":          now,
			})
		if result.Error != nil {
			return 0, 0, fmt.Errorf("failed to reset quota window: %w", result.Error)
		}
	}

	result := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"annual_usage_count": gorm.Expr("annual_usage_count + 1"),
			"updated_at":         now,
		})
	if result.Error != nil {
		return 0, 0, fmt.Errorf("failed to increment usage: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return 0, 0, models.ErrNotFound
	}

	updated, err := r.FindByID(ctx, userID)
	if err != nil {
		return 0, 0, err
	}

	return updated.AnnualUsageCount, updated.AnnualLimit, nil
}
