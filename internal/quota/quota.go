package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"talentmatch/api/internal/models"
	"talentmatch/api/internal/repositories"
)

// Enforcer gates match creation on the rolling 365-day usage window.
// Privileged callers bypass the gate entirely and are never counted.
type Enforcer struct {
	users  repositories.UserRepository
	logger *zap.Logger
}

func NewEnforcer(users repositories.UserRepository, logger *zap.Logger) *Enforcer {
	return &Enforcer{users: users, logger: logger}
}

// Check refuses with ErrUpgradeRequired when the caller is at their limit
// inside a live window; otherwise it consumes one unit of quota.
func (e *Enforcer) Check(ctx context.Context, userID uuid.UUID, privileged bool) error {
	if privileged {
		return nil
	}

	user, err := e.users.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("quota lookup failed: %w", err)
	}

	if user.AnnualUsageCount >= user.AnnualLimit && !user.WindowExpired(time.Now()) {
		e.logger.Info("match quota exhausted",
			zap.String("user_id", userID.String()),
			zap.Int("limit", user.AnnualLimit),
		)
		return models.ErrUpgradeRequired
	}

	newCount, limit, err := e.users.IncrementAnnualUsage(ctx, userID)
	if err != nil {
		return fmt.Errorf("quota increment failed: %w", err)
	}

	e.logger.Debug("match quota consumed",
		zap.String("user_id", userID.String()),
		zap.Int("count", newCount),
		zap.Int("limit", limit),
	)

	return nil
}
