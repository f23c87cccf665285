package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"talentmatch/api/internal/models"
	"talentmatch/api/internal/repositories"
)

type UsageHandler struct {
	users  repositories.UserRepository
	logger *zap.Logger
}

func NewUsageHandler(users repositories.UserRepository, logger *zap.Logger) *UsageHandler {
	return &UsageHandler{users: users, logger: logger}
}

// HandleGet handles GET /usage.
func (h *UsageHandler) HandleGet(c *fiber.Ctx) error {
	caller := AuthFromContext(c)

	user, err := h.users.FindByID(c.Context(), caller.UserID)
	if err != nil {
		h.logger.Error("failed to load usage", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal_error",
		})
	}

	remaining := user.AnnualLimit - user.AnnualUsageCount
	if remaining < 0 {
		remaining = 0
	}

	return c.JSON(models.UsageResponse{
		AnnualLimit:       user.AnnualLimit,
		AnnualUsageCount:  user.AnnualUsageCount,
		AnnualPeriodStart: user.AnnualPeriodStart,
		Remaining:         remaining,
	})
}
