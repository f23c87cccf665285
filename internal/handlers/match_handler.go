package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"talentmatch/api/internal/models"
	"talentmatch/api/internal/queue"
	"talentmatch/api/internal/quota"
	"talentmatch/api/internal/repositories"
)

type MatchHandler struct {
	matches  repositories.MatchRepository
	resumes  repositories.ResumeRepository
	jobs     repositories.JobRepository
	enforcer *quota.Enforcer
	enqueuer queue.Enqueuer
	logger   *zap.Logger
}

func NewMatchHandler(
	matches repositories.MatchRepository,
	resumes repositories.ResumeRepository,
	jobs repositories.JobRepository,
	enforcer *quota.Enforcer,
	enqueuer queue.Enqueuer,
	logger *zap.Logger,
) *MatchHandler {
	return &MatchHandler{
		matches:  matches,
		resumes:  resumes,
		jobs:     jobs,
		enforcer: enforcer,
		enqueuer: enqueuer,
		logger:   logger,
	}
}

// HandleCreate handles POST /matches. Both inputs must exist, belong to the
// caller, and be fully parsed before a match job is admitted.
func (h *MatchHandler) HandleCreate(c *fiber.Ctx) error {
	caller := AuthFromContext(c)

	var req models.CreateMatchRequest
	if err := c.BodyParser(&req); err != nil || req.ResumeID == "" || req.JobID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "resumeId_and_jobId_required",
		})
	}

	resumeID, err := uuid.Parse(req.ResumeID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "resume_not_found",
		})
	}
	jobID, err := uuid.Parse(req.JobID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "job_not_found",
		})
	}

	resume, err := h.resumes.GetForUser(c.Context(), resumeID, caller.UserID)
	if err != nil {
		h.logger.Error("failed to load resume for match", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal_error",
		})
	}
	if resume == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "resume_not_found",
		})
	}
	if resume.Status != models.StatusReady {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "resume_not_ready",
		})
	}

	job, err := h.jobs.GetForUser(c.Context(), jobID, caller.UserID)
	if err != nil {
		h.logger.Error("failed to load job for match", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal_error",
		})
	}
	if job == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "job_not_found",
		})
	}
	if job.Status != models.StatusReady {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "job_not_ready",
		})
	}

	if err := h.enforcer.Check(c.Context(), caller.UserID, caller.ProMember); err != nil {
		if errors.Is(err, models.ErrUpgradeRequired) {
			return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
				"error":   "upgrade_required",
				"message": "Annual match limit reached. Upgrade to continue matching.",
			})
		}
		h.logger.Error("quota check failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal_error",
		})
	}

	now := time.Now()
	matchJob := &models.MatchJob{
		ID:        uuid.New(),
		UserID:    caller.UserID,
		ResumeID:  resumeID,
		JobID:     jobID,
		Status:    models.MatchQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.matches.CreateJob(c.Context(), matchJob); err != nil {
		h.logger.Error("failed to create match job", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal_error",
		})
	}

	err = h.enqueuer.EnqueueComputeMatch(c.Context(), queue.ComputeMatchPayload{
		MatchJobID: matchJob.ID,
		ResumeID:   resumeID,
		JobID:      jobID,
		UserID:     caller.UserID,
	})
	if err != nil {
		h.logger.Error("failed to enqueue match computation",
			zap.String("match_job_id", matchJob.ID.String()),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "enqueue_failed",
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(models.CreatedResponse{
		ID:     matchJob.ID.String(),
		Status: string(models.MatchQueued),
	})
}

// HandleList handles GET /matches.
func (h *MatchHandler) HandleList(c *fiber.Ctx) error {
	caller := AuthFromContext(c)

	jobs, err := h.matches.ListForUser(c.Context(), caller.UserID)
	if err != nil {
		h.logger.Error("failed to list match jobs", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal_error",
		})
	}

	items := make([]models.MatchListItem, 0, len(jobs))
	for _, j := range jobs {
		items = append(items, models.MatchListItem{
			ID:        j.ID.String(),
			ResumeID:  j.ResumeID.String(),
			JobID:     j.JobID.String(),
			Status:    string(j.Status),
			CreatedAt: j.CreatedAt,
			UpdatedAt: j.UpdatedAt,
		})
	}

	return c.JSON(items)
}

// HandleGet handles GET /matches/:id.
func (h *MatchHandler) HandleGet(c *fiber.Ctx) error {
	caller := AuthFromContext(c)

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "match_not_found",
		})
	}

	matchJob, err := h.matches.GetForUser(c.Context(), id, caller.UserID)
	if err != nil {
		h.logger.Error("failed to get match job", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal_error",
		})
	}
	if matchJob == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "match_not_found",
		})
	}

	resp := models.MatchDetailResponse{
		ID:       matchJob.ID.String(),
		Status:   string(matchJob.Status),
		ResumeID: matchJob.ResumeID.String(),
		JobID:    matchJob.JobID.String(),
		Error:    matchJob.ErrorMessage,
	}

	if matchJob.Status == models.MatchCompleted && matchJob.ResultID != nil {
		result, err := h.matches.GetResult(c.Context(), *matchJob.ResultID, caller.UserID)
		if err != nil {
			h.logger.Error("failed to get match result", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "internal_error",
			})
		}
		if result != nil {
			resp.Match = &models.MatchResultView{
				ID:        result.ID.String(),
				Score:     result.Score,
				Summary:   jsonOrNil(result.Summary),
				CreatedAt: result.CreatedAt,
			}
		}
	}

	return c.JSON(resp)
}
