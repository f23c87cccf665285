package handlers

import (
	"mime/multipart"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"talentmatch/api/internal/models"
	"talentmatch/api/internal/queue"
	"talentmatch/api/internal/repositories"
	"talentmatch/api/internal/services"
)

type JobHandler struct {
	jobs        repositories.JobRepository
	storage     services.StorageService
	enqueuer    queue.Enqueuer
	maxFileSize int64
	logger      *zap.Logger
}

func NewJobHandler(
	jobs repositories.JobRepository,
	storage services.StorageService,
	enqueuer queue.Enqueuer,
	maxFileSize int64,
	logger *zap.Logger,
) *JobHandler {
	return &JobHandler{
		jobs:        jobs,
		storage:     storage,
		enqueuer:    enqueuer,
		maxFileSize: maxFileSize,
		logger:      logger,
	}
}

// HandleCreate handles POST /jobs. A multipart request with a file is a
// file-sourced job; a JSON body with text is a text-sourced one.
func (h *JobHandler) HandleCreate(c *fiber.Ctx) error {
	if file, err := c.FormFile("file"); err == nil && file != nil {
		return h.createFromFile(c, file)
	}
	return h.createFromText(c)
}

func (h *JobHandler) createFromText(c *fiber.Ctx) error {
	caller := AuthFromContext(c)

	var req models.CreateJobRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "file_or_text_required",
		})
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "title_required",
		})
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "file_or_text_required",
		})
	}

	now := time.Now()
	job := &models.Job{
		ID:        uuid.New(),
		UserID:    caller.UserID,
		Title:     title,
		Source:    models.JobSourceText,
		MimeType:  "text/plain",
		RawText:   &text,
		Status:    models.StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.jobs.Create(c.Context(), job); err != nil {
		h.logger.Error("failed to create job row", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal_error",
		})
	}

	err := h.enqueuer.EnqueueParseJob(c.Context(), queue.ParseJobPayload{
		JobID:    job.ID,
		Source:   models.JobSourceText,
		MimeType: job.MimeType,
		RawText:  &text,
		UserID:   caller.UserID,
		Title:    title,
	})
	if err != nil {
		h.logger.Error("failed to enqueue job parse",
			zap.String("job_id", job.ID.String()),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "enqueue_failed",
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(models.CreatedResponse{
		ID:     job.ID.String(),
		Status: string(models.StatusQueued),
	})
}

func (h *JobHandler) createFromFile(c *fiber.Ctx, file *multipart.FileHeader) error {
	caller := AuthFromContext(c)

	title := strings.TrimSpace(c.FormValue("title"))
	if title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "title_required",
		})
	}

	if file.Size > h.maxFileSize {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
			"error": "file_too_large",
		})
	}

	mimeType := resolveMimeType(file)
	if _, ok := allowedMimeTypes[mimeType]; !ok {
		return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
			"error": "unsupported_media_type",
		})
	}

	data, err := readMultipartFile(file)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "file_unreadable",
		})
	}

	storageKey := services.ObjectKey("jobs", file.Filename, mimeType)
	filename := file.Filename
	now := time.Now()
	job := &models.Job{
		ID:         uuid.New(),
		UserID:     caller.UserID,
		Title:      title,
		Source:     models.JobSourceFile,
		Filename:   &filename,
		MimeType:   mimeType,
		StorageKey: &storageKey,
		Status:     models.StatusQueued,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := h.jobs.Create(c.Context(), job); err != nil {
		h.logger.Error("failed to create job row", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal_error",
		})
	}

	if err := h.storage.PutObject(c.Context(), storageKey, data, mimeType); err != nil {
		h.logger.Error("failed to store job bytes",
			zap.String("job_id", job.ID.String()),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "storage_failed",
		})
	}

	err = h.enqueuer.EnqueueParseJob(c.Context(), queue.ParseJobPayload{
		JobID:      job.ID,
		Source:     models.JobSourceFile,
		StorageKey: &storageKey,
		Filename:   &filename,
		MimeType:   mimeType,
		UserID:     caller.UserID,
		Title:      title,
	})
	if err != nil {
		h.logger.Error("failed to enqueue job parse",
			zap.String("job_id", job.ID.String()),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "enqueue_failed",
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(models.CreatedResponse{
		ID:     job.ID.String(),
		Status: string(models.StatusQueued),
	})
}

// HandleList handles GET /jobs.
func (h *JobHandler) HandleList(c *fiber.Ctx) error {
	caller := AuthFromContext(c)

	jobs, err := h.jobs.ListForUser(c.Context(), caller.UserID)
	if err != nil {
		h.logger.Error("failed to list jobs", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal_error",
		})
	}

	items := make([]models.JobListItem, 0, len(jobs))
	for _, j := range jobs {
		items = append(items, models.JobListItem{
			ID:        j.ID.String(),
			Title:     j.Title,
			Source:    string(j.Source),
			Status:    string(j.Status),
			CreatedAt: j.CreatedAt,
			UpdatedAt: j.UpdatedAt,
		})
	}

	return c.JSON(items)
}

// HandleGet handles GET /jobs/:id.
func (h *JobHandler) HandleGet(c *fiber.Ctx) error {
	caller := AuthFromContext(c)

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "job_not_found",
		})
	}

	job, err := h.jobs.GetForUser(c.Context(), id, caller.UserID)
	if err != nil {
		h.logger.Error("failed to get job", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal_error",
		})
	}
	if job == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "job_not_found",
		})
	}

	requirements := job.Requirements
	if requirements == nil {
		requirements = []models.Requirement{}
	}
	softSkills := job.SoftSkills
	if softSkills == nil {
		softSkills = []models.JobSoftSkill{}
	}

	return c.JSON(models.JobDetailResponse{
		ID:           job.ID.String(),
		Title:        job.Title,
		Source:       string(job.Source),
		Status:       string(job.Status),
		ParsedData:   jsonOrNil(job.ParsedSummary),
		Requirements: requirements,
		SoftSkills:   softSkills,
		CreatedAt:    job.CreatedAt,
		UpdatedAt:    job.UpdatedAt,
	})
}

// HandleDelete handles DELETE /jobs/:id.
func (h *JobHandler) HandleDelete(c *fiber.Ctx) error {
	caller := AuthFromContext(c)

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "job_not_found",
		})
	}

	if err := h.jobs.SoftDelete(c.Context(), id, caller.UserID); err != nil {
		if err == models.ErrNotFound {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "job_not_found",
			})
		}
		h.logger.Error("failed to delete job", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal_error",
		})
	}

	return c.SendStatus(fiber.StatusNoContent)
}
