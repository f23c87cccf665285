package handlers

import (
	"encoding/json"
	"io"
	"mime/multipart"
	"path/filepath"
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

var allowedMimeTypes = map[string]struct{}{
	"application/pdf":    {},
	"application/msword": {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
	"text/plain": {},
}

var extensionMimeTypes = map[string]string{
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".txt":  "text/plain",
}

type ResumeHandler struct {
	resumes     repositories.ResumeRepository
	storage     services.StorageService
	enqueuer    queue.Enqueuer
	maxFileSize int64
	logger      *zap.Logger
}

func NewResumeHandler(
	resumes repositories.ResumeRepository,
	storage services.StorageService,
	enqueuer queue.Enqueuer,
	maxFileSize int64,
	logger *zap.Logger,
) *ResumeHandler {
	return &ResumeHandler{
		resumes:     resumes,
		storage:     storage,
		enqueuer:    enqueuer,
		maxFileSize: maxFileSize,
		logger:      logger,
	}
}

// HandleUpload handles POST /resumes.
func (h *ResumeHandler) HandleUpload(c *fiber.Ctx) error {
	caller := AuthFromContext(c)

	file, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "file_required",
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

	now := time.Now()
	resume := &models.Resume{
		ID:         uuid.New(),
		UserID:     caller.UserID,
		Filename:   file.Filename,
		MimeType:   mimeType,
		StorageKey: services.ObjectKey("resumes", file.Filename, mimeType),
		Status:     models.StatusQueued,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := h.resumes.Create(c.Context(), resume); err != nil {
		h.logger.Error("failed to create resume row", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal_error",
		})
	}

	if err := h.storage.PutObject(c.Context(), resume.StorageKey, data, mimeType); err != nil {
		h.logger.Error("failed to store resume bytes",
			zap.String("resume_id", resume.ID.String()),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "storage_failed",
		})
	}

	err = h.enqueuer.EnqueueParseResume(c.Context(), queue.ParseResumePayload{
		ResumeID:   resume.ID,
		StorageKey: resume.StorageKey,
		Filename:   resume.Filename,
		MimeType:   resume.MimeType,
		UserID:     caller.UserID,
	})
	if err != nil {
		// The row stays queued; operational recovery picks it up.
		h.logger.Error("failed to enqueue resume parse",
			zap.String("resume_id", resume.ID.String()),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "enqueue_failed",
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(models.CreatedResponse{
		ID:     resume.ID.String(),
		Status: string(models.StatusQueued),
	})
}

// HandleList handles GET /resumes.
func (h *ResumeHandler) HandleList(c *fiber.Ctx) error {
	caller := AuthFromContext(c)

	resumes, err := h.resumes.ListForUser(c.Context(), caller.UserID)
	if err != nil {
		h.logger.Error("failed to list resumes", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal_error",
		})
	}

	items := make([]models.ResumeListItem, 0, len(resumes))
	for _, r := range resumes {
		items = append(items, models.ResumeListItem{
			ID:        r.ID.String(),
			Filename:  r.Filename,
			MimeType:  r.MimeType,
			Status:    string(r.Status),
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
		})
	}

	return c.JSON(items)
}

// HandleGet handles GET /resumes/:id.
func (h *ResumeHandler) HandleGet(c *fiber.Ctx) error {
	caller := AuthFromContext(c)

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "resume_not_found",
		})
	}

	resume, err := h.resumes.GetForUser(c.Context(), id, caller.UserID)
	if err != nil {
		h.logger.Error("failed to get resume", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal_error",
		})
	}
	if resume == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "resume_not_found",
		})
	}

	skills := resume.Skills
	if skills == nil {
		skills = []models.CandidateSkill{}
	}

	return c.JSON(models.ResumeDetailResponse{
		ID:         resume.ID.String(),
		Status:     string(resume.Status),
		Filename:   resume.Filename,
		MimeType:   resume.MimeType,
		ParsedData: jsonOrNil(resume.ParsedSummary),
		Skills:     skills,
		CreatedAt:  resume.CreatedAt,
		UpdatedAt:  resume.UpdatedAt,
	})
}

// HandleDelete handles DELETE /resumes/:id.
func (h *ResumeHandler) HandleDelete(c *fiber.Ctx) error {
	caller := AuthFromContext(c)

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "resume_not_found",
		})
	}

	if err := h.resumes.SoftDelete(c.Context(), id, caller.UserID); err != nil {
		if err == models.ErrNotFound {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "resume_not_found",
			})
		}
		h.logger.Error("failed to delete resume", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal_error",
		})
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func resolveMimeType(file *multipart.FileHeader) string {
	declared := strings.ToLower(strings.TrimSpace(strings.Split(file.Header.Get("Content-Type"), ";")[0]))
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if mime, ok := extensionMimeTypes[strings.ToLower(filepath.Ext(file.Filename))]; ok {
		return mime
	}
	return declared
}

func jsonOrNil(raw []byte) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	return json.RawMessage(raw)
}

func readMultipartFile(file *multipart.FileHeader) ([]byte, error) {
	src, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	return io.ReadAll(src)
}
