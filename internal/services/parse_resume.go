package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"talentmatch/api/internal/models"
	"talentmatch/api/internal/queue"
	"talentmatch/api/internal/repositories"
)

// ResumeParser consumes the parseResume queue: fetch the stored bytes, send
// them to the NLP collaborator, replace the derived skill rows, and move the
// résumé to ready.
type ResumeParser struct {
	resumes repositories.ResumeRepository
	storage StorageService
	nlp     NLPService
	logger  *zap.Logger
}

func NewResumeParser(
	resumes repositories.ResumeRepository,
	storage StorageService,
	nlp NLPService,
	logger *zap.Logger,
) *ResumeParser {
	return &ResumeParser{
		resumes: resumes,
		storage: storage,
		nlp:     nlp,
		logger:  logger,
	}
}

func (p *ResumeParser) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.ParseResumePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal parse resume payload: %w", err)
	}

	log := p.logger.With(zap.String("resume_id", payload.ResumeID.String()))

	err := p.resumes.UpdateStatus(ctx, payload.ResumeID, models.StatusProcessing, nil)
	if errors.Is(err, models.ErrNotFound) {
		// Deleted (or never committed) between enqueue and consume; nothing
		// to do and nothing to retry.
		log.Info("resume gone before processing, skipping")
		return nil
	}
	if err != nil {
		return err
	}

	data, err := p.storage.GetObjectBytes(ctx, payload.StorageKey)
	if err != nil {
		return p.fail(ctx, payload.ResumeID, log, fmt.Errorf("failed to fetch resume bytes: %w", err))
	}

	parsed, err := p.nlp.ParseResume(ctx, ParseResumeRequest{
		Filename:   payload.Filename,
		MimeType:   payload.MimeType,
		ContentB64: base64.StdEncoding.EncodeToString(data),
	})
	if err != nil {
		return p.fail(ctx, payload.ResumeID, log, fmt.Errorf("resume parse failed: %w", err))
	}

	skills := make([]models.CandidateSkill, 0, len(parsed.Skills))
	for _, s := range parsed.Skills {
		skills = append(skills, models.CandidateSkill{
			Skill:           s.Skill,
			ExperienceYears: s.ExperienceYears,
			Proficiency:     s.Proficiency,
		})
	}

	if err := p.resumes.ReplaceSkills(ctx, payload.ResumeID, skills); err != nil {
		return p.fail(ctx, payload.ResumeID, log, err)
	}

	summary, err := json.Marshal(map[string]json.RawMessage{
		"sections":   rawOrNull(parsed.Sections),
		"profile":    rawOrNull(parsed.Profile),
		"statistics": rawOrNull(parsed.Statistics),
	})
	if err != nil {
		return p.fail(ctx, payload.ResumeID, log, fmt.Errorf("failed to marshal parsed summary: %w", err))
	}

	if err := p.resumes.UpdateStatus(ctx, payload.ResumeID, models.StatusReady, datatypes.JSON(summary)); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Soft-deleted while we were parsing; the silent zero-row update
			// is the documented outcome.
			log.Info("resume deleted during parse, dropping result")
			return nil
		}
		return err
	}

	log.Info("resume parsed", zap.Int("skills", len(skills)))
	return nil
}

// fail records the error on the row and rethrows so the queue counts the
// failure and applies its retry policy.
func (p *ResumeParser) fail(ctx context.Context, id uuid.UUID, log *zap.Logger, cause error) error {
	log.Warn("resume parse failed", zap.Error(cause))

	msg, _ := json.Marshal(map[string]string{"message": cause.Error()})
	if err := p.resumes.UpdateStatus(ctx, id, models.StatusError, datatypes.JSON(msg)); err != nil && !errors.Is(err, models.ErrNotFound) {
		log.Error("failed to record resume error state", zap.Error(err))
	}

	return cause
}

func rawOrNull(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("null")
	}
	return raw
}
