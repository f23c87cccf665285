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

// JobParser consumes the parseJob queue. Text-sourced jobs skip the object
// fetch and ship the raw text; file-sourced jobs go through storage like
// résumés do.
type JobParser struct {
	jobs    repositories.JobRepository
	storage StorageService
	nlp     NLPService
	logger  *zap.Logger
}

func NewJobParser(
	jobs repositories.JobRepository,
	storage StorageService,
	nlp NLPService,
	logger *zap.Logger,
) *JobParser {
	return &JobParser{
		jobs:    jobs,
		storage: storage,
		nlp:     nlp,
		logger:  logger,
	}
}

func (p *JobParser) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.ParseJobPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal parse job payload: %w", err)
	}

	log := p.logger.With(zap.String("job_id", payload.JobID.String()))

	err := p.jobs.UpdateStatus(ctx, payload.JobID, models.StatusProcessing, nil)
	if errors.Is(err, models.ErrNotFound) {
		log.Info("job gone before processing, skipping")
		return nil
	}
	if err != nil {
		return err
	}

	req, err := p.buildParseRequest(ctx, payload)
	if err != nil {
		return p.fail(ctx, payload.JobID, log, err)
	}

	parsed, err := p.nlp.ParseJob(ctx, *req)
	if err != nil {
		return p.fail(ctx, payload.JobID, log, fmt.Errorf("job parse failed: %w", err))
	}

	requirements := make([]models.Requirement, 0, len(parsed.Requirements))
	for _, r := range parsed.Requirements {
		requirements = append(requirements, models.Requirement{
			Skill:      r.Skill,
			Importance: ClampImportance(r.Importance),
			Inferred:   r.Inferred,
		})
	}

	softSkills := make([]models.JobSoftSkill, 0, len(parsed.SoftSkills))
	for _, s := range parsed.SoftSkills {
		softSkills = append(softSkills, models.JobSoftSkill{
			Skill: s.Skill,
			Value: s.Value,
		})
	}

	if err := p.jobs.ReplaceChildren(ctx, payload.JobID, requirements, softSkills); err != nil {
		return p.fail(ctx, payload.JobID, log, err)
	}

	summary, err := json.Marshal(map[string]json.RawMessage{
		"highlights": rawOrNull(parsed.Highlights),
		"overview":   rawOrNull(parsed.Summary),
		"onet":       rawOrNull(parsed.Onet),
	})
	if err != nil {
		return p.fail(ctx, payload.JobID, log, fmt.Errorf("failed to marshal parsed summary: %w", err))
	}

	if err := p.jobs.UpdateStatus(ctx, payload.JobID, models.StatusReady, datatypes.JSON(summary)); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			log.Info("job deleted during parse, dropping result")
			return nil
		}
		return err
	}

	log.Info("job parsed",
		zap.Int("requirements", len(requirements)),
		zap.Int("soft_skills", len(softSkills)),
	)
	return nil
}

func (p *JobParser) buildParseRequest(ctx context.Context, payload queue.ParseJobPayload) (*ParseJobRequest, error) {
	if payload.Source == models.JobSourceText {
		if payload.RawText == nil {
			return nil, fmt.Errorf("text job %s has no raw text", payload.JobID)
		}
		return &ParseJobRequest{Text: payload.RawText}, nil
	}

	if payload.StorageKey == nil {
		return nil, fmt.Errorf("file job %s has no storage key", payload.JobID)
	}

	data, err := p.storage.GetObjectBytes(ctx, *payload.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch job bytes: %w", err)
	}

	content := base64.StdEncoding.EncodeToString(data)
	return &ParseJobRequest{
		Filename:   payload.Filename,
		MimeType:   payload.MimeType,
		ContentB64: &content,
	}, nil
}

func (p *JobParser) fail(ctx context.Context, id uuid.UUID, log *zap.Logger, cause error) error {
	log.Warn("job parse failed", zap.Error(cause))

	msg, _ := json.Marshal(map[string]string{"message": cause.Error()})
	if err := p.jobs.UpdateStatus(ctx, id, models.StatusError, datatypes.JSON(msg)); err != nil && !errors.Is(err, models.ErrNotFound) {
		log.Error("failed to record job error state", zap.Error(err))
	}

	return cause
}
