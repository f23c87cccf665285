package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"talentmatch/api/internal/models"
	"talentmatch/api/internal/queue"
	"talentmatch/api/internal/repositories"
)

// MatchComputer consumes the computeMatch queue: read both parsed entities,
// call the NLP matcher, persist the enriched result, and attach it to the
// match job.
type MatchComputer struct {
	matches repositories.MatchRepository
	resumes repositories.ResumeRepository
	jobs    repositories.JobRepository
	nlp     NLPService
	logger  *zap.Logger
}

func NewMatchComputer(
	matches repositories.MatchRepository,
	resumes repositories.ResumeRepository,
	jobs repositories.JobRepository,
	nlp NLPService,
	logger *zap.Logger,
) *MatchComputer {
	return &MatchComputer{
		matches: matches,
		resumes: resumes,
		jobs:    jobs,
		nlp:     nlp,
		logger:  logger,
	}
}

func (m *MatchComputer) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.ComputeMatchPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal compute match payload: %w", err)
	}

	log := m.logger.With(zap.String("match_job_id", payload.MatchJobID.String()))

	err := m.matches.UpdateStatus(ctx, payload.MatchJobID, models.MatchRunning)
	if errors.Is(err, models.ErrNotFound) {
		log.Info("match job gone before processing, skipping")
		return nil
	}
	if err != nil {
		return err
	}

	resume, err := m.resumes.GetForUser(ctx, payload.ResumeID, payload.UserID)
	if err != nil {
		return m.fail(ctx, payload.MatchJobID, log, err)
	}
	if resume == nil {
		return m.fail(ctx, payload.MatchJobID, log, fmt.Errorf("resume %s no longer available", payload.ResumeID))
	}

	job, err := m.jobs.GetForUser(ctx, payload.JobID, payload.UserID)
	if err != nil {
		return m.fail(ctx, payload.MatchJobID, log, err)
	}
	if job == nil {
		return m.fail(ctx, payload.MatchJobID, log, fmt.Errorf("job %s no longer available", payload.JobID))
	}

	candidateSkills := make([]CandidateSkillPayload, 0, len(resume.Skills))
	for _, s := range resume.Skills {
		candidateSkills = append(candidateSkills, CandidateSkillPayload{
			Skill:           s.Skill,
			ExperienceYears: s.ExperienceYears,
			Proficiency:     s.Proficiency,
		})
	}

	requirements := make([]RequirementPayload, 0, len(job.Requirements))
	for _, r := range job.Requirements {
		requirements = append(requirements, RequirementPayload{
			Skill:      r.Skill,
			Importance: ClampImportance(r.Importance),
			Inferred:   r.Inferred,
		})
	}

	resp, err := m.nlp.ComputeMatch(ctx, MatchRequest{
		CandidateSkills: candidateSkills,
		Requirements:    requirements,
	})
	if err != nil {
		return m.fail(ctx, payload.MatchJobID, log, fmt.Errorf("match computation failed: %w", err))
	}

	summary := BuildMatchSummary(resp, extractProfile(resume.ParsedSummary), resume.Skills, requirements)
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return m.fail(ctx, payload.MatchJobID, log, fmt.Errorf("failed to marshal match summary: %w", err))
	}

	result := &models.MatchResult{
		ID:        uuid.New(),
		UserID:    payload.UserID,
		ResumeID:  payload.ResumeID,
		JobID:     payload.JobID,
		Score:     summary.OverallMatchScore,
		Summary:   datatypes.JSON(summaryJSON),
		CreatedAt: time.Now(),
	}
	if err := m.matches.CreateResult(ctx, result); err != nil {
		return m.fail(ctx, payload.MatchJobID, log, err)
	}

	if err := m.matches.Complete(ctx, payload.MatchJobID, result.ID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			log.Info("match job vanished before completion, dropping result")
			return nil
		}
		return err
	}

	log.Info("match computed", zap.Float64("score", summary.OverallMatchScore))
	return nil
}

func (m *MatchComputer) fail(ctx context.Context, id uuid.UUID, log *zap.Logger, cause error) error {
	log.Warn("match computation failed", zap.Error(cause))

	if err := m.matches.Fail(ctx, id, cause.Error()); err != nil && !errors.Is(err, models.ErrNotFound) {
		log.Error("failed to record match failure", zap.Error(err))
	}

	return cause
}

// extractProfile pulls the profile block out of a résumé's parsed summary.
func extractProfile(parsedSummary datatypes.JSON) json.RawMessage {
	if len(parsedSummary) == 0 {
		return nil
	}

	var envelope struct {
		Profile json.RawMessage `json:"profile"`
	}
	if err := json.Unmarshal(parsedSummary, &envelope); err != nil {
		return nil
	}

	return envelope.Profile
}
