package queue

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"talentmatch/api/internal/models"
)

const (
	TaskParseResume  = "parse:resume"
	TaskParseJob     = "parse:job"
	TaskComputeMatch = "compute:match"
)

// Queue names. One asynq server is dedicated to each so concurrency can be
// tuned per queue.
const (
	QueueParseResume  = "parseResume"
	QueueParseJob     = "parseJob"
	QueueComputeMatch = "computeMatch"
)

// ParseResumePayload carries enough metadata that the worker can start the
// object fetch and NLP call without a DB round-trip.
type ParseResumePayload struct {
	ResumeID   uuid.UUID `json:"resumeId"`
	StorageKey string    `json:"storageKey"`
	Filename   string    `json:"filename"`
	MimeType   string    `json:"mimeType"`
	UserID     uuid.UUID `json:"userId"`
}

type ParseJobPayload struct {
	JobID      uuid.UUID        `json:"jobId"`
	Source     models.JobSource `json:"source"`
	StorageKey *string          `json:"storageKey,omitempty"`
	Filename   *string          `json:"filename,omitempty"`
	MimeType   string           `json:"mimeType"`
	RawText    *string          `json:"rawText,omitempty"`
	UserID     uuid.UUID        `json:"userId"`
	Title      string           `json:"title,omitempty"`
}

type ComputeMatchPayload struct {
	MatchJobID uuid.UUID `json:"matchJobId"`
	ResumeID   uuid.UUID `json:"resumeId"`
	JobID      uuid.UUID `json:"jobId"`
	UserID     uuid.UUID `json:"userId"`
}

func NewParseResumeTask(p ParseResumePayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal parse resume payload: %w", err)
	}
	return asynq.NewTask(TaskParseResume, payload), nil
}

func NewParseJobTask(p ParseJobPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal parse job payload: %w", err)
	}
	return asynq.NewTask(TaskParseJob, payload), nil
}

func NewComputeMatchTask(p ComputeMatchPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal compute match payload: %w", err)
	}
	return asynq.NewTask(TaskComputeMatch, payload), nil
}
