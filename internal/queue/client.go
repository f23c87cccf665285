package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Enqueuer is the gateway controllers use to hand work to the queues.
// Keeping it an interface lets handler tests run without a broker.
type Enqueuer interface {
	EnqueueParseResume(ctx context.Context, p ParseResumePayload) error
	EnqueueParseJob(ctx context.Context, p ParseJobPayload) error
	EnqueueComputeMatch(ctx context.Context, p ComputeMatchPayload) error
}

type Client struct {
	client     *asynq.Client
	maxRetries int
	logger     *zap.Logger
}

// NewClient connects the single broker connection shared by all enqueues.
func NewClient(redisURL string, maxRetries int, logger *zap.Logger) (*Client, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	return &Client{
		client:     asynq.NewClient(opt),
		maxRetries: maxRetries,
		logger:     logger,
	}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) EnqueueParseResume(ctx context.Context, p ParseResumePayload) error {
	task, err := NewParseResumeTask(p)
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task, QueueParseResume, p.ResumeID.String())
}

func (c *Client) EnqueueParseJob(ctx context.Context, p ParseJobPayload) error {
	task, err := NewParseJobTask(p)
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task, QueueParseJob, p.JobID.String())
}

func (c *Client) EnqueueComputeMatch(ctx context.Context, p ComputeMatchPayload) error {
	task, err := NewComputeMatchTask(p)
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task, QueueComputeMatch, p.MatchJobID.String())
}

func (c *Client) enqueue(ctx context.Context, task *asynq.Task, queueName, entityID string) error {
	info, err := c.client.EnqueueContext(ctx, task,
		asynq.Queue(queueName),
		asynq.MaxRetry(c.maxRetries),
		asynq.Timeout(10*time.Minute),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", task.Type(), err)
	}

	c.logger.Debug("task enqueued",
		zap.String("type", task.Type()),
		zap.String("queue", queueName),
		zap.String("entity_id", entityID),
		zap.String("task_id", info.ID),
	)

	return nil
}
