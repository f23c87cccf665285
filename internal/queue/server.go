package queue

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Handlers binds each task type to its worker.
type Handlers struct {
	ParseResume  asynq.HandlerFunc
	ParseJob     asynq.HandlerFunc
	ComputeMatch asynq.HandlerFunc
}

// Servers runs one asynq server per queue. asynq's concurrency setting is
// per server, so a server per queue is what gives each queue its own worker
// slot count.
type Servers struct {
	servers []*asynq.Server
	logger  *zap.Logger
}

type ServerOptions struct {
	RedisURL               string
	ParseResumeConcurrency int
	ParseJobConcurrency    int
	MatchConcurrency       int
}

func NewServers(opts ServerOptions, handlers Handlers, logger *zap.Logger) (*Servers, error) {
	redisOpt, err := asynq.ParseRedisURI(opts.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	specs := []struct {
		queue       string
		concurrency int
		taskType    string
		handler     asynq.HandlerFunc
	}{
		{QueueParseResume, orDefault(opts.ParseResumeConcurrency, 1), TaskParseResume, handlers.ParseResume},
		{QueueParseJob, orDefault(opts.ParseJobConcurrency, 1), TaskParseJob, handlers.ParseJob},
		{QueueComputeMatch, orDefault(opts.MatchConcurrency, 2), TaskComputeMatch, handlers.ComputeMatch},
	}

	s := &Servers{logger: logger}
	for _, spec := range specs {
		srv := asynq.NewServer(redisOpt, asynq.Config{
			Concurrency: spec.concurrency,
			Queues:      map[string]int{spec.queue: 1},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Warn("task failed",
					zap.String("type", task.Type()),
					zap.Error(err),
				)
			}),
		})

		mux := asynq.NewServeMux()
		mux.HandleFunc(spec.taskType, spec.handler)

		s.servers = append(s.servers, srv)
		if err := srv.Start(mux); err != nil {
			s.Shutdown()
			return nil, fmt.Errorf("failed to start %s consumer: %w", spec.queue, err)
		}

		logger.Info("queue consumer started",
			zap.String("queue", spec.queue),
			zap.Int("concurrency", spec.concurrency),
		)
	}

	return s, nil
}

// Shutdown waits for in-flight tasks before returning. Safe to call more
// than once.
func (s *Servers) Shutdown() {
	for _, srv := range s.servers {
		srv.Shutdown()
	}
	s.servers = nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
