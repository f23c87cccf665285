package realtime

import (
	"context"
	"time"

	"go.uber.org/zap"

	"talentmatch/api/internal/events"
	"talentmatch/api/internal/repositories"
)

// Subscription tags. The bus ignores a second registration under the same
// tag, which keeps repeated boot runs from doubling deliveries.
const (
	tagResumeListener = "realtime:resume"
	tagJobListener    = "realtime:job"
	tagMatchListener  = "realtime:match"
)

const readTimeout = 10 * time.Second

// Bridge translates bus events into targeted room pushes. For every event it
// re-reads the authoritative row joined with the owner's external subject;
// events whose row or subject has vanished are dropped silently.
type Bridge struct {
	bus     *events.Bus
	hub     *Hub
	resumes repositories.ResumeRepository
	jobs    repositories.JobRepository
	matches repositories.MatchRepository
	logger  *zap.Logger
}

func NewBridge(
	bus *events.Bus,
	hub *Hub,
	resumes repositories.ResumeRepository,
	jobs repositories.JobRepository,
	matches repositories.MatchRepository,
	logger *zap.Logger,
) *Bridge {
	return &Bridge{
		bus:     bus,
		hub:     hub,
		resumes: resumes,
		jobs:    jobs,
		matches: matches,
		logger:  logger,
	}
}

// Register subscribes the three listeners. Safe to call more than once.
func (b *Bridge) Register() {
	b.bus.Subscribe(events.TopicResumeStatusChanged, tagResumeListener, b.onResumeStatus)
	b.bus.Subscribe(events.TopicJobStatusChanged, tagJobListener, b.onJobStatus)
	b.bus.Subscribe(events.TopicMatchStatusChanged, tagMatchListener, b.onMatchStatus)
}

func (b *Bridge) onResumeStatus(ev events.StatusEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), readTimeout)
	defer cancel()

	resume, subject, err := b.resumes.FindWithSubject(ctx, ev.ID)
	if err != nil {
		b.logger.Warn("realtime: resume lookup failed", zap.Error(err))
		return
	}
	if resume == nil || subject == "" {
		return
	}

	b.hub.Emit(Room(subject), "resume:update", map[string]interface{}{
		"id":        resume.ID.String(),
		"status":    string(resume.Status),
		"createdAt": resume.CreatedAt,
		"updatedAt": resume.UpdatedAt,
	})
}

func (b *Bridge) onJobStatus(ev events.StatusEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), readTimeout)
	defer cancel()

	job, subject, err := b.jobs.FindWithSubject(ctx, ev.ID)
	if err != nil {
		b.logger.Warn("realtime: job lookup failed", zap.Error(err))
		return
	}
	if job == nil || subject == "" {
		return
	}

	b.hub.Emit(Room(subject), "job:update", map[string]interface{}{
		"id":        job.ID.String(),
		"title":     job.Title,
		"status":    string(job.Status),
		"createdAt": job.CreatedAt,
		"updatedAt": job.UpdatedAt,
	})
}

func (b *Bridge) onMatchStatus(ev events.StatusEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), readTimeout)
	defer cancel()

	match, subject, err := b.matches.FindWithSubject(ctx, ev.ID)
	if err != nil {
		b.logger.Warn("realtime: match lookup failed", zap.Error(err))
		return
	}
	if match == nil || subject == "" {
		return
	}

	b.hub.Emit(Room(subject), "match:update", map[string]interface{}{
		"id":        match.ID.String(),
		"status":    string(match.Status),
		"createdAt": match.CreatedAt,
		"updatedAt": match.UpdatedAt,
	})
}

// Room builds the room key for an external subject. Websocket sessions
// authenticate with the external token, so the subject, not the internal
// user id, names the room.
func Room(subject string) string {
	return "user:" + subject
}
