package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	TopicResumeStatusChanged = "resume.status.changed"
	TopicJobStatusChanged    = "job.status.changed"
	TopicMatchStatusChanged  = "match.status.changed"
)

// StatusEvent is published after a status column has been durably written.
type StatusEvent struct {
	ID     uuid.UUID `json:"id"`
	Status string    `json:"status"`
	TS     time.Time `json:"ts"`
}

type Handler func(StatusEvent)

// Bus is the process-wide in-memory publish/subscribe fabric for status
// events. Events are not durable; a missed event is reconstructed by polling
// the authoritative row.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]map[string]Handler
	logger *zap.Logger
}

func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		subs:   make(map[string]map[string]Handler),
		logger: logger,
	}
}

// Subscribe registers fn under tag for topic. Registering the same tag on
// the same topic again is a no-op, so boot code may run more than once
// without doubling deliveries. Returns false when the tag was already taken.
func (b *Bus) Subscribe(topic, tag string, fn Handler) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	handlers, ok := b.subs[topic]
	if !ok {
		handlers = make(map[string]Handler)
		b.subs[topic] = handlers
	}

	if _, exists := handlers[tag]; exists {
		b.logger.Debug("event bus: duplicate subscription ignored",
			zap.String("topic", topic),
			zap.String("tag", tag),
		)
		return false
	}

	handlers[tag] = fn
	return true
}

// Publish delivers ev to every subscriber of topic. Each subscriber runs on
// its own goroutine; a panicking subscriber never prevents the others from
// running.
func (b *Bus) Publish(topic string, ev StatusEvent) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[topic]))
	for _, fn := range b.subs[topic] {
		handlers = append(handlers, fn)
	}
	b.mu.RUnlock()

	for _, fn := range handlers {
		go b.dispatch(topic, fn, ev)
	}
}

func (b *Bus) dispatch(topic string, fn Handler, ev StatusEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event bus: subscriber panicked",
				zap.String("topic", topic),
				zap.String("id", ev.ID.String()),
				zap.Any("panic", r),
			)
		}
	}()

	fn(ev)
}
