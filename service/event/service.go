// Package event publishes engine lifecycle transitions to a messaging
// queue so that gateways and audit sinks can observe progress without
// polling the instance store.
package event

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cascata-io/cascata/service/messaging"
	qmem "github.com/cascata-io/cascata/service/messaging/memory"
)

// Service fans engine events out to a queue.  Publishing is best-effort: a
// full queue is logged and dropped, never blocking the state machine.
type Service struct {
	queue messaging.Queue[Event]
	log   *logrus.Logger
}

// Option customises the event service.
type Option func(*Service)

// WithQueue replaces the default in-memory queue.
func WithQueue(queue messaging.Queue[Event]) Option {
	return func(s *Service) { s.queue = queue }
}

// WithLogger sets the logger.
func WithLogger(log *logrus.Logger) Option {
	return func(s *Service) { s.log = log }
}

// New creates an event service backed by an in-memory queue by default.
func New(options ...Option) *Service {
	ret := &Service{}
	for _, option := range options {
		option(ret)
	}
	if ret.queue == nil {
		ret.queue = qmem.NewQueue[Event](qmem.DefaultConfig())
	}
	if ret.log == nil {
		ret.log = logrus.New()
	}
	return ret
}

// Publish stamps and emits an event.
func (s *Service) Publish(ctx context.Context, e *Event) {
	if e == nil {
		return
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	if err := s.queue.Publish(ctx, e); err != nil {
		s.log.WithFields(logrus.Fields{
			"topic":    e.Topic,
			"instance": e.InstanceID,
		}).WithError(err).Warn("event dropped")
	}
}

// Queue exposes the underlying queue for consumers.
func (s *Service) Queue() messaging.Queue[Event] { return s.queue }
