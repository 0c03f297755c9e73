// Package cascade implements the fixed multi-level approval policy
// (coordinator / director / both) layered on top of the step engine.  A
// both-level request walks pending → approvedByCoordinator → approved;
// any rejection from a required role short-circuits straight to rejected.
package cascade

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/cascata-io/cascata/internal/clock"
	"github.com/cascata-io/cascata/internal/idgen"
	"github.com/cascata-io/cascata/service/dao"
	"github.com/cascata-io/cascata/service/dao/store"
	"github.com/cascata-io/cascata/service/messaging"
	qmem "github.com/cascata-io/cascata/service/messaging/memory"
)

var (
	// ErrRequestNotFound is returned for an unknown request id.
	ErrRequestNotFound = errors.New("approval request not found")

	// ErrAlreadyFinalized is returned when a request is acted on after
	// reaching a terminal state.
	ErrAlreadyFinalized = errors.New("approval request already finalized")

	// ErrRoleNotRequired is returned when the deciding role is not part
	// of the request's level.
	ErrRoleNotRequired = errors.New("role not required for this request")

	// ErrOutOfOrder is returned when the director approves a both-level
	// request before the coordinator.
	ErrOutOfOrder = errors.New("coordinator approval required first")

	// ErrDuplicateApproval is returned when a role approves the same
	// request twice.
	ErrDuplicateApproval = errors.New("role already approved this request")
)

// Handler executes the action bound to an approved request.
type Handler func(ctx context.Context, r *Request) error

// Service drives approval requests through the cascade state machine.
type Service struct {
	// mu serializes decisions so that concurrent approvers observe
	// first-decision-wins semantics.
	mu       sync.Mutex
	requests dao.Service[string, Request]
	events   messaging.Queue[Event]
	handlers map[string]Handler
	clock    clock.Clock
	log      *logrus.Logger
}

// Option customises the service.
type Option func(*Service)

// WithClock injects the time source.
func WithClock(clk clock.Clock) Option {
	return func(s *Service) { s.clock = clk }
}

// WithQueue replaces the default in-memory event queue.
func WithQueue(queue messaging.Queue[Event]) Option {
	return func(s *Service) { s.events = queue }
}

// WithLogger sets the logger.
func WithLogger(log *logrus.Logger) Option {
	return func(s *Service) { s.log = log }
}

// New creates the cascade controller.
func New(options ...Option) *Service {
	ret := &Service{
		requests: store.New[string, Request](func(r *Request) string { return r.ID }),
		handlers: make(map[string]Handler),
	}
	for _, option := range options {
		option(ret)
	}
	if ret.events == nil {
		ret.events = qmem.NewQueue[Event](qmem.DefaultConfig())
	}
	if ret.clock == nil {
		ret.clock = clock.System()
	}
	if ret.log == nil {
		ret.log = logrus.New()
	}
	return ret
}

// RegisterHandler binds an action name to the function executed when a
// request carrying that action is approved.
func (s *Service) RegisterHandler(action string, handler Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[action] = handler
}

// Create registers a new pending request.
func (s *Service) Create(ctx context.Context, r *Request) error {
	if r == nil {
		return fmt.Errorf("request is nil")
	}
	switch r.Level {
	case LevelCoordinator, LevelDirector, LevelBoth:
	default:
		return fmt.Errorf("unknown approval level %q", r.Level)
	}
	if r.ID == "" {
		r.ID = idgen.New()
	}
	r.State = StatePending
	r.CreatedAt = s.clock.Now()
	if err := s.requests.Save(ctx, r); err != nil {
		return err
	}
	s.publish(ctx, TopicRequestCreated, r)
	return nil
}

// Approve records an approval by the given role.
func (s *Service) Approve(ctx context.Context, id string, role Role, approver, comment string) (*Request, error) {
	return s.decide(ctx, id, role, approver, comment, true)
}

// Reject records a rejection by the given role; the request finalizes as
// rejected immediately, whatever its current state.
func (s *Service) Reject(ctx context.Context, id string, role Role, approver, comment string) (*Request, error) {
	return s.decide(ctx, id, role, approver, comment, false)
}

// Get returns the request.
func (s *Service) Get(ctx context.Context, id string) (*Request, error) {
	r, err := s.requests.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, fmt.Errorf("%w: %s", ErrRequestNotFound, id)
	}
	return r, nil
}

// ListPending returns all non-finalized requests.
func (s *Service) ListPending(ctx context.Context) ([]*Request, error) {
	return s.requests.List(ctx, func(r *Request) bool { return !r.Finalized() })
}

// Queue exposes the transition event queue.
func (s *Service) Queue() messaging.Queue[Event] { return s.events }

func (s *Service) decide(ctx context.Context, id string, role Role, approver, comment string, approved bool) (*Request, error) {
	s.mu.Lock()
	r, err := s.requests.Load(ctx, id)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if r == nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrRequestNotFound, id)
	}
	if r.Finalized() {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s is %s", ErrAlreadyFinalized, id, r.State)
	}
	if !required(r.Level, role) {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s on %s request", ErrRoleNotRequired, role, r.Level)
	}

	if approved {
		if err := s.advance(r, role); err != nil {
			s.mu.Unlock()
			return nil, err
		}
	} else {
		r.State = StateRejected
	}

	now := s.clock.Now()
	r.Approvals = append(r.Approvals, Approval{
		Approver:  approver,
		Role:      role,
		Approved:  approved,
		Comment:   comment,
		DecidedAt: now,
	})
	becameApproved := r.State == StateApproved
	if r.Finalized() {
		r.FinalizedAt = &now
	}
	_ = s.requests.Save(ctx, r)
	s.mu.Unlock()

	topic := TopicRequestUpdated
	if r.Finalized() {
		topic = TopicRequestFinalized
	}
	s.publish(ctx, topic, r)

	// The approved transition happens in exactly one decide call, so the
	// bound action runs exactly once.
	if becameApproved {
		s.runHandler(ctx, r)
	}
	return r, nil
}

// advance applies one approval to the state machine; caller holds the
// lock and has verified the request is not finalized.
func (s *Service) advance(r *Request, role Role) error {
	switch r.Level {
	case LevelCoordinator, LevelDirector:
		r.State = StateApproved
	case LevelBoth:
		switch r.State {
		case StatePending:
			if role == RoleDirector {
				return ErrOutOfOrder
			}
			r.State = StateApprovedByCoordinator
		case StateApprovedByCoordinator:
			if role == RoleCoordinator {
				return ErrDuplicateApproval
			}
			r.State = StateApproved
		}
	}
	return nil
}

// publish emits a transition event; publishing is best-effort and a
// full queue only logs a warning.
func (s *Service) publish(ctx context.Context, topic string, r *Request) {
	if err := s.events.Publish(ctx, &Event{Topic: topic, Request: r}); err != nil {
		s.log.WithFields(logrus.Fields{"topic": topic, "request": r.ID}).
			WithError(err).Warn("event dropped")
	}
}

func (s *Service) runHandler(ctx context.Context, r *Request) {
	if r.Action == "" {
		return
	}
	s.mu.Lock()
	handler := s.handlers[r.Action]
	s.mu.Unlock()
	if handler == nil {
		s.log.WithField("action", r.Action).Warn("no handler bound to approved request")
		return
	}
	if err := handler(ctx, r); err != nil {
		s.log.WithFields(logrus.Fields{"request": r.ID, "action": r.Action}).
			WithError(err).Error("approved action failed")
	}
}

func required(level Level, role Role) bool {
	switch level {
	case LevelCoordinator:
		return role == RoleCoordinator
	case LevelDirector:
		return role == RoleDirector
	case LevelBoth:
		return role == RoleCoordinator || role == RoleDirector
	}
	return false
}
