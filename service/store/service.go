// Package store owns all live workflow instances.  Every mutation of an
// instance goes through Update, which serializes writers per instance:
// human actions and fired timers are concurrent producers, but each
// instance only ever sees one of them at a time.
package store

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cascata-io/cascata/internal/clock"
	"github.com/cascata-io/cascata/internal/idgen"
	"github.com/cascata-io/cascata/model"
	"github.com/cascata-io/cascata/runtime/instance"
)

// ErrInstanceNotFound is returned when the referenced instance does not
// exist.
var ErrInstanceNotFound = errors.New("instance not found")

// Filter narrows List results.
type Filter struct {
	// Status matches the instance's overall status when non-empty.
	Status string
	// Role matches instances whose currently active step is owned by the
	// given role.
	Role string
}

type entry struct {
	mu   sync.Mutex
	inst *instance.Instance
}

// Service is the in-memory instance table.
type Service struct {
	mu      sync.RWMutex
	entries map[string]*entry
	clock   clock.Clock
}

// Option customises the store.
type Option func(*Service)

// WithClock injects the time source used for created/updated stamps.
func WithClock(clk clock.Clock) Option {
	return func(s *Service) { s.clock = clk }
}

// New creates an empty instance store.
func New(options ...Option) *Service {
	ret := &Service{entries: make(map[string]*entry)}
	for _, option := range options {
		option(ret)
	}
	if ret.clock == nil {
		ret.clock = clock.System()
	}
	return ret
}

// Create materializes a new instance from a template: one StepState per
// StepSpec, all pending and none active, overall status started.
func (s *Service) Create(template *model.Template, data map[string]interface{}, requester string) (*instance.Instance, error) {
	if template == nil {
		return nil, fmt.Errorf("template is nil")
	}
	now := s.clock.Now()
	inst := &instance.Instance{
		ID:         idgen.New(),
		TemplateID: template.ID,
		Template:   template,
		Requester:  requester,
		Data:       data,
		Status:     instance.StatusStarted,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if inst.Data == nil {
		inst.Data = map[string]interface{}{}
	}
	for _, spec := range template.Steps {
		inst.Steps = append(inst.Steps, &instance.StepState{
			SpecID: spec.ID,
			Status: instance.StepPending,
		})
	}
	s.mu.Lock()
	s.entries[inst.ID] = &entry{inst: inst}
	s.mu.Unlock()
	return inst.Clone(), nil
}

// Get returns a read-only projection of the instance.
func (s *Service) Get(id string) (*instance.Instance, error) {
	e, err := s.entry(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inst.Clone(), nil
}

// List returns projections of all instances accepted by the filter.
func (s *Service) List(filter Filter) []*instance.Instance {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	var out []*instance.Instance
	for _, e := range entries {
		e.mu.Lock()
		inst := e.inst
		match := true
		if filter.Status != "" && inst.Status != filter.Status {
			match = false
		}
		if match && filter.Role != "" {
			match = false
			if active := inst.ActiveStep(); active != nil && inst.Template != nil {
				if spec := inst.Template.Step(active.SpecID); spec != nil && spec.Role == filter.Role {
					match = true
				}
			}
		}
		if match {
			out = append(out, inst.Clone())
		}
		e.mu.Unlock()
	}
	return out
}

// Update runs fn against the live instance while holding its lock.  All
// check-then-act sequences (resolution races, timer no-op checks) happen
// inside fn under this serialization.
func (s *Service) Update(id string, fn func(*instance.Instance) error) error {
	e, err := s.entry(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.inst)
}

func (s *Service) entry(id string) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInstanceNotFound, id)
	}
	return e, nil
}
