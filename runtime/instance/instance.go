// Package instance holds the mutable runtime state of a workflow: the
// Instance aggregate and its per-step StepState records.  All mutation goes
// through the instance store, which serializes writers per instance.
package instance

import (
	"fmt"
	"time"

	"github.com/cascata-io/cascata/model"
)

// Instance status constants.
const (
	StatusStarted    = "started"
	StatusInProgress = "inProgress"
	StatusApproved   = "approved"
	StatusRejected   = "rejected"
	StatusConcluded  = "concluded"
)

// Step status constants.
const (
	StepPending   = "pending"
	StepApproved  = "approved"
	StepRejected  = "rejected"
	StepConcluded = "concluded"
)

// ErrAlreadyResolved is returned when a step that already reached a
// terminal state is resolved again, the expected loser of the race
// between a human action and a fired timer.
var ErrAlreadyResolved = fmt.Errorf("step already resolved")

// ErrStepNotFound is returned when the referenced step does not exist in
// the instance.
var ErrStepNotFound = fmt.Errorf("step not found")

// StepState tracks one step of a live instance.  A resolved step is
// terminal and is never re-armed.
type StepState struct {
	SpecID string `json:"specId"`
	Status string `json:"status"`
	// Active marks the single step currently awaiting resolution.  A
	// pending step that was never activated is "not yet reached".
	Active     bool       `json:"active"`
	Comment    string     `json:"comment,omitempty"`
	ResolvedBy string     `json:"resolvedBy,omitempty"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
	// Escalated records that the step was closed by an escalateTo rule
	// rather than by its own approver.
	Escalated bool `json:"escalated,omitempty"`
}

// Resolved reports whether the step reached a terminal state.
func (s *StepState) Resolved() bool {
	return s.Status != StepPending
}

// Instance is a live execution of a template against concrete data.  It
// becomes immutable once terminal and is retained for audit queries.
type Instance struct {
	ID         string                 `json:"id"`
	TemplateID string                 `json:"templateId"`
	Template   *model.Template        `json:"-"`
	Requester  string                 `json:"requester"`
	Data       map[string]interface{} `json:"data,omitempty"`
	Steps      []*StepState           `json:"steps"`
	Status     string                 `json:"status"`
	CreatedAt  time.Time              `json:"createdAt"`
	UpdatedAt  time.Time              `json:"updatedAt"`
}

// Step returns the state of the given step id, or nil.
func (i *Instance) Step(specID string) *StepState {
	for _, s := range i.Steps {
		if s.SpecID == specID {
			return s
		}
	}
	return nil
}

// ActiveStep returns the single currently active step, or nil when the
// instance is parked between steps or terminal.
func (i *Instance) ActiveStep() *StepState {
	for _, s := range i.Steps {
		if s.Active {
			return s
		}
	}
	return nil
}

// Terminal reports whether the instance reached a final status.
func (i *Instance) Terminal() bool {
	switch i.Status {
	case StatusApproved, StatusRejected, StatusConcluded:
		return true
	}
	return false
}

// Activate transitions a not-yet-reached step to the active pending step.
// The engine advances one branch at a time, so at most one step may be
// active; activating while another step is active is a programming error
// surfaced as an error rather than a panic.
func (i *Instance) Activate(specID string, now time.Time) error {
	step := i.Step(specID)
	if step == nil {
		return fmt.Errorf("%w: %s", ErrStepNotFound, specID)
	}
	if step.Resolved() {
		return fmt.Errorf("%w: %s", ErrAlreadyResolved, specID)
	}
	if active := i.ActiveStep(); active != nil && active.SpecID != specID {
		return fmt.Errorf("step %s is still active", active.SpecID)
	}
	step.Active = true
	i.Status = StatusInProgress
	i.UpdatedAt = now
	return nil
}

// Resolve records a terminal outcome for a step.  Resolving an already
// resolved step is a no-op that signals ErrAlreadyResolved, guarding
// against the race between a human action and a fired timer.
func (i *Instance) Resolve(specID, outcome, by, comment string, now time.Time) error {
	step := i.Step(specID)
	if step == nil {
		return fmt.Errorf("%w: %s", ErrStepNotFound, specID)
	}
	if step.Resolved() {
		return fmt.Errorf("%w: %s", ErrAlreadyResolved, specID)
	}
	step.Status = outcome
	step.Active = false
	step.Comment = comment
	step.ResolvedBy = by
	resolvedAt := now
	step.ResolvedAt = &resolvedAt
	i.UpdatedAt = now
	return nil
}

// Clone returns a deep copy safe to hand out as a read-only projection.
func (i *Instance) Clone() *Instance {
	out := *i
	out.Steps = make([]*StepState, len(i.Steps))
	for idx, s := range i.Steps {
		step := *s
		if s.ResolvedAt != nil {
			at := *s.ResolvedAt
			step.ResolvedAt = &at
		}
		out.Steps[idx] = &step
	}
	out.Data = make(map[string]interface{}, len(i.Data))
	for k, v := range i.Data {
		out.Data[k] = v
	}
	return &out
}
