package cascade

import "time"

// Level is the approval level a request demands.
type Level string

const (
	LevelCoordinator Level = "coordinator"
	LevelDirector    Level = "director"
	LevelBoth        Level = "both"
)

// Role identifies the party recording a decision.
type Role string

const (
	RoleCoordinator Role = "coordinator"
	RoleDirector    Role = "director"
)

// Request states.
const (
	StatePending               = "pending"
	StateApprovedByCoordinator = "approvedByCoordinator"
	StateApproved              = "approved"
	StateRejected              = "rejected"
)

// Approval records one decision on a request.
type Approval struct {
	Approver  string    `json:"approver"`
	Role      Role      `json:"role"`
	Approved  bool      `json:"approved"`
	Comment   string    `json:"comment,omitempty"`
	DecidedAt time.Time `json:"decidedAt"`
}

// Request is a multi-level approval request.  It reaches StateApproved
// only when every required level has approved; a single rejection at any
// required level finalizes it as StateRejected immediately.
type Request struct {
	ID      string `json:"id"`
	Subject string `json:"subject,omitempty"`
	// Action names the handler invoked exactly once when the request is
	// approved.
	Action string `json:"action,omitempty"`
	// InstanceID links the request to a workflow instance, when any.
	InstanceID  string                 `json:"instanceId,omitempty"`
	Level       Level                  `json:"level"`
	State       string                 `json:"state"`
	Approvals   []Approval             `json:"approvals,omitempty"`
	Meta        map[string]interface{} `json:"meta,omitempty"`
	CreatedAt   time.Time              `json:"createdAt"`
	FinalizedAt *time.Time             `json:"finalizedAt,omitempty"`
}

// Finalized reports whether the request reached a terminal state.
func (r *Request) Finalized() bool {
	return r.State == StateApproved || r.State == StateRejected
}

// Event envelope published on every request transition.
type Event struct {
	Topic   string   `json:"topic"`
	Request *Request `json:"request"`
}

// Event topics.
const (
	TopicRequestCreated   = "request.created"
	TopicRequestUpdated   = "request.updated"
	TopicRequestFinalized = "request.finalized"
)
