package model

// StepKind enumerates the fixed vocabulary of step kinds.
type StepKind string

const (
	StepAction       StepKind = "action"
	StepNotification StepKind = "notification"
	StepApproval     StepKind = "approval"
)

// Operator is a comparison operator used by conditions.
type Operator string

const (
	OpEq       Operator = "eq"
	OpGt       Operator = "gt"
	OpLt       Operator = "lt"
	OpContains Operator = "contains"
)

// ConditionKind selects what a condition is evaluated against.
type ConditionKind string

const (
	// ConditionTime compares minutes elapsed since the instance started.
	ConditionTime ConditionKind = "time"
	// ConditionPredictedValue compares a numeric field from the data bag,
	// typically populated by an external prediction source.
	ConditionPredictedValue ConditionKind = "predictedValue"
	// ConditionExternalFlag compares an arbitrary flag from the data bag.
	ConditionExternalFlag ConditionKind = "externalFlag"
)

// Condition is a pure predicate over an instance's data bag.  Conditions on
// a step are AND-combined; an empty list evaluates to true.
type Condition struct {
	Kind     ConditionKind `json:"kind" yaml:"kind"`
	Operator Operator      `json:"operator" yaml:"operator"`
	Field    string        `json:"field,omitempty" yaml:"field,omitempty"`
	Value    interface{}   `json:"value,omitempty" yaml:"value,omitempty"`
}

// EscalationAction enumerates what happens when an escalation timer fires
// against a still-pending approval step.
type EscalationAction string

const (
	EscalationNotify      EscalationAction = "notify"
	EscalationAutoApprove EscalationAction = "autoApprove"
	EscalationEscalateTo  EscalationAction = "escalateTo"
)

// EscalationRule arms an independent timer racing the step's own
// resolution.  Multiple rules per step are independent of each other.
type EscalationRule struct {
	AfterMinutes int              `json:"afterMinutes" yaml:"afterMinutes"`
	Action       EscalationAction `json:"action" yaml:"action"`
	// Target identifies the notification recipient for EscalationNotify.
	Target string `json:"target,omitempty" yaml:"target,omitempty"`
	// StepID names the successor step for EscalationEscalateTo.
	StepID  string `json:"stepId,omitempty" yaml:"stepId,omitempty"`
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
}

// ActionRef binds an action-kind step to a named handler registered with
// the executor.
type ActionRef struct {
	Name   string                 `json:"name" yaml:"name"`
	Params map[string]interface{} `json:"params,omitempty" yaml:"params,omitempty"`
}

// NotificationSpec configures a notification-kind step.
type NotificationSpec struct {
	Recipient string `json:"recipient" yaml:"recipient"`
	Template  string `json:"template,omitempty" yaml:"template,omitempty"`
	Channel   string `json:"channel,omitempty" yaml:"channel,omitempty"`
}

// StepSpec is one node of a template graph.  Branching is exclusive
// choice: on resolution exactly one of OnSuccess/OnFailure is followed,
// selected by the step's conditions.
type StepSpec struct {
	ID   string   `json:"id" yaml:"id"`
	Kind StepKind `json:"kind" yaml:"kind"`
	// Role names the party responsible for resolving the step.
	Role       string      `json:"role,omitempty" yaml:"role,omitempty"`
	Conditions []Condition `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	OnSuccess  string      `json:"onSuccess,omitempty" yaml:"onSuccess,omitempty"`
	OnFailure  string      `json:"onFailure,omitempty" yaml:"onFailure,omitempty"`
	// TimeoutMinutes, when positive on an approval step, arms a timer that
	// rejects the step if nobody resolved it in time.
	TimeoutMinutes int               `json:"timeoutMinutes,omitempty" yaml:"timeoutMinutes,omitempty"`
	Escalations    []EscalationRule  `json:"escalations,omitempty" yaml:"escalations,omitempty"`
	Action         *ActionRef        `json:"action,omitempty" yaml:"action,omitempty"`
	Notify         *NotificationSpec `json:"notify,omitempty" yaml:"notify,omitempty"`
}

// WithConditions sets the branch-selection conditions.
func (s *StepSpec) WithConditions(conditions ...Condition) *StepSpec {
	s.Conditions = append(s.Conditions, conditions...)
	return s
}

// WithSuccessors sets the exclusive-choice successors.
func (s *StepSpec) WithSuccessors(onSuccess, onFailure string) *StepSpec {
	s.OnSuccess = onSuccess
	s.OnFailure = onFailure
	return s
}

// WithTimeout sets the approval timeout in minutes.
func (s *StepSpec) WithTimeout(minutes int) *StepSpec {
	s.TimeoutMinutes = minutes
	return s
}

// WithEscalation appends an escalation rule.
func (s *StepSpec) WithEscalation(rule EscalationRule) *StepSpec {
	s.Escalations = append(s.Escalations, rule)
	return s
}

// WithAction binds a named handler to an action-kind step.
func (s *StepSpec) WithAction(name string, params map[string]interface{}) *StepSpec {
	s.Action = &ActionRef{Name: name, Params: params}
	return s
}

// WithNotify configures a notification-kind step.
func (s *StepSpec) WithNotify(recipient, template, channel string) *StepSpec {
	s.Notify = &NotificationSpec{Recipient: recipient, Template: template, Channel: channel}
	return s
}
