package event

import "time"

// Standard engine lifecycle topics.
const (
	TopicInstanceStarted  = "instance.started"
	TopicInstanceFinished = "instance.finished"
	TopicStepActivated    = "step.activated"
	TopicStepResolved     = "step.resolved"
	TopicTimeoutFired     = "timeout.fired"
	TopicEscalationFired  = "escalation.fired"
)

// Event describes one observable engine transition.  Events are an audit
// feed only; the engine never consumes its own events to make progress.
type Event struct {
	Topic      string                 `json:"topic"`
	InstanceID string                 `json:"instanceId,omitempty"`
	TemplateID string                 `json:"templateId,omitempty"`
	StepID     string                 `json:"stepId,omitempty"`
	Outcome    string                 `json:"outcome,omitempty"`
	Comment    string                 `json:"comment,omitempty"`
	CreatedAt  time.Time              `json:"createdAt"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}
