package model

// TriggerKind enumerates how a template can be launched.
type TriggerKind string

const (
	// TriggerSchedule starts an instance on a cron schedule.
	TriggerSchedule TriggerKind = "schedule"
	// TriggerEvent starts an instance when an event with the configured
	// topic is published.
	TriggerEvent TriggerKind = "event"
	// TriggerPrediction starts an instance when an external prediction
	// score for Subject meets or exceeds Threshold.
	TriggerPrediction TriggerKind = "prediction"
	// TriggerManual marks a template as startable only via StartWorkflow.
	TriggerManual TriggerKind = "manual"
)

// Trigger describes one way a template is started.  A template can carry
// several triggers; TriggerManual is implied even when absent.
type Trigger struct {
	Kind      TriggerKind            `json:"kind" yaml:"kind"`
	Schedule  string                 `json:"schedule,omitempty" yaml:"schedule,omitempty"`
	Event     string                 `json:"event,omitempty" yaml:"event,omitempty"`
	Subject   string                 `json:"subject,omitempty" yaml:"subject,omitempty"`
	Threshold float64                `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	Requester string                 `json:"requester,omitempty" yaml:"requester,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty" yaml:"data,omitempty"`
}
