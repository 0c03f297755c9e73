// Package notification defines the delivery collaborator consumed by
// notification-kind steps and escalation rules.  Delivery is external to
// the engine; failures are logged by callers and never block a step from
// resolving unless the step demands acknowledged delivery.
package notification

import "context"

// DeliveryResult reports the outcome of one send attempt.
type DeliveryResult struct {
	Delivered bool   `json:"delivered"`
	Detail    string `json:"detail,omitempty"`
}

// Notifier sends a message to a recipient over a channel ("telegram",
// "email", ...).  An empty channel means the implementation's default.
type Notifier interface {
	Send(ctx context.Context, recipientID, message, channel string) (*DeliveryResult, error)
}
