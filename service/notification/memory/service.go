// Package memory records notifications instead of delivering them.  It is
// the default Notifier and the one tests assert against.
package memory

import (
	"context"
	"sync"

	"github.com/cascata-io/cascata/service/notification"
)

// Sent is one recorded notification.
type Sent struct {
	Recipient string
	Message   string
	Channel   string
}

// Service is a recording Notifier.
type Service struct {
	mu   sync.Mutex
	sent []Sent
	// Fail, when set, makes every Send report a failed delivery.
	Fail bool
}

// New creates a recording notifier.
func New() *Service { return &Service{} }

// Send records the notification.
func (s *Service) Send(_ context.Context, recipientID, message, channel string) (*notification.DeliveryResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail {
		return &notification.DeliveryResult{Delivered: false, Detail: "delivery disabled"}, nil
	}
	s.sent = append(s.sent, Sent{Recipient: recipientID, Message: message, Channel: channel})
	return &notification.DeliveryResult{Delivered: true}, nil
}

// Sent returns a copy of everything recorded so far.
func (s *Service) Sent() []Sent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Sent(nil), s.sent...)
}

var _ notification.Notifier = (*Service)(nil)
