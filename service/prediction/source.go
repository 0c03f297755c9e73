// Package prediction defines the external scoring collaborator.  The
// engine only reads prediction output into an instance's data bag before
// branch conditions are evaluated; a missing or failing source simply
// leaves the corresponding conditions false.
package prediction

import (
	"context"
	"sync"
)

// Prediction is one scored subject.
type Prediction struct {
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
}

// Source produces predictions for a subject given context fields.
type Source interface {
	Predict(ctx context.Context, subjectID string, contextFields map[string]interface{}) (*Prediction, error)
}

// Static is a Source backed by a fixed table, used in tests and as a
// stand-in when no model is deployed.
type Static struct {
	mu     sync.RWMutex
	scores map[string]Prediction
}

// NewStatic creates a Static source.
func NewStatic() *Static {
	return &Static{scores: make(map[string]Prediction)}
}

// Set records the prediction returned for a subject.
func (s *Static) Set(subjectID string, p Prediction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores[subjectID] = p
}

// Predict returns the recorded prediction; unknown subjects yield a zero
// score rather than an error.
func (s *Static) Predict(_ context.Context, subjectID string, _ map[string]interface{}) (*Prediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p := s.scores[subjectID]
	return &p, nil
}

var _ Source = (*Static)(nil)
