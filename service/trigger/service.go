// Package trigger launches workflow instances without a human asking:
// on cron schedules, on published events, and on prediction scores
// crossing a threshold.
package trigger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/cascata-io/cascata/model"
	"github.com/cascata-io/cascata/service/prediction"
	"github.com/cascata-io/cascata/service/registry"
)

// Starter abstracts the executor's entry point so this package does not
// depend on it.
type Starter interface {
	Start(ctx context.Context, templateID string, data map[string]interface{}, requester string) (string, error)
}

// Service watches template triggers and starts instances on their
// behalf.  Manual triggers need nothing from it.
type Service struct {
	registry  *registry.Service
	starter   Starter
	predictor prediction.Source
	log       *logrus.Logger

	cron         *cron.Cron
	pollInterval time.Duration

	mu sync.Mutex
	// fired tracks which prediction triggers are above threshold so a
	// sustained high score starts one instance, not one per poll
	fired   map[string]bool
	cancel  context.CancelFunc
	started bool
}

// Option customises the trigger service.
type Option func(*Service)

// WithPredictor sets the score source for prediction triggers.
func WithPredictor(source prediction.Source) Option {
	return func(s *Service) { s.predictor = source }
}

// WithPollInterval sets how often prediction triggers are re-evaluated.
func WithPollInterval(d time.Duration) Option {
	return func(s *Service) { s.pollInterval = d }
}

// WithLogger sets the logger.
func WithLogger(log *logrus.Logger) Option {
	return func(s *Service) { s.log = log }
}

// New creates the trigger service.
func New(reg *registry.Service, starter Starter, options ...Option) *Service {
	ret := &Service{
		registry:     reg,
		starter:      starter,
		cron:         cron.New(),
		pollInterval: time.Minute,
		fired:        make(map[string]bool),
	}
	for _, option := range options {
		option(ret)
	}
	if ret.log == nil {
		ret.log = logrus.New()
	}
	return ret
}

// Start registers cron entries for every schedule trigger and begins
// polling prediction triggers.  Templates registered after Start are not
// picked up.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("trigger service already started")
	}
	for _, template := range s.registry.List() {
		for _, trig := range template.Triggers {
			if trig.Kind != model.TriggerSchedule {
				continue
			}
			templateID, launch := template.ID, trig
			_, err := s.cron.AddFunc(trig.Schedule, func() {
				s.launch(context.Background(), templateID, launch)
			})
			if err != nil {
				return fmt.Errorf("template %v has invalid schedule %q: %w", templateID, trig.Schedule, err)
			}
		}
	}
	pollCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.started = true
	s.cron.Start()
	go s.pollPredictions(pollCtx)
	return nil
}

// Stop halts the cron runner and the prediction poller.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.cron.Stop()
	s.cancel()
	s.started = false
}

// Fire starts every template carrying an event trigger for topic.  It is
// the hook for host applications to feed external events in.
func (s *Service) Fire(ctx context.Context, topic string, data map[string]interface{}) []string {
	var started []string
	for _, template := range s.registry.List() {
		for _, trig := range template.Triggers {
			if trig.Kind != model.TriggerEvent || trig.Event != topic {
				continue
			}
			merged := mergeData(trig.Data, data)
			launch := trig
			launch.Data = merged
			if id := s.launch(ctx, template.ID, launch); id != "" {
				started = append(started, id)
			}
		}
	}
	return started
}

func (s *Service) pollPredictions(ctx context.Context) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.evaluatePredictions(ctx)
		}
	}
}

func (s *Service) evaluatePredictions(ctx context.Context) {
	if s.predictor == nil {
		return
	}
	for _, template := range s.registry.List() {
		for i, trig := range template.Triggers {
			if trig.Kind != model.TriggerPrediction {
				continue
			}
			p, err := s.predictor.Predict(ctx, trig.Subject, trig.Data)
			if err != nil || p == nil {
				s.log.WithField("subject", trig.Subject).WithError(err).Debug("prediction poll failed")
				continue
			}
			key := fmt.Sprintf("%v/%d", template.ID, i)
			s.mu.Lock()
			above := p.Score >= trig.Threshold
			shouldStart := above && !s.fired[key]
			s.fired[key] = above
			s.mu.Unlock()
			if shouldStart {
				s.launch(ctx, template.ID, trig)
			}
		}
	}
}

func (s *Service) launch(ctx context.Context, templateID string, trig model.Trigger) string {
	requester := trig.Requester
	if requester == "" {
		requester = "system"
	}
	id, err := s.starter.Start(ctx, templateID, mergeData(trig.Data, nil), requester)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"template": templateID,
			"kind":     trig.Kind,
		}).WithError(err).Error("triggered start failed")
		return ""
	}
	s.log.WithFields(logrus.Fields{
		"template": templateID,
		"instance": id,
		"kind":     trig.Kind,
	}).Info("workflow triggered")
	return id
}

// mergeData copies base and overlays extra on top, leaving both inputs
// untouched.
func mergeData(base, extra map[string]interface{}) map[string]interface{} {
	if base == nil && extra == nil {
		return nil
	}
	merged := make(map[string]interface{}, len(base)+len(extra))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}
