// Package executor drives workflow instances through their steps.  It
// interprets step kinds, consults the condition evaluator to pick
// successors, and arms the timeout/escalation timers of approval steps.
//
// Advancement is synchronous within an instance's serialization: starting
// a workflow or resolving a step carries the instance forward through any
// immediately-completing steps (actions, notifications) until it parks on
// an approval step or reaches a terminal status.  Only timers resume an
// instance asynchronously.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cascata-io/cascata/internal/clock"
	"github.com/cascata-io/cascata/model"
	"github.com/cascata-io/cascata/runtime/instance"
	"github.com/cascata-io/cascata/service/condition"
	"github.com/cascata-io/cascata/service/event"
	"github.com/cascata-io/cascata/service/metrics"
	"github.com/cascata-io/cascata/service/notification"
	nmemory "github.com/cascata-io/cascata/service/notification/memory"
	"github.com/cascata-io/cascata/service/prediction"
	"github.com/cascata-io/cascata/service/registry"
	"github.com/cascata-io/cascata/service/scheduler"
	"github.com/cascata-io/cascata/service/store"
	"github.com/cascata-io/cascata/tracing"
)

// ActionHandler implements an action-kind step.  It runs under the
// instance's serialization; a returned error resolves the step rejected
// and routes the instance through the step's failure branch.
type ActionHandler func(ctx context.Context, inst *instance.Instance, params map[string]interface{}) error

// Service is the step executor.
type Service struct {
	store     *store.Service
	registry  *registry.Service
	scheduler *scheduler.Service
	evaluator *condition.Evaluator
	notifier  notification.Notifier
	predictor prediction.Source
	events    *event.Service
	metrics   *metrics.Metrics
	clock     clock.Clock
	log       *logrus.Logger

	mu       sync.RWMutex
	handlers map[string]ActionHandler

	// notifyTimeout bounds how long a notification step waits for the
	// delivery acknowledgement before resolving anyway.
	notifyTimeout time.Duration
}

// Option customises the executor.
type Option func(*Service)

// WithNotifier sets the delivery collaborator.
func WithNotifier(notifier notification.Notifier) Option {
	return func(s *Service) { s.notifier = notifier }
}

// WithPredictor sets the prediction source used to populate the data bag
// before predictedValue conditions are evaluated.
func WithPredictor(source prediction.Source) Option {
	return func(s *Service) { s.predictor = source }
}

// WithClock injects the time source.
func WithClock(clk clock.Clock) Option {
	return func(s *Service) { s.clock = clk }
}

// WithEvents sets the lifecycle event service.
func WithEvents(events *event.Service) Option {
	return func(s *Service) { s.events = events }
}

// WithMetrics sets the engine counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(log *logrus.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithNotifyTimeout bounds the delivery acknowledgement wait of
// notification steps.
func WithNotifyTimeout(d time.Duration) Option {
	return func(s *Service) { s.notifyTimeout = d }
}

// New creates the executor.
func New(st *store.Service, reg *registry.Service, sched *scheduler.Service, options ...Option) *Service {
	ret := &Service{
		store:         st,
		registry:      reg,
		scheduler:     sched,
		evaluator:     condition.New(),
		handlers:      make(map[string]ActionHandler),
		notifyTimeout: 5 * time.Second,
	}
	for _, option := range options {
		option(ret)
	}
	if ret.notifier == nil {
		ret.notifier = nmemory.New()
	}
	if ret.clock == nil {
		ret.clock = clock.System()
	}
	if ret.events == nil {
		ret.events = event.New()
	}
	if ret.metrics == nil {
		ret.metrics = metrics.New(nil)
	}
	if ret.log == nil {
		ret.log = logrus.New()
	}
	return ret
}

// RegisterAction binds a named handler usable by action-kind steps.
func (s *Service) RegisterAction(name string, handler ActionHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[name] = handler
}

// Start creates an instance from a template and activates its entry
// step.  It returns once the instance parked on an approval step or
// reached a terminal status.
func (s *Service) Start(ctx context.Context, templateID string, data map[string]interface{}, requester string) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "workflow.start")
	defer span.End()
	span.WithAttributes(map[string]string{"template": templateID, "requester": requester})

	template, err := s.registry.Get(templateID)
	if err != nil {
		span.SetStatus(err)
		return "", err
	}
	data = s.populatePredictions(ctx, template, data, requester)

	inst, err := s.store.Create(template, data, requester)
	if err != nil {
		span.SetStatus(err)
		return "", err
	}
	s.metrics.InstancesStarted.Inc()
	s.events.Publish(ctx, &event.Event{
		Topic:      event.TopicInstanceStarted,
		InstanceID: inst.ID,
		TemplateID: template.ID,
	})
	s.log.WithFields(logrus.Fields{
		"instance": inst.ID,
		"template": template.ID,
	}).Info("workflow started")

	err = s.store.Update(inst.ID, func(live *instance.Instance) error {
		return s.activate(ctx, live, template.EntryStepID)
	})
	if err != nil {
		span.SetStatus(err)
		return inst.ID, err
	}
	return inst.ID, nil
}

// Approve resolves the active approval step with an approved outcome.
func (s *Service) Approve(ctx context.Context, instanceID, stepID, approverID, comment string) error {
	return s.resolveHuman(ctx, instanceID, stepID, instance.StepApproved, approverID, comment)
}

// Reject resolves the active approval step with a rejected outcome.
func (s *Service) Reject(ctx context.Context, instanceID, stepID, approverID, comment string) error {
	return s.resolveHuman(ctx, instanceID, stepID, instance.StepRejected, approverID, comment)
}

// Cancel discards a live instance: every outstanding timer of every step
// is cancelled, the active step (if any) is closed, and the instance
// finalizes as rejected.
func (s *Service) Cancel(ctx context.Context, instanceID, reason string) error {
	return s.store.Update(instanceID, func(inst *instance.Instance) error {
		if inst.Terminal() {
			return fmt.Errorf("%w: %s", ErrInstanceTerminal, instanceID)
		}
		s.scheduler.CancelInstance(instanceID)
		if active := inst.ActiveStep(); active != nil {
			_ = inst.Resolve(active.SpecID, instance.StepRejected, "system", reason, s.clock.Now())
		}
		s.finish(ctx, inst, instance.StatusRejected)
		return nil
	})
}

func (s *Service) resolveHuman(ctx context.Context, instanceID, stepID, outcome, by, comment string) error {
	ctx, span := tracing.StartSpan(ctx, "workflow.resolve")
	defer span.End()
	span.WithAttributes(map[string]string{"instance": instanceID, "step": stepID, "outcome": outcome})

	err := s.store.Update(instanceID, func(inst *instance.Instance) error {
		step := inst.Step(stepID)
		if step == nil {
			return fmt.Errorf("%w: %s", instance.ErrStepNotFound, stepID)
		}
		if step.Resolved() {
			return fmt.Errorf("%w: %s", instance.ErrAlreadyResolved, stepID)
		}
		if !step.Active {
			return fmt.Errorf("%w: %s", ErrStepNotActive, stepID)
		}
		return s.resolveAndContinue(ctx, inst, stepID, outcome, by, comment)
	})
	span.SetStatus(err)
	return err
}

// resolveAndContinue closes a step, disarms its timers and carries the
// instance forward.  Runs under the instance serialization.
func (s *Service) resolveAndContinue(ctx context.Context, inst *instance.Instance, stepID, outcome, by, comment string) error {
	if err := inst.Resolve(stepID, outcome, by, comment, s.clock.Now()); err != nil {
		return err
	}
	// cancellation-on-resolution: no timer armed for this step may fire
	// from this point on
	s.scheduler.CancelStep(scheduler.Key{InstanceID: inst.ID, StepID: stepID})
	s.metrics.StepsResolved.WithLabelValues(outcome).Inc()
	s.events.Publish(ctx, &event.Event{
		Topic:      event.TopicStepResolved,
		InstanceID: inst.ID,
		TemplateID: inst.TemplateID,
		StepID:     stepID,
		Outcome:    outcome,
		Comment:    comment,
	})

	spec := inst.Template.Step(stepID)
	if spec == nil {
		return fmt.Errorf("%w: %s", instance.ErrStepNotFound, stepID)
	}
	next := s.successor(inst, spec, outcome)
	if next == "" {
		status := instance.StatusConcluded
		if outcome == instance.StepRejected {
			status = instance.StatusRejected
		}
		s.finish(ctx, inst, status)
		return nil
	}
	return s.activate(ctx, inst, next)
}

// successor picks the next step id.  An approved outcome consults the
// step's conditions (when present) to choose between the success and
// failure branches; a rejected outcome always follows the failure branch.
func (s *Service) successor(inst *instance.Instance, spec *model.StepSpec, outcome string) string {
	if outcome != instance.StepApproved {
		return spec.OnFailure
	}
	if len(spec.Conditions) == 0 {
		return spec.OnSuccess
	}
	in := condition.Input{Data: inst.Data, StartedAt: inst.CreatedAt, Now: s.clock.Now()}
	if s.evaluator.Evaluate(spec.Conditions, in) {
		return spec.OnSuccess
	}
	return spec.OnFailure
}

// activate marks a step active and drives it according to its kind.
// Action and notification steps complete immediately and the loop
// continues; approval steps arm their timers and park.
func (s *Service) activate(ctx context.Context, inst *instance.Instance, stepID string) error {
	spec := inst.Template.Step(stepID)
	if spec == nil {
		return fmt.Errorf("%w: %s", instance.ErrStepNotFound, stepID)
	}
	if err := inst.Activate(stepID, s.clock.Now()); err != nil {
		return err
	}
	s.events.Publish(ctx, &event.Event{
		Topic:      event.TopicStepActivated,
		InstanceID: inst.ID,
		TemplateID: inst.TemplateID,
		StepID:     stepID,
	})

	switch spec.Kind {
	case model.StepApproval:
		s.armTimers(inst.ID, spec)
		return nil
	case model.StepAction:
		outcome := instance.StepApproved
		comment := ""
		if err := s.runAction(ctx, inst, spec); err != nil {
			outcome = instance.StepRejected
			comment = err.Error()
			s.log.WithFields(logrus.Fields{
				"instance": inst.ID,
				"step":     stepID,
			}).WithError(err).Warn("action step failed")
		}
		return s.resolveAndContinue(ctx, inst, stepID, outcome, "system", comment)
	case model.StepNotification:
		s.sendNotification(ctx, inst, spec)
		return s.resolveAndContinue(ctx, inst, stepID, instance.StepApproved, "system", "")
	}
	return fmt.Errorf("step %s has unknown kind %q", stepID, spec.Kind)
}

func (s *Service) runAction(ctx context.Context, inst *instance.Instance, spec *model.StepSpec) error {
	if spec.Action == nil {
		return nil
	}
	s.mu.RLock()
	handler := s.handlers[spec.Action.Name]
	s.mu.RUnlock()
	if handler == nil {
		return fmt.Errorf("%w: %s", ErrUnknownAction, spec.Action.Name)
	}
	return handler(ctx, inst, spec.Action.Params)
}

// sendNotification delivers a notification step's message.  Delivery
// failure is logged and never blocks the step from resolving.
func (s *Service) sendNotification(ctx context.Context, inst *instance.Instance, spec *model.StepSpec) {
	if spec.Notify == nil {
		return
	}
	sendCtx, cancel := context.WithTimeout(ctx, s.notifyTimeout)
	defer cancel()
	recipient := spec.Notify.Recipient
	if recipient == "requester" {
		recipient = inst.Requester
	}
	result, err := s.notifier.Send(sendCtx, recipient, spec.Notify.Template, spec.Notify.Channel)
	if err != nil || (result != nil && !result.Delivered) {
		s.metrics.NotifyFailures.Inc()
		s.log.WithFields(logrus.Fields{
			"instance":  inst.ID,
			"step":      spec.ID,
			"recipient": recipient,
		}).WithError(err).Warn("notification delivery failed")
	}
}

// armTimers schedules the timeout and every escalation rule of an
// approval step.  Each is an independent timer racing the step's own
// resolution; all of them check the step is still pending at fire time.
func (s *Service) armTimers(instanceID string, spec *model.StepSpec) {
	key := scheduler.Key{InstanceID: instanceID, StepID: spec.ID}
	if spec.TimeoutMinutes > 0 {
		s.scheduler.Schedule(key, time.Duration(spec.TimeoutMinutes)*time.Minute, func(ctx context.Context) {
			s.fireTimeout(ctx, instanceID, spec.ID)
		})
	}
	for i := range spec.Escalations {
		rule := spec.Escalations[i]
		s.scheduler.Schedule(key, time.Duration(rule.AfterMinutes)*time.Minute, func(ctx context.Context) {
			s.fireEscalation(ctx, instanceID, spec.ID, rule)
		})
	}
}

// fireTimeout rejects a step that nobody resolved in time.  Finding the
// step already resolved is the expected outcome of a lost race and is
// absorbed silently.
func (s *Service) fireTimeout(ctx context.Context, instanceID, stepID string) {
	err := s.store.Update(instanceID, func(inst *instance.Instance) error {
		step := inst.Step(stepID)
		if step == nil || step.Resolved() || !step.Active {
			return nil
		}
		s.metrics.TimeoutsFired.Inc()
		s.events.Publish(ctx, &event.Event{
			Topic:      event.TopicTimeoutFired,
			InstanceID: instanceID,
			StepID:     stepID,
		})
		return s.resolveAndContinue(ctx, inst, stepID, instance.StepRejected, "system", "timeout")
	})
	if err != nil && !errors.Is(err, instance.ErrAlreadyResolved) {
		s.log.WithFields(logrus.Fields{"instance": instanceID, "step": stepID}).
			WithError(err).Error("timeout handling failed")
	}
}

// fireEscalation applies one escalation rule to a still-pending step.
func (s *Service) fireEscalation(ctx context.Context, instanceID, stepID string, rule model.EscalationRule) {
	err := s.store.Update(instanceID, func(inst *instance.Instance) error {
		step := inst.Step(stepID)
		if step == nil || step.Resolved() || !step.Active {
			return nil
		}
		s.metrics.EscalationsFired.WithLabelValues(string(rule.Action)).Inc()
		s.events.Publish(ctx, &event.Event{
			Topic:      event.TopicEscalationFired,
			InstanceID: instanceID,
			StepID:     stepID,
			Comment:    string(rule.Action),
		})

		switch rule.Action {
		case model.EscalationNotify:
			// informational only; the step stays pending and its other
			// timers stay armed
			sendCtx, cancel := context.WithTimeout(ctx, s.notifyTimeout)
			defer cancel()
			if _, err := s.notifier.Send(sendCtx, rule.Target, rule.Message, ""); err != nil {
				s.metrics.NotifyFailures.Inc()
				s.log.WithFields(logrus.Fields{"instance": instanceID, "step": stepID}).
					WithError(err).Warn("escalation notification failed")
			}
			return nil
		case model.EscalationAutoApprove:
			comment := rule.Message
			if comment == "" {
				comment = "auto-approved"
			}
			return s.resolveAndContinue(ctx, inst, stepID, instance.StepApproved, "system", comment)
		case model.EscalationEscalateTo:
			if err := inst.Resolve(stepID, instance.StepRejected, "system", "escalated", s.clock.Now()); err != nil {
				return err
			}
			inst.Step(stepID).Escalated = true
			s.scheduler.CancelStep(scheduler.Key{InstanceID: instanceID, StepID: stepID})
			s.metrics.StepsResolved.WithLabelValues(instance.StepRejected).Inc()
			s.events.Publish(ctx, &event.Event{
				Topic:      event.TopicStepResolved,
				InstanceID: instanceID,
				StepID:     stepID,
				Outcome:    instance.StepRejected,
				Comment:    "escalated",
			})
			return s.activate(ctx, inst, rule.StepID)
		}
		return nil
	})
	if err != nil && !errors.Is(err, instance.ErrAlreadyResolved) {
		s.log.WithFields(logrus.Fields{"instance": instanceID, "step": stepID}).
			WithError(err).Error("escalation handling failed")
	}
}

// finish stamps the terminal status.
func (s *Service) finish(ctx context.Context, inst *instance.Instance, status string) {
	inst.Status = status
	inst.UpdatedAt = s.clock.Now()
	s.metrics.InstancesFinished.WithLabelValues(status).Inc()
	s.events.Publish(ctx, &event.Event{
		Topic:      event.TopicInstanceFinished,
		InstanceID: inst.ID,
		TemplateID: inst.TemplateID,
		Outcome:    status,
	})
	s.log.WithFields(logrus.Fields{"instance": inst.ID, "status": status}).Info("workflow finished")
}

// populatePredictions fills missing predictedValue fields from the
// prediction source.  A missing or failing source leaves the data bag
// untouched; the affected conditions then evaluate to false.
func (s *Service) populatePredictions(ctx context.Context, template *model.Template, data map[string]interface{}, requester string) map[string]interface{} {
	if s.predictor == nil {
		return data
	}
	if data == nil {
		data = map[string]interface{}{}
	}
	subject := requester
	if v, ok := data["subject"].(string); ok && v != "" {
		subject = v
	}
	for _, spec := range template.Steps {
		for _, cond := range spec.Conditions {
			if cond.Kind != model.ConditionPredictedValue || cond.Field == "" {
				continue
			}
			if _, ok := data[cond.Field]; ok {
				continue
			}
			p, err := s.predictor.Predict(ctx, subject, data)
			if err != nil || p == nil {
				s.log.WithField("subject", subject).WithError(err).Debug("prediction unavailable")
				continue
			}
			data[cond.Field] = p.Score
		}
	}
	return data
}
