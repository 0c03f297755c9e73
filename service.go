package cascata

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/cascata-io/cascata/internal/clock"
	"github.com/cascata-io/cascata/model"
	"github.com/cascata-io/cascata/runtime/instance"
	"github.com/cascata-io/cascata/service/cascade"
	"github.com/cascata-io/cascata/service/event"
	"github.com/cascata-io/cascata/service/executor"
	"github.com/cascata-io/cascata/service/messaging"
	"github.com/cascata-io/cascata/service/metrics"
	"github.com/cascata-io/cascata/service/notification"
	"github.com/cascata-io/cascata/service/prediction"
	"github.com/cascata-io/cascata/service/registry"
	"github.com/cascata-io/cascata/service/scheduler"
	"github.com/cascata-io/cascata/service/store"
	"github.com/cascata-io/cascata/service/trigger"
)

// Service is the engine façade: it wires the template registry, the
// instance store, the timer scheduler, the step executor, the trigger
// runner and the standalone approval cascade behind one constructor.
type Service struct {
	clock      clock.Clock
	log        *logrus.Logger
	notifier   notification.Notifier
	predictor  prediction.Source
	queue      messaging.Queue[event.Event]
	registerer prometheus.Registerer

	registry  *registry.Service
	store     *store.Service
	scheduler *scheduler.Service
	events    *event.Service
	metrics   *metrics.Metrics
	executor  *executor.Service
	triggers  *trigger.Service
	cascade   *cascade.Service

	templates        []*model.Template
	templatesBaseURL string
	noBuiltins       bool
	notifyTimeout    time.Duration
	triggerPoll      time.Duration
}

// New creates the engine and registers the bundled templates unless
// WithoutBuiltinTemplates was given.
func New(options ...Option) (*Service, error) {
	ret := &Service{}
	for _, option := range options {
		option(ret)
	}
	if err := ret.init(); err != nil {
		ret.Shutdown()
		return nil, err
	}
	return ret, nil
}

func (s *Service) init() error {
	if s.clock == nil {
		s.clock = clock.System()
	}
	if s.log == nil {
		s.log = logrus.New()
	}

	var eventOptions []event.Option
	if s.queue != nil {
		eventOptions = append(eventOptions, event.WithQueue(s.queue))
	}
	eventOptions = append(eventOptions, event.WithLogger(s.log))
	s.events = event.New(eventOptions...)

	s.metrics = metrics.New(s.registerer)
	s.registry = registry.New(
		registry.WithBaseURL(s.templatesBaseURL),
		registry.WithLogger(s.log),
	)
	s.store = store.New(store.WithClock(s.clock))
	s.scheduler = scheduler.New(scheduler.WithClock(s.clock))

	executorOptions := []executor.Option{
		executor.WithClock(s.clock),
		executor.WithLogger(s.log),
		executor.WithEvents(s.events),
		executor.WithMetrics(s.metrics),
	}
	if s.notifier != nil {
		executorOptions = append(executorOptions, executor.WithNotifier(s.notifier))
	}
	if s.predictor != nil {
		executorOptions = append(executorOptions, executor.WithPredictor(s.predictor))
	}
	if s.notifyTimeout > 0 {
		executorOptions = append(executorOptions, executor.WithNotifyTimeout(s.notifyTimeout))
	}
	s.executor = executor.New(s.store, s.registry, s.scheduler, executorOptions...)

	triggerOptions := []trigger.Option{trigger.WithLogger(s.log)}
	if s.predictor != nil {
		triggerOptions = append(triggerOptions, trigger.WithPredictor(s.predictor))
	}
	if s.triggerPoll > 0 {
		triggerOptions = append(triggerOptions, trigger.WithPollInterval(s.triggerPoll))
	}
	s.triggers = trigger.New(s.registry, s.executor, triggerOptions...)

	s.cascade = cascade.New(
		cascade.WithClock(s.clock),
		cascade.WithLogger(s.log),
	)

	s.executor.RegisterAction("executar-mudanca", func(_ context.Context, inst *instance.Instance, _ map[string]interface{}) error {
		s.log.WithField("instance", inst.ID).Info("mudanca executada")
		return nil
	})

	if !s.noBuiltins {
		for _, template := range model.Builtin() {
			if err := s.registry.Register(template); err != nil {
				return err
			}
		}
	}
	for _, template := range s.templates {
		if err := s.registry.Register(template); err != nil {
			return err
		}
	}
	if s.templatesBaseURL != "" {
		if err := s.registry.LoadAll(context.Background()); err != nil {
			return err
		}
	}
	return nil
}

// StartWorkflow instantiates a template and advances the new instance
// until it parks on an approval step or finishes.
func (s *Service) StartWorkflow(ctx context.Context, templateID string, data map[string]interface{}, requester string) (string, error) {
	return s.executor.Start(ctx, templateID, data, requester)
}

// ApproveStep resolves the named approval step with an approved outcome.
func (s *Service) ApproveStep(ctx context.Context, instanceID, stepID, approverID, comment string) error {
	return s.executor.Approve(ctx, instanceID, stepID, approverID, comment)
}

// RejectStep resolves the named approval step with a rejected outcome.
func (s *Service) RejectStep(ctx context.Context, instanceID, stepID, approverID, comment string) error {
	return s.executor.Reject(ctx, instanceID, stepID, approverID, comment)
}

// CancelWorkflow discards a live instance and disarms all its timers.
func (s *Service) CancelWorkflow(ctx context.Context, instanceID, reason string) error {
	return s.executor.Cancel(ctx, instanceID, reason)
}

// GetInstance returns a projection of one instance.
func (s *Service) GetInstance(id string) (*instance.Instance, error) {
	return s.store.Get(id)
}

// ListInstances lists instance projections matching the filter.
func (s *Service) ListInstances(filter store.Filter) []*instance.Instance {
	return s.store.List(filter)
}

// RegisterAction binds a named handler usable by action-kind steps.
func (s *Service) RegisterAction(name string, handler executor.ActionHandler) {
	s.executor.RegisterAction(name, handler)
}

// RegisterTemplate validates and registers a template.
func (s *Service) RegisterTemplate(template *model.Template) error {
	return s.registry.Register(template)
}

// StartTriggers begins watching schedule and prediction triggers.
func (s *Service) StartTriggers(ctx context.Context) error {
	return s.triggers.Start(ctx)
}

// Registry exposes the template registry.
func (s *Service) Registry() *registry.Service { return s.registry }

// Cascade exposes the standalone two-level approval service.
func (s *Service) Cascade() *cascade.Service { return s.cascade }

// Triggers exposes the trigger runner.
func (s *Service) Triggers() *trigger.Service { return s.triggers }

// Events exposes the lifecycle event queue for consumers.
func (s *Service) Events() messaging.Queue[event.Event] { return s.events.Queue() }

// Metrics exposes the engine counters.
func (s *Service) Metrics() *metrics.Metrics { return s.metrics }

// Shutdown stops the scheduler and the trigger runner.  Pending timers
// are dropped, live instances stay in the store.
func (s *Service) Shutdown() {
	if s.triggers != nil {
		s.triggers.Stop()
	}
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
