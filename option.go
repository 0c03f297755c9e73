package cascata

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/cascata-io/cascata/internal/clock"
	"github.com/cascata-io/cascata/model"
	"github.com/cascata-io/cascata/service/event"
	"github.com/cascata-io/cascata/service/messaging"
	"github.com/cascata-io/cascata/service/notification"
	"github.com/cascata-io/cascata/service/prediction"
	"github.com/cascata-io/cascata/tracing"
)

// Option customises the engine.
type Option func(s *Service)

// WithClock injects the time source shared by the store, the scheduler
// and the executor.  Tests pass clock.NewFake to drive timers.
func WithClock(clk clock.Clock) Option {
	return func(s *Service) { s.clock = clk }
}

// WithLogger sets the logger shared by every sub-service.
func WithLogger(log *logrus.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithNotifier sets the notification delivery collaborator.
func WithNotifier(notifier notification.Notifier) Option {
	return func(s *Service) { s.notifier = notifier }
}

// WithPredictor sets the prediction source used both to populate
// predictedValue condition fields and to evaluate prediction triggers.
func WithPredictor(source prediction.Source) Option {
	return func(s *Service) { s.predictor = source }
}

// WithQueue sets the lifecycle event queue.
func WithQueue(queue messaging.Queue[event.Event]) Option {
	return func(s *Service) { s.queue = queue }
}

// WithTemplates registers additional templates at construction time.
func WithTemplates(templates ...*model.Template) Option {
	return func(s *Service) { s.templates = append(s.templates, templates...) }
}

// WithTemplatesBaseURL loads every *.yaml template under the URL at
// construction time.
func WithTemplatesBaseURL(url string) Option {
	return func(s *Service) { s.templatesBaseURL = url }
}

// WithoutBuiltinTemplates skips registration of the bundled templates.
func WithoutBuiltinTemplates() Option {
	return func(s *Service) { s.noBuiltins = true }
}

// WithRegisterer sets the prometheus registerer the engine counters are
// registered with.  Nil keeps them on a private registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *Service) { s.registerer = reg }
}

// WithNotifyTimeout bounds how long notification delivery may take
// before a step resolves anyway.
func WithNotifyTimeout(d time.Duration) Option {
	return func(s *Service) { s.notifyTimeout = d }
}

// WithTriggerPollInterval sets how often prediction triggers are
// re-evaluated.
func WithTriggerPollInterval(d time.Duration) Option {
	return func(s *Service) { s.triggerPoll = d }
}

// WithTracing configures OpenTelemetry tracing for the service. If outputFile is empty the
// stdout exporter is used; otherwise traces are written to the supplied file path. The function is
// safe to call multiple times - the first successful initialisation wins.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Service) {
		_ = tracing.Init(serviceName, serviceVersion, outputFile)
	}
}

// WithTracingExporter configures OpenTelemetry tracing using a custom SpanExporter. This enables
// integrations with exporters other than the built-in stdout exporter, for example OTLP, Jaeger or
// Zipkin. The function is safe to call multiple times - the first successful initialisation wins.
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		_ = tracing.InitWithExporter(serviceName, serviceVersion, exporter)
	}
}
