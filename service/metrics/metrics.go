// Package metrics exposes engine counters through Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's counters.  Each engine owns its own set so
// that tests can use isolated registries.
type Metrics struct {
	InstancesStarted  prometheus.Counter
	InstancesFinished *prometheus.CounterVec
	StepsResolved     *prometheus.CounterVec
	TimeoutsFired     prometheus.Counter
	EscalationsFired  *prometheus.CounterVec
	NotifyFailures    prometheus.Counter
}

// New registers the engine counters with reg; a nil reg gets a private
// registry so collectors never collide.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Metrics{
		InstancesStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "cascata_instances_started_total",
			Help: "Workflow instances started.",
		}),
		InstancesFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cascata_instances_finished_total",
			Help: "Workflow instances that reached a terminal status.",
		}, []string{"status"}),
		StepsResolved: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cascata_steps_resolved_total",
			Help: "Steps resolved, by outcome.",
		}, []string{"outcome"}),
		TimeoutsFired: factory.NewCounter(prometheus.CounterOpts{
			Name: "cascata_timeouts_fired_total",
			Help: "Approval timeouts that fired against a pending step.",
		}),
		EscalationsFired: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cascata_escalations_fired_total",
			Help: "Escalation rules executed, by action.",
		}, []string{"action"}),
		NotifyFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "cascata_notification_failures_total",
			Help: "Notification deliveries that failed.",
		}),
	}
}
