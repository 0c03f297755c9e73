package trigger

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cascata-io/cascata/model"
	"github.com/cascata-io/cascata/service/prediction"
	"github.com/cascata-io/cascata/service/registry"
)

type recordingStarter struct {
	mu     sync.Mutex
	starts []string
	data   []map[string]interface{}
}

func (r *recordingStarter) Start(_ context.Context, templateID string, data map[string]interface{}, _ string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts = append(r.starts, templateID)
	r.data = append(r.data, data)
	return "inst-1", nil
}

func (r *recordingStarter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.starts)
}

func eventTemplate() *model.Template {
	template := model.NewTemplate("on-alert").
		WithStep(&model.StepSpec{ID: "review", Kind: model.StepApproval, Role: "coordinator"})
	template.Triggers = []model.Trigger{{
		Kind:  model.TriggerEvent,
		Event: "sensor.alert",
		Data:  map[string]interface{}{"source": "sensor"},
	}}
	return template
}

func TestFireStartsMatchingTemplates(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Register(eventTemplate()))
	starter := &recordingStarter{}
	svc := New(reg, starter)

	started := svc.Fire(context.Background(), "sensor.alert", map[string]interface{}{"severity": "high"})
	require.Len(t, started, 1)
	assert.Equal(t, []string{"on-alert"}, starter.starts)
	assert.Equal(t, "sensor", starter.data[0]["source"])
	assert.Equal(t, "high", starter.data[0]["severity"])

	assert.Empty(t, svc.Fire(context.Background(), "other.topic", nil))
}

func TestPredictionTriggerFiresOnceWhileAboveThreshold(t *testing.T) {
	template := model.NewTemplate("predictive").
		WithStep(&model.StepSpec{ID: "review", Kind: model.StepApproval, Role: "coordinator"})
	template.Triggers = []model.Trigger{{
		Kind:      model.TriggerPrediction,
		Subject:   "machine-7",
		Threshold: 0.8,
	}}
	reg := registry.New()
	require.NoError(t, reg.Register(template))

	source := prediction.NewStatic()
	starter := &recordingStarter{}
	svc := New(reg, starter, WithPredictor(source))
	ctx := context.Background()

	// below threshold: nothing starts
	source.Set("machine-7", prediction.Prediction{Score: 0.5})
	svc.evaluatePredictions(ctx)
	assert.Equal(t, 0, starter.count())

	// crossing the threshold starts exactly one instance, sustained
	// high scores do not start more
	source.Set("machine-7", prediction.Prediction{Score: 0.9})
	svc.evaluatePredictions(ctx)
	svc.evaluatePredictions(ctx)
	assert.Equal(t, 1, starter.count())

	// dropping below re-arms the trigger
	source.Set("machine-7", prediction.Prediction{Score: 0.3})
	svc.evaluatePredictions(ctx)
	source.Set("machine-7", prediction.Prediction{Score: 0.95})
	svc.evaluatePredictions(ctx)
	assert.Equal(t, 2, starter.count())
}

func TestStartRejectsInvalidSchedule(t *testing.T) {
	template := model.NewTemplate("scheduled").
		WithStep(&model.StepSpec{ID: "review", Kind: model.StepApproval, Role: "coordinator"})
	template.Triggers = []model.Trigger{{Kind: model.TriggerSchedule, Schedule: "not a cron expr"}}
	reg := registry.New()
	require.NoError(t, reg.Register(template))

	svc := New(reg, &recordingStarter{})
	err := svc.Start(context.Background())
	require.Error(t, err)
}
