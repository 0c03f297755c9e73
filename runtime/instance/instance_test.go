package instance

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cascata-io/cascata/model"
)

func testInstance() *Instance {
	template := model.NewTemplate("t").
		WithStep((&model.StepSpec{ID: "a", Kind: model.StepApproval, Role: "coordinator"}).WithSuccessors("b", "")).
		WithStep(&model.StepSpec{ID: "b", Kind: model.StepApproval, Role: "director"})
	return &Instance{
		ID:         "i-1",
		TemplateID: template.ID,
		Template:   template,
		Requester:  "alice",
		Data:       map[string]interface{}{"k": "v"},
		Steps: []*StepState{
			{SpecID: "a", Status: StepPending},
			{SpecID: "b", Status: StepPending},
		},
		Status: StatusStarted,
	}
}

func TestActivateSingleActive(t *testing.T) {
	inst := testInstance()
	now := time.Now()

	require.NoError(t, inst.Activate("a", now))
	assert.Equal(t, StatusInProgress, inst.Status)
	assert.Equal(t, "a", inst.ActiveStep().SpecID)

	// a second activation while a is still active must fail
	err := inst.Activate("b", now)
	require.Error(t, err)

	// re-activating the active step is a no-op
	assert.NoError(t, inst.Activate("a", now))
}

func TestResolveIsTerminal(t *testing.T) {
	inst := testInstance()
	now := time.Now()
	require.NoError(t, inst.Activate("a", now))

	require.NoError(t, inst.Resolve("a", StepApproved, "coord1", "ok", now))
	step := inst.Step("a")
	assert.Equal(t, StepApproved, step.Status)
	assert.False(t, step.Active)
	assert.Equal(t, "coord1", step.ResolvedBy)
	require.NotNil(t, step.ResolvedAt)

	// second resolution loses, whatever the outcome
	err := inst.Resolve("a", StepRejected, "timer", "timeout", now.Add(time.Hour))
	assert.True(t, errors.Is(err, ErrAlreadyResolved))
	assert.Equal(t, StepApproved, inst.Step("a").Status)

	err = inst.Resolve("missing", StepApproved, "x", "", now)
	assert.True(t, errors.Is(err, ErrStepNotFound))
}

func TestActivateResolvedStepFails(t *testing.T) {
	inst := testInstance()
	now := time.Now()
	require.NoError(t, inst.Activate("a", now))
	require.NoError(t, inst.Resolve("a", StepRejected, "coord1", "", now))

	err := inst.Activate("a", now)
	assert.True(t, errors.Is(err, ErrAlreadyResolved))
}

func TestCloneIsolation(t *testing.T) {
	inst := testInstance()
	now := time.Now()
	require.NoError(t, inst.Activate("a", now))
	require.NoError(t, inst.Resolve("a", StepApproved, "coord1", "", now))

	clone := inst.Clone()
	clone.Steps[0].Status = StepRejected
	clone.Data["k"] = "mutated"
	*clone.Steps[0].ResolvedAt = time.Time{}

	assert.Equal(t, StepApproved, inst.Step("a").Status)
	assert.Equal(t, "v", inst.Data["k"])
	assert.False(t, inst.Step("a").ResolvedAt.IsZero())
}

func TestTerminal(t *testing.T) {
	inst := testInstance()
	assert.False(t, inst.Terminal())
	for _, status := range []string{StatusConcluded, StatusRejected, StatusApproved} {
		inst.Status = status
		assert.True(t, inst.Terminal())
	}
}
