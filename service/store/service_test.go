package store

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cascata-io/cascata/internal/clock"
	"github.com/cascata-io/cascata/model"
	"github.com/cascata-io/cascata/runtime/instance"
)

func newStore(t *testing.T) (*Service, *instance.Instance) {
	t.Helper()
	svc := New(WithClock(clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))))
	inst, err := svc.Create(model.AprovacaoCascata(), map[string]interface{}{"motivo": "escala"}, "alice")
	require.NoError(t, err)
	return svc, inst
}

func TestCreateMaterializesPendingSteps(t *testing.T) {
	_, inst := newStore(t)
	assert.Equal(t, instance.StatusStarted, inst.Status)
	assert.Len(t, inst.Steps, 4)
	for _, step := range inst.Steps {
		assert.Equal(t, instance.StepPending, step.Status)
		assert.False(t, step.Active)
	}
	assert.Nil(t, inst.ActiveStep())
}

func TestResolveIsIdempotent(t *testing.T) {
	svc, inst := newStore(t)
	now := time.Now()

	err := svc.Update(inst.ID, func(i *instance.Instance) error {
		if err := i.Activate("1", now); err != nil {
			return err
		}
		return i.Resolve("1", instance.StepApproved, "coord1", "", now)
	})
	require.NoError(t, err)

	// second resolution loses the race
	err = svc.Update(inst.ID, func(i *instance.Instance) error {
		return i.Resolve("1", instance.StepRejected, "timer", "timeout", now)
	})
	assert.True(t, errors.Is(err, instance.ErrAlreadyResolved))

	got, err := svc.Get(inst.ID)
	require.NoError(t, err)
	assert.Equal(t, instance.StepApproved, got.Step("1").Status)
	assert.Equal(t, "coord1", got.Step("1").ResolvedBy)
}

func TestSingleActiveStepInvariant(t *testing.T) {
	svc, inst := newStore(t)
	now := time.Now()

	err := svc.Update(inst.ID, func(i *instance.Instance) error {
		if err := i.Activate("1", now); err != nil {
			return err
		}
		return i.Activate("4", now)
	})
	assert.Error(t, err)
}

func TestUnknownStepAndInstance(t *testing.T) {
	svc, inst := newStore(t)

	err := svc.Update(inst.ID, func(i *instance.Instance) error {
		return i.Resolve("99", instance.StepApproved, "x", "", time.Now())
	})
	assert.True(t, errors.Is(err, instance.ErrStepNotFound))

	_, err = svc.Get("missing")
	assert.True(t, errors.Is(err, ErrInstanceNotFound))
}

func TestListFilters(t *testing.T) {
	svc, inst := newStore(t)
	now := time.Now()
	require.NoError(t, svc.Update(inst.ID, func(i *instance.Instance) error {
		return i.Activate("1", now)
	}))
	_, err := svc.Create(model.AprovacaoCascata(), nil, "bob")
	require.NoError(t, err)

	assert.Len(t, svc.List(Filter{}), 2)
	assert.Len(t, svc.List(Filter{Status: instance.StatusInProgress}), 1)
	assert.Len(t, svc.List(Filter{Role: "coordinator"}), 1)
	assert.Len(t, svc.List(Filter{Role: "director"}), 0)
}

func TestGetReturnsProjection(t *testing.T) {
	svc, inst := newStore(t)
	got, err := svc.Get(inst.ID)
	require.NoError(t, err)
	got.Status = "mutated"
	got.Step("1").Status = "mutated"

	again, err := svc.Get(inst.ID)
	require.NoError(t, err)
	assert.Equal(t, instance.StatusStarted, again.Status)
	assert.Equal(t, instance.StepPending, again.Step("1").Status)
}
