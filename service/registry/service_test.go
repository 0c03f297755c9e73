package registry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cascata-io/cascata/model"
)

func TestRegisterAndGet(t *testing.T) {
	svc := New()
	require.NoError(t, svc.Register(model.AprovacaoCascata()))

	template, err := svc.Get("aprovacao-cascata")
	require.NoError(t, err)
	assert.Equal(t, "1", template.EntryStepID)

	_, err = svc.Get("missing")
	assert.True(t, errors.Is(err, ErrTemplateNotFound))
}

func TestRegisterRejectsDanglingSuccessor(t *testing.T) {
	svc := New()
	template := model.NewTemplate("broken").
		WithStep((&model.StepSpec{ID: "a", Kind: model.StepApproval}).WithSuccessors("ghost", ""))

	err := svc.Register(template)
	assert.True(t, errors.Is(err, ErrInvalidTemplate))
	assert.Contains(t, err.Error(), "ghost")
}

func TestLoadAll(t *testing.T) {
	dir := t.TempDir()
	definition := `
id: plantao-extra
entryStepId: request
steps:
  - id: request
    kind: approval
    role: coordinator
    onSuccess: confirm
    timeoutMinutes: 15
  - id: confirm
    kind: notification
    notify:
      recipient: requester
      template: confirmado
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plantao.yaml"), []byte(definition), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("ignored"), 0o644))

	svc := New(WithBaseURL(dir))
	require.NoError(t, svc.LoadAll(context.Background()))

	template, err := svc.Get("plantao-extra")
	require.NoError(t, err)
	assert.Equal(t, "request", template.EntryStepID)
	require.NotNil(t, template.Step("confirm"))
	assert.Equal(t, model.StepNotification, template.Step("confirm").Kind)
	assert.Equal(t, 15, template.Step("request").TimeoutMinutes)
}

func TestLoadAllRejectsBrokenDefinition(t *testing.T) {
	dir := t.TempDir()
	definition := `
id: broken
entryStepId: request
steps:
  - id: request
    kind: approval
    onSuccess: nowhere
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte(definition), 0o644))

	svc := New(WithBaseURL(dir))
	err := svc.LoadAll(context.Background())
	assert.True(t, errors.Is(err, ErrInvalidTemplate))
}
