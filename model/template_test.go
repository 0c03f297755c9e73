package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTemplateValidate(t *testing.T) {
	testCases := []struct {
		name     string
		template *Template
		issues   int
	}{
		{
			name:     "builtin cascade is sound",
			template: AprovacaoCascata(),
			issues:   0,
		},
		{
			name:     "no steps",
			template: NewTemplate("empty"),
			issues:   1,
		},
		{
			name: "dangling onSuccess",
			template: NewTemplate("dangling").
				WithStep((&StepSpec{ID: "a", Kind: StepAction}).WithSuccessors("missing", "")),
			issues: 1,
		},
		{
			name: "dangling escalateTo",
			template: NewTemplate("dangling-escalation").
				WithStep((&StepSpec{ID: "a", Kind: StepApproval}).
					WithEscalation(EscalationRule{AfterMinutes: 5, Action: EscalationEscalateTo, StepID: "nowhere"})),
			issues: 1,
		},
		{
			name: "duplicate step id",
			template: NewTemplate("dup").
				WithStep(&StepSpec{ID: "a", Kind: StepAction}).
				WithStep(&StepSpec{ID: "a", Kind: StepAction}),
			issues: 1,
		},
		{
			name: "unknown kind and non positive escalation delay",
			template: NewTemplate("bad").
				WithStep((&StepSpec{ID: "a", Kind: "loop"}).
					WithEscalation(EscalationRule{AfterMinutes: 0, Action: EscalationNotify})),
			issues: 2,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			issues := tc.template.Validate()
			assert.Len(t, issues, tc.issues)
		})
	}
}

func TestTemplateEntryDefaultsToFirstStep(t *testing.T) {
	tpl := NewTemplate("t").
		WithStep(&StepSpec{ID: "first", Kind: StepAction}).
		WithStep(&StepSpec{ID: "second", Kind: StepAction})
	assert.Equal(t, "first", tpl.EntryStepID)
	assert.NotNil(t, tpl.Step("second"))
	assert.Nil(t, tpl.Step("third"))
}
