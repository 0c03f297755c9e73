package model

// AprovacaoCascata is the built-in two-level approval template: the
// coordinator approves first, then the director; the director level
// auto-approves when left unattended.  Rejection at either level routes to
// a notification informing the requester.
func AprovacaoCascata() *Template {
	return NewTemplate("aprovacao-cascata").
		WithStep(&StepSpec{
			ID:             "1",
			Kind:           StepApproval,
			Role:           "coordinator",
			OnSuccess:      "4",
			OnFailure:      "2",
			TimeoutMinutes: 60,
			Escalations: []EscalationRule{
				{AfterMinutes: 30, Action: EscalationNotify, Target: "director", Message: "aprovacao pendente ha 30 minutos"},
			},
		}).
		WithStep((&StepSpec{
			ID:   "2",
			Kind: StepNotification,
			Role: "system",
		}).WithNotify("requester", "solicitacao-rejeitada", "")).
		WithStep(&StepSpec{
			ID:             "4",
			Kind:           StepApproval,
			Role:           "director",
			OnSuccess:      "5",
			OnFailure:      "2",
			TimeoutMinutes: 120,
			Escalations: []EscalationRule{
				{AfterMinutes: 90, Action: EscalationAutoApprove, Message: "auto-aprovado: diretor indisponivel"},
			},
		}).
		WithStep((&StepSpec{
			ID:   "5",
			Kind: StepAction,
			Role: "system",
		}).WithAction("executar-mudanca", nil)).
		WithTrigger(Trigger{Kind: TriggerManual})
}

// Builtin returns the templates registered by default.
func Builtin() []*Template {
	return []*Template{AprovacaoCascata()}
}
