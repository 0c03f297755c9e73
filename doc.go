// Package cascata provides an approval workflow engine.
//
// Workflows are defined declaratively as templates (in Go or YAML): a
// graph of approval, action and notification steps with exclusive-choice
// branching, timeouts and escalation rules.  The engine instantiates a
// template, carries the instance through its steps and parks on approval
// steps until a human (or an escalation timer) resolves them.
//
// Cascata is designed to be embedded in host applications.  End-users
// typically interact with the engine via the high-level Service façade
// exposed by the root package:
//
//	srv, _ := cascata.New()
//	id, _ := srv.StartWorkflow(ctx, "aprovacao-cascata", nil, "alice")
//	_ = srv.ApproveStep(ctx, id, "1", "coord1", "ok")
//	inst, _ := srv.GetInstance(id)
//
// For more details see the README and individual sub-packages.
package cascata
