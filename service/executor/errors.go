package executor

import "errors"

var (
	// ErrStepNotActive is returned when a human acts on a step that was
	// never activated or whose branch was not reached.
	ErrStepNotActive = errors.New("step is not active")

	// ErrInstanceTerminal is returned when an instance that already
	// reached a final status is acted on again.
	ErrInstanceTerminal = errors.New("instance already terminal")

	// ErrUnknownAction is returned when an action-kind step names a
	// handler nobody registered.
	ErrUnknownAction = errors.New("unknown action handler")
)
