// Package model defines the immutable workflow vocabulary: templates, step
// specifications, conditions, escalation rules and triggers.  Instances of
// these types are created at configuration time (programmatically or from
// YAML) and are never mutated afterwards; the runtime keeps its own mutable
// state in runtime/instance.
package model
