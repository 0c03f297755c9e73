package model

import "fmt"

// Template is an immutable workflow definition: a graph of step specs
// linked by successor ids plus the triggers that can launch it.  Templates
// are registered once at startup and never mutated afterwards.
type Template struct {
	ID          string      `json:"id" yaml:"id"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Category    string      `json:"category,omitempty" yaml:"category,omitempty"`
	Priority    int         `json:"priority,omitempty" yaml:"priority,omitempty"`
	EntryStepID string      `json:"entryStepId" yaml:"entryStepId"`
	Steps       []*StepSpec `json:"steps" yaml:"steps"`
	Triggers    []Trigger   `json:"triggers,omitempty" yaml:"triggers,omitempty"`
}

// NewTemplate creates a template shell; add steps with WithStep.
func NewTemplate(id string) *Template {
	return &Template{ID: id}
}

// WithStep appends a step spec.  The first step added becomes the entry
// step unless EntryStepID was set explicitly.
func (t *Template) WithStep(step *StepSpec) *Template {
	if t.EntryStepID == "" {
		t.EntryStepID = step.ID
	}
	t.Steps = append(t.Steps, step)
	return t
}

// WithTrigger appends a trigger.
func (t *Template) WithTrigger(trigger Trigger) *Template {
	t.Triggers = append(t.Triggers, trigger)
	return t
}

// Step returns the step spec with the given id, or nil.
func (t *Template) Step(id string) *StepSpec {
	for _, s := range t.Steps {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// Validate performs a structural validation of the template.  The returned
// slice is empty when the template is sound; otherwise it contains
// human-readable error descriptions.  No conditions are evaluated, only
// static properties are verified.
func (t *Template) Validate() []error {
	var issues []error

	if t.ID == "" {
		issues = append(issues, fmt.Errorf("template id is empty"))
	}
	if len(t.Steps) == 0 {
		issues = append(issues, fmt.Errorf("template %s has no steps", t.ID))
		return issues
	}

	seen := map[string]bool{}
	for _, s := range t.Steps {
		if s.ID == "" {
			issues = append(issues, fmt.Errorf("template %s contains a step with empty id", t.ID))
			continue
		}
		if seen[s.ID] {
			issues = append(issues, fmt.Errorf("duplicate step id %s", s.ID))
		}
		seen[s.ID] = true
	}

	if t.EntryStepID == "" {
		issues = append(issues, fmt.Errorf("template %s has no entry step", t.ID))
	} else if !seen[t.EntryStepID] {
		issues = append(issues, fmt.Errorf("entry step %s does not exist", t.EntryStepID))
	}

	for _, s := range t.Steps {
		switch s.Kind {
		case StepAction, StepNotification, StepApproval:
		default:
			issues = append(issues, fmt.Errorf("step %s has unknown kind %q", s.ID, s.Kind))
		}
		if s.OnSuccess != "" && !seen[s.OnSuccess] {
			issues = append(issues, fmt.Errorf("step %s onSuccess refers to unknown step %s", s.ID, s.OnSuccess))
		}
		if s.OnFailure != "" && !seen[s.OnFailure] {
			issues = append(issues, fmt.Errorf("step %s onFailure refers to unknown step %s", s.ID, s.OnFailure))
		}
		for _, rule := range s.Escalations {
			if rule.AfterMinutes <= 0 {
				issues = append(issues, fmt.Errorf("step %s escalation afterMinutes must be positive", s.ID))
			}
			if rule.Action == EscalationEscalateTo && !seen[rule.StepID] {
				issues = append(issues, fmt.Errorf("step %s escalateTo refers to unknown step %s", s.ID, rule.StepID))
			}
		}
	}
	return issues
}
