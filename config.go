package cascata

import (
	"fmt"
	"time"
)

// Config is a serialisable representation of the engine configuration. It
// can be populated from JSON, YAML, environment variables, etc. The
// zero-value is useful: all nested fields inherit their package defaults.

type Config struct {
	Templates TemplatesConfig `json:"templates" yaml:"templates"`
	Notify    NotifyConfig    `json:"notify" yaml:"notify"`
	Trigger   TriggerConfig   `json:"trigger" yaml:"trigger"`
}

type TemplatesConfig struct {
	// BaseURL points at a directory of *.yaml template definitions.
	BaseURL string `json:"baseURL" yaml:"baseURL"`
	// Builtin keeps the bundled templates registered.
	Builtin bool `json:"builtin" yaml:"builtin"`
}

type NotifyConfig struct {
	// TimeoutSec bounds one notification delivery attempt.
	TimeoutSec int `json:"timeoutSec" yaml:"timeoutSec"`
}

type TriggerConfig struct {
	// PollSec is the prediction trigger re-evaluation interval.
	PollSec int `json:"pollSec" yaml:"pollSec"`
}

// DefaultConfig returns a Config populated with the same default values
// that are hard-coded in the constructors.
func DefaultConfig() *Config {
	return &Config{
		Templates: TemplatesConfig{Builtin: true},
		Notify:    NotifyConfig{TimeoutSec: 5},
		Trigger:   TriggerConfig{PollSec: 60},
	}
}

// Validate returns an error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if c.Notify.TimeoutSec <= 0 {
		return fmt.Errorf("notify.timeoutSec must be > 0")
	}
	if c.Trigger.PollSec <= 0 {
		return fmt.Errorf("trigger.pollSec must be > 0")
	}
	return nil
}

// NewFromConfig creates the engine from a serialisable Config; extra
// options are applied on top and win on conflict.
func NewFromConfig(config *Config, options ...Option) (*Service, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	base := []Option{
		WithNotifyTimeout(time.Duration(config.Notify.TimeoutSec) * time.Second),
		WithTriggerPollInterval(time.Duration(config.Trigger.PollSec) * time.Second),
	}
	if config.Templates.BaseURL != "" {
		base = append(base, WithTemplatesBaseURL(config.Templates.BaseURL))
	}
	if !config.Templates.Builtin {
		base = append(base, WithoutBuiltinTemplates())
	}
	return New(append(base, options...)...)
}
