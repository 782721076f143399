package checkpoint

import (
	"fmt"
	"time"
)

// Strategy determines when checkpoints are created beyond the always-on
// HITL and terminal-phase writes.
type Strategy string

const (
	// StrategyEvent checkpoints only on specific events (tool approval,
	// errors, completion).
	StrategyEvent Strategy = "event"

	// StrategyInterval checkpoints every N graph steps regardless of phase.
	StrategyInterval Strategy = "interval"

	// StrategyHybrid checkpoints on both events and an interval.
	StrategyHybrid Strategy = "hybrid"
)

// Config configures checkpoint behavior (spec.md §4.7, §6).
//
// Example YAML configuration:
//
//	checkpoint:
//	  enabled: true
//	  strategy: hybrid
//	  interval: 5
//	  after_tools: true
//	  before_llm: false
//	  recovery:
//	    auto_resume: true
//	    timeout: 3600
type Config struct {
	// Enabled turns checkpointing on.
	// Default: true
	Enabled *bool `yaml:"enabled,omitempty"`

	// Strategy determines when checkpoints are created.
	// Values: "event", "interval", "hybrid"
	// Default: "event"
	Strategy Strategy `yaml:"strategy,omitempty"`

	// Interval checkpoints every N graph steps. Only used when Strategy is
	// "interval" or "hybrid".
	// Default: 0 (disabled)
	Interval int `yaml:"interval,omitempty"`

	// AfterTools checkpoints after every tool execution completes.
	// Default: true
	AfterTools *bool `yaml:"after_tools,omitempty"`

	// BeforeLLM checkpoints before every LLM call.
	// Default: false
	BeforeLLM *bool `yaml:"before_llm,omitempty"`

	// Recovery configures resume-on-restart behavior.
	Recovery *RecoveryConfig `yaml:"recovery,omitempty"`
}

// RecoveryConfig configures checkpoint recovery behavior.
type RecoveryConfig struct {
	// AutoResume enables automatic recovery on process startup for
	// interrupted threads that were not awaiting human approval.
	// Default: false
	AutoResume *bool `yaml:"auto_resume,omitempty"`

	// Timeout is the maximum checkpoint age, in seconds, eligible for
	// resume. Older checkpoints are left interrupted for a human to
	// restart explicitly.
	// Default: 3600 (1 hour)
	Timeout int `yaml:"timeout,omitempty"`
}

// SetDefaults applies default values.
func (c *Config) SetDefaults() {
	if c.Enabled == nil {
		enabled := true
		c.Enabled = &enabled
	}
	if c.Strategy == "" {
		c.Strategy = StrategyEvent
	}
	if c.AfterTools == nil {
		afterTools := true
		c.AfterTools = &afterTools
	}
	if c.BeforeLLM == nil {
		beforeLLM := false
		c.BeforeLLM = &beforeLLM
	}
	if c.Recovery == nil {
		c.Recovery = &RecoveryConfig{}
	}
	c.Recovery.SetDefaults()
}

// SetDefaults applies default values for RecoveryConfig.
func (c *RecoveryConfig) SetDefaults() {
	if c.AutoResume == nil {
		autoResume := false
		c.AutoResume = &autoResume
	}
	if c.Timeout == 0 {
		c.Timeout = 3600
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Strategy != "" &&
		c.Strategy != StrategyEvent &&
		c.Strategy != StrategyInterval &&
		c.Strategy != StrategyHybrid {
		return fmt.Errorf("invalid checkpoint strategy %q (valid: event, interval, hybrid)", c.Strategy)
	}
	if c.Interval < 0 {
		return fmt.Errorf("checkpoint interval must be non-negative")
	}
	if c.Recovery != nil {
		if err := c.Recovery.Validate(); err != nil {
			return fmt.Errorf("recovery config: %w", err)
		}
	}
	return nil
}

// Validate checks the RecoveryConfig.
func (c *RecoveryConfig) Validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative")
	}
	return nil
}

// IsEnabled returns whether checkpointing is enabled.
func (c *Config) IsEnabled() bool {
	return c != nil && c.Enabled != nil && *c.Enabled
}

// ShouldCheckpointAfterTools returns whether to checkpoint after tool execution.
func (c *Config) ShouldCheckpointAfterTools() bool {
	return c.IsEnabled() && c.AfterTools != nil && *c.AfterTools
}

// ShouldCheckpointBeforeLLM returns whether to checkpoint before LLM calls.
func (c *Config) ShouldCheckpointBeforeLLM() bool {
	return c.IsEnabled() && c.BeforeLLM != nil && *c.BeforeLLM
}

// ShouldCheckpointInterval returns whether interval checkpointing is enabled.
func (c *Config) ShouldCheckpointInterval() bool {
	return c.IsEnabled() &&
		(c.Strategy == StrategyInterval || c.Strategy == StrategyHybrid) &&
		c.Interval > 0
}

// ShouldCheckpointAtStep returns whether to checkpoint at the given graph step.
func (c *Config) ShouldCheckpointAtStep(step int64) bool {
	if !c.ShouldCheckpointInterval() {
		return false
	}
	return step > 0 && step%int64(c.Interval) == 0
}

// RecoveryTimeout returns the recovery timeout as a duration.
func (c *Config) RecoveryTimeout() time.Duration {
	if c == nil || c.Recovery == nil || c.Recovery.Timeout <= 0 {
		return time.Hour
	}
	return time.Duration(c.Recovery.Timeout) * time.Second
}

// ShouldAutoResume returns whether to auto-resume interrupted threads on startup.
func (c *Config) ShouldAutoResume() bool {
	return c.IsEnabled() && c.Recovery != nil && c.Recovery.AutoResume != nil && *c.Recovery.AutoResume
}
