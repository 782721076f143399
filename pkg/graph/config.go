package graph

import "time"

// Config tunes the graph runtime (spec.md §4.6, §6: "limits.max_tool_calls_per_turn").
type Config struct {
	MaxToolCallsPerTurn int           `yaml:"max_tool_calls_per_turn,omitempty"`
	MaxAttempts         int           `yaml:"max_attempts,omitempty"` // total attempts for a transient C4/retriever call, including the first
	RetryBaseDelay      time.Duration `yaml:"retry_base_delay,omitempty"`
	RetryMaxDelay       time.Duration `yaml:"retry_max_delay,omitempty"`
}

// SetDefaults applies spec.md §4.6's default tuning: 10 tool calls per
// turn, 3 attempts at base 200ms capped at 4s (spec.md §4.6 "Failure
// semantics").
func (c *Config) SetDefaults() {
	if c.MaxToolCallsPerTurn <= 0 {
		c.MaxToolCallsPerTurn = 10
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = 200 * time.Millisecond
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = 4 * time.Second
	}
}
