// Package contextwindow compacts a thread's message history so it fits
// inside a turn's token budget while keeping the system prompt and the
// latest salient turns byte-identical (spec.md §4.5).
package contextwindow

import "fmt"

// Config tunes the compaction policy.
type Config struct {
	// KRecent is the number of most-recent turns (messages grouped by
	// TurnID) always kept verbatim, never summarized or dropped.
	KRecent int `yaml:"k_recent,omitempty"`

	// BudgetTokens is the turn's total token budget. Summarization
	// triggers once older messages alone would exceed BudgetTokens*0.75.
	BudgetTokens int `yaml:"budget_tokens,omitempty"`

	// MaxToolResultTokens truncates any single tool-result message larger
	// than this, replacing the tail with an omission marker. The full
	// result is still written to the audit log by the caller.
	MaxToolResultTokens int `yaml:"max_tool_result_tokens,omitempty"`
}

// SetDefaults applies spec.md §4.5's defaults.
func (c *Config) SetDefaults() {
	if c.KRecent == 0 {
		c.KRecent = 6
	}
	if c.BudgetTokens == 0 {
		c.BudgetTokens = 8192
	}
	if c.MaxToolResultTokens == 0 {
		c.MaxToolResultTokens = 2000
	}
}

// Validate checks the configuration is usable.
func (c *Config) Validate() error {
	if c.KRecent <= 0 {
		return fmt.Errorf("contextwindow: k_recent must be positive")
	}
	if c.BudgetTokens <= 0 {
		return fmt.Errorf("contextwindow: budget_tokens must be positive")
	}
	if c.MaxToolResultTokens <= 0 {
		return fmt.Errorf("contextwindow: max_tool_result_tokens must be positive")
	}
	return nil
}

// summarizeThreshold is the fraction of BudgetTokens at which older turns
// are summarized rather than kept verbatim (spec.md §4.5).
const summarizeThreshold = 0.75

func (c *Config) summarizeThresholdTokens() int {
	return int(float64(c.BudgetTokens) * summarizeThreshold)
}
