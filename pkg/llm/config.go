package llm

import (
	"fmt"
	"os"
)

// Config configures a Client against a single OpenAI-compatible endpoint.
// Unlike the teacher's per-provider LLMConfig (anthropic/openai/gemini/
// ollama), this runtime targets exactly one wire format — every backend it
// serves (vendor-hosted or self-hosted quantized models) speaks
// OpenAI-compatible chat completions, so there is one Config, not a
// provider switch.
type Config struct {
	BaseURL     string   `yaml:"base_url"`
	Model       string   `yaml:"model"`
	APIKeyEnv   string   `yaml:"api_key_env,omitempty"`
	Temperature *float64 `yaml:"temperature,omitempty"`
	MaxTokens   int      `yaml:"max_tokens,omitempty"`

	// ContextWindow is the model's declared token budget, used by the
	// context-limit pre-check (spec.md §4.4 item 3).
	ContextWindow int `yaml:"context_window,omitempty"`

	MaxRetries int `yaml:"max_retries,omitempty"`
	RetryDelay int `yaml:"retry_delay,omitempty"` // seconds
	Timeout    int `yaml:"timeout,omitempty"`     // seconds
}

// SetDefaults applies the runtime's defaults for an unset Config.
func (c *Config) SetDefaults() {
	if c.Temperature == nil {
		t := 0.2
		c.Temperature = &t
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 4096
	}
	if c.ContextWindow == 0 {
		c.ContextWindow = 32768
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = 1
	}
	if c.Timeout == 0 {
		c.Timeout = 60
	}
}

// Validate checks the configuration is usable.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("llm: base_url is required")
	}
	if c.Model == "" {
		return fmt.Errorf("llm: model is required")
	}
	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2) {
		return fmt.Errorf("llm: temperature must be between 0 and 2")
	}
	return nil
}

// APIKey resolves the API key from the environment variable named by
// APIKeyEnv. Never configured inline (spec.md §6: secrets resolved from an
// environment variable name, never inline).
func (c *Config) APIKey() string {
	if c.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.APIKeyEnv)
}
