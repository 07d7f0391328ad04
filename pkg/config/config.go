// Package config loads parley's configuration: a YAML file with environment
// placeholders and PARLEY_* overrides, the static model registry, and the
// encrypted secrets store.
package config

import (
	"fmt"
	"time"

	"github.com/prometheus/common/model"
)

// Defaults applied when the file or a field is absent.
const (
	DefaultModel     = "claude-3-7-sonnet-latest"
	DefaultMaxTokens = 4096
)

// RetryConfig tunes the retry driver's backoff.
type RetryConfig struct {
	MaxAttempts   int            `yaml:"max_attempts"`
	InitialDelay  model.Duration `yaml:"initial_delay"`
	MaxDelay      model.Duration `yaml:"max_delay"`
	BackoffFactor float64        `yaml:"backoff_factor"`
	Jitter        bool           `yaml:"jitter"`
}

// TimeoutConfig tunes per-attempt deadlines: base plus a per-token scale on
// the request's output limit.
type TimeoutConfig struct {
	Base     model.Duration `yaml:"base"`
	PerToken model.Duration `yaml:"per_token"`
}

// MetricsConfig controls the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// SessionConfig locates the transcript store. An empty path disables
// persistence.
type SessionConfig struct {
	Path string `yaml:"path"`
}

// Config is parley's complete configuration.
type Config struct {
	Model        string        `yaml:"model"`
	MaxTokens    int           `yaml:"max_tokens"`
	MaxTurns     int           `yaml:"max_turns"`
	Temperature  *float64      `yaml:"temperature"`
	System       string        `yaml:"system"`
	BaseURL      string        `yaml:"base_url"`
	Streaming    bool          `yaml:"streaming"`
	BudgetTokens uint64        `yaml:"budget_tokens"`
	Workspace    string        `yaml:"workspace"`
	Retry        RetryConfig   `yaml:"retry"`
	Timeout      TimeoutConfig `yaml:"timeout"`
	Metrics      MetricsConfig `yaml:"metrics"`
	Session      SessionConfig `yaml:"session"`
}

// Default returns the configuration used when no file is present. Loading
// merges the file over these values, so absent keys keep their defaults.
func Default() *Config {
	return &Config{
		Model:     DefaultModel,
		MaxTokens: DefaultMaxTokens,
		Retry: RetryConfig{
			MaxAttempts:   4,
			InitialDelay:  model.Duration(500 * time.Millisecond),
			MaxDelay:      model.Duration(30 * time.Second),
			BackoffFactor: 2.0,
			Jitter:        true,
		},
		Timeout: TimeoutConfig{
			Base:     model.Duration(60 * time.Second),
			PerToken: model.Duration(5 * time.Millisecond),
		},
		Metrics: MetricsConfig{Listen: ":9090"},
	}
}

// Validate rejects configurations the rest of the system cannot run with.
func (c *Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("model must not be empty")
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive")
	}
	if c.MaxTurns < 0 {
		return fmt.Errorf("max_turns must not be negative")
	}
	if c.Temperature != nil && (*c.Temperature < 0.0 || *c.Temperature > 1.0) {
		return fmt.Errorf("temperature must be between 0.0 and 1.0")
	}
	if c.BudgetTokens > 0 && uint64(c.MaxTokens) > c.BudgetTokens {
		return fmt.Errorf("budget_tokens (%d) cannot cover a single exchange of max_tokens (%d)",
			c.BudgetTokens, c.MaxTokens)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1")
	}
	if c.Retry.BackoffFactor < 1.0 {
		return fmt.Errorf("retry.backoff_factor must be at least 1.0")
	}
	if c.Retry.InitialDelay < 0 || c.Retry.MaxDelay < 0 {
		return fmt.Errorf("retry delays must not be negative")
	}
	if c.Timeout.Base < 0 || c.Timeout.PerToken < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		return fmt.Errorf("metrics.listen must be set when metrics are enabled")
	}
	return nil
}
