// Package retry provides retry logic with exponential backoff for resilient
// client calls, plus per-attempt timeout middleware.
package retry

import (
	"math"
	"math/rand/v2"
	"time"

	"parley/pkg/llm/llmerrors"
)

// Config defines configuration for retry behavior.
type Config struct {
	MaxAttempts   int           `json:"max_attempts"`   // Maximum number of attempts (including initial)
	InitialDelay  time.Duration `json:"initial_delay"`  // Delay before the first retry
	MaxDelay      time.Duration `json:"max_delay"`      // Maximum delay between retries
	BackoffFactor float64       `json:"backoff_factor"` // Multiplier for exponential backoff
	Jitter        bool          `json:"jitter"`         // Add random jitter to prevent thundering herd
}

// DefaultConfig provides reasonable defaults for retry behavior.
//
//nolint:gochecknoglobals // Sensible default config pattern
var DefaultConfig = Config{
	MaxAttempts:   4,
	InitialDelay:  500 * time.Millisecond,
	MaxDelay:      30 * time.Second,
	BackoffFactor: 2.0,
	Jitter:        true,
}

// Classifier determines if an error should be retried.
type Classifier func(error) bool

// Policy encapsulates retry configuration and logic.
//
//nolint:govet // Simple struct, logical grouping preferred
type Policy struct {
	Config     Config
	Classifier Classifier
}

// NewPolicy creates a new retry policy with the given configuration and
// classifier. A nil classifier falls back to llmerrors.IsRetryable.
func NewPolicy(config Config, classifier Classifier) *Policy {
	if classifier == nil {
		classifier = llmerrors.IsRetryable
	}
	return &Policy{
		Config:     config,
		Classifier: classifier,
	}
}

// PolicyFor builds a policy tuned for one error class from the per-type
// retry configs. Rate limits back off longer than transport blips.
func PolicyFor(errorType llmerrors.ErrorType) *Policy {
	rc, ok := llmerrors.DefaultRetryConfigs[errorType]
	if !ok {
		rc = llmerrors.DefaultRetryConfigs[llmerrors.ErrorTypeUnknown]
	}
	return NewPolicy(Config{
		MaxAttempts:   rc.MaxAttempts,
		InitialDelay:  rc.InitialDelay,
		MaxDelay:      rc.MaxDelay,
		BackoffFactor: rc.BackoffFactor,
		Jitter:        rc.Jitter,
	}, nil)
}

// Delay computes the backoff before the given attempt. Attempts are numbered
// from zero: the initial attempt waits nothing, attempt n >= 1 waits
// InitialDelay * BackoffFactor^(n-1) capped at MaxDelay, with +/-10% jitter
// when enabled.
func (p *Policy) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	delay := time.Duration(float64(p.Config.InitialDelay) * math.Pow(p.Config.BackoffFactor, float64(attempt-1)))

	// Cap at maximum delay
	if delay > p.Config.MaxDelay {
		delay = p.Config.MaxDelay
	}

	// Add jitter if enabled
	if p.Config.Jitter && delay > 0 {
		jitter := time.Duration(float64(delay) * 0.1 * (2*rand.Float64() - 1))
		delay += jitter
		if delay < 0 {
			delay = p.Config.InitialDelay
		}
	}

	return delay
}

// DelayAfter computes the wait before the given attempt, honoring a
// server-supplied retry-after hint. The hint replaces the computed backoff
// and is used as-is; only computed delays are subject to the MaxDelay cap.
func (p *Policy) DelayAfter(attempt int, retryAfter time.Duration) time.Duration {
	if retryAfter > 0 {
		return retryAfter
	}
	return p.Delay(attempt)
}

// ShouldRetry determines if an error should be retried based on the
// configured classifier.
func (p *Policy) ShouldRetry(err error) bool {
	return p.Classifier(err)
}
