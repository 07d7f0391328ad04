// Package metrics records client request metrics: counters and histograms
// for requests, tokens, cost, duration, and retries.
package metrics

import "time"

// Transport mode labels.
const (
	ModeComplete = "complete"
	ModeStream   = "stream"
)

// Recorder is the sink for client observations. The metrics middleware
// reports every call; the retry driver reports scheduled retries.
type Recorder interface {
	// ObserveRequest records one completed call.
	ObserveRequest(
		model, mode string,
		inputTokens, outputTokens int,
		cost float64,
		success bool,
		errorType string,
		duration time.Duration,
	)

	// ObserveRetry records a scheduled retry and the backoff before it.
	ObserveRetry(errorType string, delay time.Duration)
}

// NoopRecorder implements Recorder with no-op behavior for when metrics are
// disabled.
type NoopRecorder struct{}

// Nop returns a no-op metrics recorder that discards all observations.
func Nop() Recorder {
	return &NoopRecorder{}
}

// ObserveRequest does nothing in the no-op recorder.
func (n *NoopRecorder) ObserveRequest(
	_, _ string,
	_, _ int,
	_ float64,
	_ bool,
	_ string,
	_ time.Duration,
) {
	// No-op
}

// ObserveRetry does nothing in the no-op recorder.
func (n *NoopRecorder) ObserveRetry(_ string, _ time.Duration) {
	// No-op
}
