package metrics

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"parley/pkg/llm"
	"parley/pkg/llm/llmerrors"
)

// requestObservation captures one ObserveRequest call for inspection.
type requestObservation struct {
	model        string
	mode         string
	inputTokens  int
	outputTokens int
	cost         float64
	success      bool
	errorType    string
	duration     time.Duration
}

// stubRecorder records observations instead of exporting them.
type stubRecorder struct {
	mu       sync.Mutex
	requests []requestObservation
}

func (s *stubRecorder) ObserveRequest(
	model, mode string,
	inputTokens, outputTokens int,
	cost float64,
	success bool,
	errorType string,
	duration time.Duration,
) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, requestObservation{
		model:        model,
		mode:         mode,
		inputTokens:  inputTokens,
		outputTokens: outputTokens,
		cost:         cost,
		success:      success,
		errorType:    errorType,
		duration:     duration,
	})
}

func (s *stubRecorder) ObserveRetry(_ string, _ time.Duration) {}

func (s *stubRecorder) observations() []requestObservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]requestObservation, len(s.requests))
	copy(out, s.requests)
	return out
}

// ====================================================================================
// Middleware Tests
// ====================================================================================

func TestMiddleware_RecordsSuccessfulComplete(t *testing.T) {
	rec := &stubRecorder{}
	mock := llm.NewMockClient("claude-3-5-haiku-latest", llm.MockText("hi", llm.StopEndTurn))
	client := llm.Chain(mock, Middleware(rec))

	resp, err := client.Complete(context.Background(), llm.Request{MaxTokens: 16})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if resp.Text() != "hi" {
		t.Errorf("Middleware must pass the response through, got: %q", resp.Text())
	}

	obs := rec.observations()
	if len(obs) != 1 {
		t.Fatalf("Expected 1 observation, got: %d", len(obs))
	}
	got := obs[0]
	if got.model != "claude-3-5-haiku-latest" || got.mode != ModeComplete {
		t.Errorf("Expected complete call on haiku, got: %s/%s", got.model, got.mode)
	}
	if !got.success || got.errorType != "" {
		t.Errorf("Expected success with no error type, got: success=%v type=%q", got.success, got.errorType)
	}
	if got.inputTokens != 10 || got.outputTokens != 5 {
		t.Errorf("Expected reported usage 10+5, got: %d+%d", got.inputTokens, got.outputTokens)
	}
	// Haiku pricing: 10 input at $0.80/M plus 5 output at $4/M.
	if want := 10*0.8/1e6 + 5*4.0/1e6; math.Abs(got.cost-want) > 1e-12 {
		t.Errorf("Expected cost %v, got: %v", want, got.cost)
	}
}

func TestMiddleware_RecordsErrorClassification(t *testing.T) {
	rec := &stubRecorder{}
	rateLimited := &llmerrors.Error{Type: llmerrors.ErrorTypeRateLimit, StatusCode: 429, Message: "slow down"}
	mock := llm.NewMockClient("test-model", llm.MockError(rateLimited))
	client := llm.Chain(mock, Middleware(rec))

	_, err := client.Complete(context.Background(), llm.Request{MaxTokens: 16})
	if !llmerrors.Is(err, llmerrors.ErrorTypeRateLimit) {
		t.Fatalf("Middleware must pass the error through unchanged, got: %v", err)
	}

	obs := rec.observations()
	if len(obs) != 1 {
		t.Fatalf("Expected 1 observation, got: %d", len(obs))
	}
	got := obs[0]
	if got.success || got.errorType != "rate_limit" {
		t.Errorf("Expected rate_limit failure, got: success=%v type=%q", got.success, got.errorType)
	}
	if got.inputTokens != 0 || got.outputTokens != 0 || got.cost != 0 {
		t.Errorf("Expected no usage on error, got: %d+%d cost=%v", got.inputTokens, got.outputTokens, got.cost)
	}
}

func TestMiddleware_StreamRecordsEstablishmentOnly(t *testing.T) {
	rec := &stubRecorder{}
	mock := llm.NewMockClient("test-model", llm.MockText("streamed", llm.StopEndTurn))
	client := llm.Chain(mock, Middleware(rec))

	stream, err := client.Stream(context.Background(), llm.Request{MaxTokens: 16})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	defer stream.Close()

	obs := rec.observations()
	if len(obs) != 1 {
		t.Fatalf("Expected 1 observation at establishment, got: %d", len(obs))
	}
	got := obs[0]
	if got.mode != ModeStream || !got.success {
		t.Errorf("Expected successful stream establishment, got: mode=%s success=%v", got.mode, got.success)
	}
	// Usage arrives inside the stream, not at establishment.
	if got.inputTokens != 0 || got.outputTokens != 0 {
		t.Errorf("Expected no token counts at establishment, got: %d+%d", got.inputTokens, got.outputTokens)
	}
}

func TestMiddleware_StreamEstablishmentFailure(t *testing.T) {
	rec := &stubRecorder{}
	authErr := &llmerrors.Error{Type: llmerrors.ErrorTypeAuth, StatusCode: 401, Message: "invalid x-api-key"}
	mock := llm.NewMockClient("test-model", llm.MockError(authErr))
	client := llm.Chain(mock, Middleware(rec))

	_, err := client.Stream(context.Background(), llm.Request{MaxTokens: 16})
	if !llmerrors.Is(err, llmerrors.ErrorTypeAuth) {
		t.Fatalf("Expected auth error to surface, got: %v", err)
	}

	obs := rec.observations()
	if len(obs) != 1 {
		t.Fatalf("Expected 1 observation, got: %d", len(obs))
	}
	if got := obs[0]; got.success || got.errorType != "auth" || got.mode != ModeStream {
		t.Errorf("Expected failed stream establishment with auth type, got: %+v", got)
	}
}

func TestMiddleware_UnknownModelCostsZero(t *testing.T) {
	rec := &stubRecorder{}
	mock := llm.NewMockClient("not-a-known-model", llm.MockText("hi", llm.StopEndTurn))
	client := llm.Chain(mock, Middleware(rec))

	if _, err := client.Complete(context.Background(), llm.Request{MaxTokens: 16}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	obs := rec.observations()
	if len(obs) != 1 {
		t.Fatalf("Expected 1 observation, got: %d", len(obs))
	}
	if got := obs[0]; got.cost != 0 {
		t.Errorf("Unknown models have no pricing; expected zero cost, got: %v", got.cost)
	}
}
