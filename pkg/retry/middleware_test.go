package retry

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"parley/pkg/llm"
	"parley/pkg/llm/llmerrors"
)

// fastConfig keeps test backoff delays negligible.
func fastConfig(maxAttempts int) Config {
	return Config{
		MaxAttempts:   maxAttempts,
		InitialDelay:  time.Millisecond,
		MaxDelay:      10 * time.Millisecond,
		BackoffFactor: 2.0,
		Jitter:        false,
	}
}

func TestMiddleware_FirstAttemptSucceeds(t *testing.T) {
	mock := llm.NewMockClient("test-model", llm.MockText("hello", llm.StopEndTurn))
	client := llm.Chain(mock, Middleware(NewPolicy(fastConfig(4), nil)))

	resp, err := client.Complete(context.Background(), llm.Request{MaxTokens: 16})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if resp.Text() != "hello" {
		t.Errorf("Expected response text %q, got: %q", "hello", resp.Text())
	}
	if calls := len(mock.Calls()); calls != 1 {
		t.Errorf("Expected 1 attempt, got: %d", calls)
	}
}

func TestMiddleware_RetriesTransientFailures(t *testing.T) {
	overloaded := &llmerrors.Error{Type: llmerrors.ErrorTypeOverloaded, StatusCode: 529, Message: "overloaded"}
	mock := llm.NewMockClient("test-model",
		llm.MockError(overloaded),
		llm.MockError(overloaded),
		llm.MockText("recovered", llm.StopEndTurn),
	)
	client := llm.Chain(mock, Middleware(NewPolicy(fastConfig(4), nil)))

	resp, err := client.Complete(context.Background(), llm.Request{MaxTokens: 16})
	if err != nil {
		t.Fatalf("Expected recovery after transient failures, got: %v", err)
	}
	if resp.Text() != "recovered" {
		t.Errorf("Expected response text %q, got: %q", "recovered", resp.Text())
	}
	if calls := len(mock.Calls()); calls != 3 {
		t.Errorf("Expected 3 attempts, got: %d", calls)
	}
}

func TestMiddleware_FatalErrorSingleAttempt(t *testing.T) {
	authErr := &llmerrors.Error{Type: llmerrors.ErrorTypeAuth, StatusCode: 401, Message: "invalid x-api-key"}
	mock := llm.NewMockClient("test-model",
		llm.MockError(authErr),
		llm.MockText("never reached", llm.StopEndTurn),
	)
	client := llm.Chain(mock, Middleware(NewPolicy(fastConfig(4), nil)))

	_, err := client.Complete(context.Background(), llm.Request{MaxTokens: 16})
	if err == nil {
		t.Fatal("Expected auth error to surface")
	}
	if !llmerrors.Is(err, llmerrors.ErrorTypeAuth) {
		t.Errorf("Expected auth classification, got: %v", err)
	}
	// Fatal errors return bare, without the exhaustion wrapper.
	if strings.Contains(err.Error(), "attempts") {
		t.Errorf("Fatal error should not carry an attempt count: %v", err)
	}
	if calls := len(mock.Calls()); calls != 1 {
		t.Errorf("Expected a single attempt for a fatal error, got: %d", calls)
	}
}

func TestMiddleware_ExhaustionWrapsLastError(t *testing.T) {
	rateLimited := &llmerrors.Error{Type: llmerrors.ErrorTypeRateLimit, StatusCode: 429, Message: "slow down"}
	mock := llm.NewMockClient("test-model",
		llm.MockError(rateLimited),
		llm.MockError(rateLimited),
		llm.MockError(rateLimited),
	)
	client := llm.Chain(mock, Middleware(NewPolicy(fastConfig(3), nil)))

	_, err := client.Complete(context.Background(), llm.Request{MaxTokens: 16})
	if err == nil {
		t.Fatal("Expected exhaustion error")
	}
	if !strings.Contains(err.Error(), "after 3 attempts") {
		t.Errorf("Expected attempt count in exhaustion error, got: %v", err)
	}
	// The classified failure stays reachable through the wrapper.
	if !llmerrors.Is(err, llmerrors.ErrorTypeRateLimit) {
		t.Errorf("Expected rate limit classification through wrapper, got: %v", err)
	}
	if calls := len(mock.Calls()); calls != 3 {
		t.Errorf("Expected 3 attempts, got: %d", calls)
	}
}

func TestMiddleware_HonorsRetryAfterHint(t *testing.T) {
	hinted := &llmerrors.Error{
		Type:       llmerrors.ErrorTypeRateLimit,
		StatusCode: 429,
		Message:    "slow down",
		RetryAfter: 30 * time.Millisecond,
	}
	mock := llm.NewMockClient("test-model",
		llm.MockError(hinted),
		llm.MockText("ok", llm.StopEndTurn),
	)
	client := llm.Chain(mock, Middleware(NewPolicy(fastConfig(4), nil)))

	start := time.Now()
	_, err := client.Complete(context.Background(), llm.Request{MaxTokens: 16})
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if elapsed < 30*time.Millisecond {
		t.Errorf("Expected retry-after hint to gate the retry, waited only %v", elapsed)
	}
}

func TestMiddleware_CancelDuringBackoff(t *testing.T) {
	overloaded := &llmerrors.Error{Type: llmerrors.ErrorTypeOverloaded, StatusCode: 503, Message: "overloaded"}
	mock := llm.NewMockClient("test-model",
		llm.MockError(overloaded),
		llm.MockText("never reached", llm.StopEndTurn),
	)
	slow := Config{
		MaxAttempts:   4,
		InitialDelay:  5 * time.Second,
		MaxDelay:      10 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        false,
	}
	client := llm.Chain(mock, Middleware(NewPolicy(slow, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := client.Complete(ctx, llm.Request{MaxTokens: 16})
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("Expected cancellation error")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled in chain, got: %v", err)
	}
	if elapsed >= time.Second {
		t.Errorf("Expected prompt cancellation, waited %v", elapsed)
	}
	if calls := len(mock.Calls()); calls != 1 {
		t.Errorf("Expected no attempt after cancellation, got: %d", calls)
	}
}

func TestMiddleware_StreamEstablishmentRetries(t *testing.T) {
	overloaded := &llmerrors.Error{Type: llmerrors.ErrorTypeOverloaded, StatusCode: 529, Message: "overloaded"}
	mock := llm.NewMockClient("test-model",
		llm.MockError(overloaded),
		llm.MockText("streamed", llm.StopEndTurn),
	)
	client := llm.Chain(mock, Middleware(NewPolicy(fastConfig(4), nil)))

	stream, err := client.Stream(context.Background(), llm.Request{MaxTokens: 16, Stream: true})
	if err != nil {
		t.Fatalf("Expected stream establishment to recover, got: %v", err)
	}
	defer stream.Close()

	if calls := len(mock.Calls()); calls != 2 {
		t.Errorf("Expected 2 establishment attempts, got: %d", calls)
	}
	for {
		if _, err := stream.Next(); err == io.EOF {
			break
		} else if err != nil {
			t.Fatalf("Unexpected stream error: %v", err)
		}
	}
}

func TestMiddleware_ModelPassthrough(t *testing.T) {
	mock := llm.NewMockClient("test-model")
	client := llm.Chain(mock, Middleware(NewPolicy(fastConfig(2), nil)))

	if client.Model() != "test-model" {
		t.Errorf("Expected model passthrough, got: %q", client.Model())
	}
}

// stubObserver records every scheduled retry it is notified about.
type stubObserver struct {
	errorTypes []string
	delays     []time.Duration
}

func (s *stubObserver) ObserveRetry(errorType string, delay time.Duration) {
	s.errorTypes = append(s.errorTypes, errorType)
	s.delays = append(s.delays, delay)
}

func TestMiddleware_NotifiesObserverPerRetry(t *testing.T) {
	overloaded := &llmerrors.Error{Type: llmerrors.ErrorTypeOverloaded, StatusCode: 529, Message: "overloaded"}
	mock := llm.NewMockClient("test-model",
		llm.MockError(overloaded),
		llm.MockError(overloaded),
		llm.MockText("recovered", llm.StopEndTurn),
	)
	obs := &stubObserver{}
	client := llm.Chain(mock, Middleware(NewPolicy(fastConfig(4), nil), obs))

	if _, err := client.Complete(context.Background(), llm.Request{MaxTokens: 16}); err != nil {
		t.Fatalf("Expected recovery, got: %v", err)
	}

	if len(obs.errorTypes) != 2 {
		t.Fatalf("Expected 2 retry notifications, got: %d", len(obs.errorTypes))
	}
	for i, et := range obs.errorTypes {
		if et != "overloaded" {
			t.Errorf("Notification %d: expected overloaded classification, got: %q", i, et)
		}
	}
	// Jitter is off, so the backoff sequence is exact.
	if obs.delays[0] != time.Millisecond || obs.delays[1] != 2*time.Millisecond {
		t.Errorf("Expected backoffs of 1ms then 2ms, got: %v", obs.delays)
	}
}

func TestMiddleware_NoNotificationWithoutRetries(t *testing.T) {
	mock := llm.NewMockClient("test-model", llm.MockText("hello", llm.StopEndTurn))
	obs := &stubObserver{}
	client := llm.Chain(mock, Middleware(NewPolicy(fastConfig(4), nil), obs))

	if _, err := client.Complete(context.Background(), llm.Request{MaxTokens: 16}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(obs.errorTypes) != 0 {
		t.Errorf("Expected no notifications on first-attempt success, got: %d", len(obs.errorTypes))
	}
}
