package llmerrors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestFromResponse_StatusMapping(t *testing.T) {
	cases := []struct {
		status int
		want   ErrorType
	}{
		{http.StatusBadRequest, ErrorTypeValidation},
		{http.StatusUnauthorized, ErrorTypeAuth},
		{http.StatusForbidden, ErrorTypeAuth},
		{http.StatusNotFound, ErrorTypeNotFound},
		{http.StatusRequestTimeout, ErrorTypeTimeout},
		{http.StatusConflict, ErrorTypeOverloaded},
		{http.StatusTooManyRequests, ErrorTypeRateLimit},
		{http.StatusInternalServerError, ErrorTypeOverloaded},
		{http.StatusBadGateway, ErrorTypeOverloaded},
		{http.StatusServiceUnavailable, ErrorTypeOverloaded},
		{http.StatusGatewayTimeout, ErrorTypeOverloaded},
		{http.StatusTeapot, ErrorTypeUnknown},
	}

	for _, tc := range cases {
		err := FromResponse(tc.status, strings.NewReader(""), http.Header{})
		if err.Type != tc.want {
			t.Errorf("status %d: got type %s, want %s", tc.status, err.Type, tc.want)
		}
		if err.StatusCode != tc.status {
			t.Errorf("status %d: StatusCode = %d", tc.status, err.StatusCode)
		}
	}
}

func TestFromResponse_ParsesErrorEnvelope(t *testing.T) {
	body := `{"type":"error","error":{"type":"invalid_request_error","message":"max_tokens is required"}}`
	err := FromResponse(http.StatusBadRequest, strings.NewReader(body), http.Header{})

	if err.Message != "max_tokens is required" {
		t.Errorf("message = %q, want the envelope message", err.Message)
	}
}

func TestFromResponse_RawBodyWhenNotJSON(t *testing.T) {
	err := FromResponse(http.StatusServiceUnavailable, strings.NewReader("upstream connect error"), http.Header{})

	if err.Message != "upstream connect error" {
		t.Errorf("message = %q, want raw body", err.Message)
	}
}

func TestFromResponse_RetryAfterSeconds(t *testing.T) {
	header := http.Header{}
	header.Set("retry-after", "7")
	err := FromResponse(http.StatusTooManyRequests, strings.NewReader(""), header)

	if err.RetryAfter != 7*time.Second {
		t.Errorf("RetryAfter = %v, want 7s", err.RetryAfter)
	}
	if got, ok := RetryAfterOf(err); !ok || got != 7*time.Second {
		t.Errorf("RetryAfterOf = %v, %v; want 7s, true", got, ok)
	}
}

func TestFromResponse_RetryAfterHTTPDate(t *testing.T) {
	header := http.Header{}
	header.Set("retry-after", time.Now().Add(30*time.Second).UTC().Format(http.TimeFormat))
	err := FromResponse(http.StatusServiceUnavailable, strings.NewReader(""), header)

	if err.RetryAfter <= 0 || err.RetryAfter > 31*time.Second {
		t.Errorf("RetryAfter = %v, want roughly 30s", err.RetryAfter)
	}
}

func TestFromResponse_RequestID(t *testing.T) {
	header := http.Header{}
	header.Set("request-id", "req_abc123")
	err := FromResponse(http.StatusInternalServerError, strings.NewReader(""), header)

	if err.RequestID != "req_abc123" {
		t.Errorf("RequestID = %q", err.RequestID)
	}
}

func TestIsRetryable_Blocklist(t *testing.T) {
	retryable := []ErrorType{ErrorTypeTransport, ErrorTypeTimeout, ErrorTypeRateLimit, ErrorTypeOverloaded, ErrorTypeUnknown}
	fatal := []ErrorType{ErrorTypeAuth, ErrorTypeValidation, ErrorTypeNotFound, ErrorTypeDecode, ErrorTypeStreamMalformed, ErrorTypeBudget, ErrorTypeToolAbort}

	for _, et := range retryable {
		if !NewError(et, "x").IsRetryable() {
			t.Errorf("%s should be retryable", et)
		}
	}
	for _, et := range fatal {
		if NewError(et, "x").IsRetryable() {
			t.Errorf("%s should not be retryable", et)
		}
	}
}

func TestIsRetryable_ContextCanceled(t *testing.T) {
	if IsRetryable(context.Canceled) {
		t.Error("context.Canceled must not be retryable")
	}
	wrapped := fmt.Errorf("send request: %w", context.Canceled)
	if IsRetryable(wrapped) {
		t.Error("wrapped context.Canceled must not be retryable")
	}
}

func TestIsRetryable_DeadlineExceeded(t *testing.T) {
	// A blown attempt deadline is transient: the next attempt gets a fresh one.
	if !IsRetryable(context.DeadlineExceeded) {
		t.Error("context.DeadlineExceeded should be retryable")
	}
}

func TestIsRetryable_UnclassifiedDefaultsRetryable(t *testing.T) {
	if !IsRetryable(errors.New("connection reset by peer")) {
		t.Error("unclassified errors default to retryable")
	}
}

func TestIs_ThroughWrapping(t *testing.T) {
	inner := NewErrorWithStatus(ErrorTypeRateLimit, 429, "slow down")
	wrapped := fmt.Errorf("attempt 3: %w", inner)

	if !Is(wrapped, ErrorTypeRateLimit) {
		t.Error("Is should find the classified type through wrapping")
	}
	if TypeOf(wrapped) != ErrorTypeRateLimit {
		t.Errorf("TypeOf = %s, want rate_limit", TypeOf(wrapped))
	}
}

func TestTypeOf_Unclassified(t *testing.T) {
	if TypeOf(errors.New("plain")) != ErrorTypeUnknown {
		t.Error("unclassified errors report ErrorTypeUnknown")
	}
}

func TestErrorString(t *testing.T) {
	err := NewErrorWithStatus(ErrorTypeAuth, 401, "invalid x-api-key")
	want := "llm error (auth, status 401): invalid x-api-key"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := NewErrorWithCause(ErrorTypeTransport, cause, "send request")

	if !errors.Is(err, cause) {
		t.Error("errors.Is should reach the wrapped cause")
	}
}

func TestGetRetryConfig_FallsBackToUnknown(t *testing.T) {
	cfg := NewError(ErrorTypeDecode, "bad payload").GetRetryConfig()
	if cfg.MaxAttempts != DefaultRetryConfigs[ErrorTypeUnknown].MaxAttempts {
		t.Errorf("decode errors should fall back to the unknown config, got %+v", cfg)
	}
}
