// Package llmerrors provides structured error classification for
// conversational-API interactions. Every failure that crosses the wire, the
// stream decoder, the budget allocator, or the tool protocol is wrapped in
// a classified Error so retry and orchestration layers can decide policy
// without string matching.
package llmerrors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// ErrorType represents different categories of client errors for retry logic.
type ErrorType int8

const (
	// Retryable error types.

	// ErrorTypeTransport represents connection-level failures (refused,
	// reset, DNS) before or during an attempt.
	ErrorTypeTransport ErrorType = iota
	// ErrorTypeTimeout represents a per-attempt deadline hit, either locally
	// (context deadline) or server-side (HTTP 408).
	ErrorTypeTimeout
	// ErrorTypeRateLimit represents rate limiting (HTTP 429); carries the
	// server's retry-after hint when present.
	ErrorTypeRateLimit
	// ErrorTypeOverloaded represents transient server trouble (HTTP 409,
	// 5xx); may carry a retry-after hint.
	ErrorTypeOverloaded

	// Non-retryable error types.

	// ErrorTypeAuth represents credential failures (HTTP 401/403).
	ErrorTypeAuth
	// ErrorTypeValidation represents a malformed request, rejected either
	// before send or by the server (HTTP 400).
	ErrorTypeValidation
	// ErrorTypeNotFound represents HTTP 404 (wrong base URL or resource).
	ErrorTypeNotFound
	// ErrorTypeDecode represents a payload that failed to parse: one stream
	// event or a non-streaming response body.
	ErrorTypeDecode
	// ErrorTypeStreamMalformed represents unrecoverable stream framing
	// (invalid byte sequences); terminal for the stream.
	ErrorTypeStreamMalformed
	// ErrorTypeBudget represents token-budget exhaustion for the current turn.
	ErrorTypeBudget
	// ErrorTypeToolAbort represents a tool's abort signal; terminal for the run.
	ErrorTypeToolAbort

	// ErrorTypeUnknown is the default for unclassified errors.
	ErrorTypeUnknown
)

// String returns the string representation of the error type.
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeTransport:
		return "transport"
	case ErrorTypeTimeout:
		return "timeout"
	case ErrorTypeRateLimit:
		return "rate_limit"
	case ErrorTypeOverloaded:
		return "overloaded"
	case ErrorTypeAuth:
		return "auth"
	case ErrorTypeValidation:
		return "validation"
	case ErrorTypeNotFound:
		return "not_found"
	case ErrorTypeDecode:
		return "decode"
	case ErrorTypeStreamMalformed:
		return "stream_malformed"
	case ErrorTypeBudget:
		return "budget_exhausted"
	case ErrorTypeToolAbort:
		return "tool_abort"
	case ErrorTypeUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// RetryConfig defines exponential backoff parameters for one error type.
type RetryConfig struct {
	MaxAttempts   int           // Attempt ceiling, including the initial attempt
	InitialDelay  time.Duration // Delay before the first retry
	MaxDelay      time.Duration // Cap on the computed delay
	BackoffFactor float64       // Multiplier between successive delays
	Jitter        bool          // Randomize delays to avoid thundering herds
}

// DefaultRetryConfigs provides per-type retry tuning. Rate limits back off
// longer than plain transport blips; fatal types get a single attempt.
//
//nolint:gochecknoglobals // Configuration map - acceptable for package defaults
var DefaultRetryConfigs = map[ErrorType]RetryConfig{
	ErrorTypeTransport: {
		MaxAttempts:   4,
		InitialDelay:  500 * time.Millisecond,
		MaxDelay:      10 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        true,
	},
	ErrorTypeTimeout: {
		MaxAttempts:   4,
		InitialDelay:  500 * time.Millisecond,
		MaxDelay:      10 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        true,
	},
	ErrorTypeRateLimit: {
		MaxAttempts:   6,
		InitialDelay:  1 * time.Second,
		MaxDelay:      60 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        true,
	},
	ErrorTypeOverloaded: {
		MaxAttempts:   5,
		InitialDelay:  2 * time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        true,
	},
	ErrorTypeUnknown: {
		MaxAttempts:   2,
		InitialDelay:  1 * time.Second,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        true,
	},
}

// Error represents a classified client error with retry metadata.
type Error struct {
	Err        error         // Wrapped underlying error
	Message    string        // Human-readable error message
	RequestID  string        // Server request ID when the response carried one
	RetryAfter time.Duration // Server retry-after hint; 0 means no hint
	Type       ErrorType     // Classified error type
	StatusCode int           // HTTP status code if applicable
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.StatusCode != 0:
		return fmt.Sprintf("llm error (%s, status %d): %s", e.Type, e.StatusCode, e.Message)
	case e.Message != "":
		return fmt.Sprintf("llm error (%s): %s", e.Type, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("llm error (%s): %v", e.Type, e.Err)
	default:
		return fmt.Sprintf("llm error (%s): status %d", e.Type, e.StatusCode)
	}
}

// Unwrap returns the underlying error for error unwrapping.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether the retry driver may re-attempt after this
// error. Blocklist approach: retry unless the type is known-fatal.
func (e *Error) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeAuth, ErrorTypeValidation, ErrorTypeNotFound,
		ErrorTypeDecode, ErrorTypeStreamMalformed,
		ErrorTypeBudget, ErrorTypeToolAbort:
		return false
	default:
		return true
	}
}

// GetRetryConfig returns the retry tuning for this error type.
func (e *Error) GetRetryConfig() RetryConfig {
	if config, exists := DefaultRetryConfigs[e.Type]; exists {
		return config
	}
	return DefaultRetryConfigs[ErrorTypeUnknown]
}

// Is checks if an error (anywhere in its chain) is of a specific type.
func Is(err error, errorType ErrorType) bool {
	var clientErr *Error
	if errors.As(err, &clientErr) {
		return clientErr.Type == errorType
	}
	return false
}

// TypeOf returns the error type of an error, or ErrorTypeUnknown if not
// classified.
func TypeOf(err error) ErrorType {
	var clientErr *Error
	if errors.As(err, &clientErr) {
		return clientErr.Type
	}
	return ErrorTypeUnknown
}

// IsRetryable reports whether err should be retried. Context cancellation
// is never retryable: the caller has given up. Unclassified errors default
// to retryable, matching the blocklist stance of (*Error).IsRetryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var clientErr *Error
	if errors.As(err, &clientErr) {
		return clientErr.IsRetryable()
	}
	return true
}

// RetryAfterOf extracts the server's retry-after hint from a classified
// error chain. Returns false when no hint is present.
func RetryAfterOf(err error) (time.Duration, bool) {
	var clientErr *Error
	if errors.As(err, &clientErr) && clientErr.RetryAfter > 0 {
		return clientErr.RetryAfter, true
	}
	return 0, false
}

// NewError creates a new classified error.
func NewError(errorType ErrorType, message string) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
	}
}

// NewErrorWithStatus creates a new classified error with an HTTP status.
func NewErrorWithStatus(errorType ErrorType, statusCode int, message string) *Error {
	return &Error{
		Type:       errorType,
		StatusCode: statusCode,
		Message:    message,
	}
}

// NewErrorWithCause creates a new classified error wrapping another error.
func NewErrorWithCause(errorType ErrorType, cause error, message string) *Error {
	return &Error{
		Type:    errorType,
		Err:     cause,
		Message: message,
	}
}

// maxErrorBodyBytes bounds how much of an error response body is read;
// error payloads are small and anything larger is noise.
const maxErrorBodyBytes = 4096

// wireError is the common error envelope the service returns:
// {"type":"error","error":{"type":"...","message":"..."}}.
type wireError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// FromResponse classifies a non-2xx HTTP response into an Error, reading a
// bounded prefix of body. The status mapping follows the service contract:
//
//	400 validation · 401/403 auth · 404 not_found · 408 timeout
//	409 overloaded · 429 rate_limit (+retry-after)
//	500 overloaded (+request-id) · 502/503/504 overloaded (+retry-after)
func FromResponse(statusCode int, body io.Reader, header http.Header) *Error {
	raw, _ := io.ReadAll(io.LimitReader(body, maxErrorBodyBytes))

	message := string(raw)
	var envelope wireError
	if json.Unmarshal(raw, &envelope) == nil && envelope.Error.Message != "" {
		message = envelope.Error.Message
	}

	clientErr := &Error{
		StatusCode: statusCode,
		Message:    message,
		RequestID:  header.Get("request-id"),
	}

	switch {
	case statusCode == http.StatusBadRequest:
		clientErr.Type = ErrorTypeValidation
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		clientErr.Type = ErrorTypeAuth
	case statusCode == http.StatusNotFound:
		clientErr.Type = ErrorTypeNotFound
	case statusCode == http.StatusRequestTimeout:
		clientErr.Type = ErrorTypeTimeout
	case statusCode == http.StatusConflict:
		clientErr.Type = ErrorTypeOverloaded
	case statusCode == http.StatusTooManyRequests:
		clientErr.Type = ErrorTypeRateLimit
		clientErr.RetryAfter = parseRetryAfter(header)
	case statusCode >= 500:
		clientErr.Type = ErrorTypeOverloaded
		clientErr.RetryAfter = parseRetryAfter(header)
	default:
		clientErr.Type = ErrorTypeUnknown
	}

	return clientErr
}

// FromAPIType classifies a wire error-type string, as carried by error
// response envelopes and in-stream error events.
func FromAPIType(apiType, message string) *Error {
	clientErr := &Error{Message: message}
	switch apiType {
	case "invalid_request_error":
		clientErr.Type = ErrorTypeValidation
	case "authentication_error", "permission_error":
		clientErr.Type = ErrorTypeAuth
	case "not_found_error":
		clientErr.Type = ErrorTypeNotFound
	case "rate_limit_error":
		clientErr.Type = ErrorTypeRateLimit
	case "timeout_error":
		clientErr.Type = ErrorTypeTimeout
	case "api_error", "overloaded_error":
		clientErr.Type = ErrorTypeOverloaded
	default:
		clientErr.Type = ErrorTypeUnknown
	}
	return clientErr
}

// parseRetryAfter reads the retry-after header as delay seconds or an HTTP
// date. Returns 0 when absent or unparseable.
func parseRetryAfter(header http.Header) time.Duration {
	value := header.Get("retry-after")
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if delay := time.Until(at); delay > 0 {
			return delay
		}
	}
	return 0
}
