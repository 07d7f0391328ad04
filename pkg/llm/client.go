package llm

import (
	"context"
)

// EventStream yields decoded streaming events. Next returns io.EOF when
// the stream is complete; the caller must Close the stream even when
// iteration ends early.
//
// An EventStream is not safe for concurrent use.
type EventStream interface {
	// Next returns the next event, or io.EOF at end of stream.
	Next() (Event, error)

	// Close releases the underlying connection.
	Close() error
}

// Client is the interface for model interactions. Middleware layers
// (retry, metrics, timeouts) wrap a Client; the innermost Client talks to
// the service.
type Client interface {
	// Complete sends a request and blocks until the full response is
	// available.
	Complete(ctx context.Context, req Request) (*Response, error)

	// Stream sends a request and returns the response as an event stream.
	// Failures establishing the stream are retryable by middleware; once
	// events flow, failures surface through the stream itself.
	Stream(ctx context.Context, req Request) (EventStream, error)

	// Model returns the model identifier this client targets.
	Model() string
}
