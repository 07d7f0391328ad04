package retry

import (
	"context"
	"errors"
	"time"

	"parley/pkg/llm"
	"parley/pkg/llm/llmerrors"
)

// Per-attempt deadline defaults. A completion's deadline scales with the
// requested output window so large completions get proportionally longer.
const (
	DefaultBaseTimeout     = 60 * time.Second
	DefaultPerTokenTimeout = 50 * time.Millisecond
)

// TimeoutMiddleware returns a middleware that applies a per-attempt deadline
// to each call. Non-streaming calls get base + perToken*MaxTokens. Streaming
// calls get the connect deadline only: the timer is disarmed once the stream
// is established, so a long-lived stream never inherits the initial
// connection deadline, and the returned stream's Close releases the context.
func TimeoutMiddleware(base, perToken time.Duration) llm.Middleware {
	return func(next llm.Client) llm.Client {
		return llm.WrapClient(
			func(ctx context.Context, req llm.Request) (*llm.Response, error) {
				attemptCtx, cancel := context.WithTimeout(ctx, base+time.Duration(req.MaxTokens)*perToken)
				defer cancel()
				return next.Complete(attemptCtx, req)
			},
			func(ctx context.Context, req llm.Request) (llm.EventStream, error) {
				streamCtx, cancel := context.WithCancelCause(ctx)
				connect := time.AfterFunc(base, func() {
					cancel(context.DeadlineExceeded)
				})
				stream, err := next.Stream(streamCtx, req)
				connect.Stop()
				if err != nil {
					cancel(nil)
					// Distinguish our connect deadline from a caller cancellation.
					if errors.Is(context.Cause(streamCtx), context.DeadlineExceeded) && ctx.Err() == nil {
						return nil, llmerrors.NewErrorWithCause(llmerrors.ErrorTypeTimeout, err,
							"stream connect deadline exceeded")
					}
					return nil, err
				}
				return &cancelOnClose{EventStream: stream, cancel: func() { cancel(nil) }}, nil
			},
			next.Model,
		)
	}
}

// cancelOnClose ties the stream context's lifetime to the stream handle.
type cancelOnClose struct {
	llm.EventStream
	cancel func()
}

func (s *cancelOnClose) Close() error {
	err := s.EventStream.Close()
	s.cancel()
	return err
}
