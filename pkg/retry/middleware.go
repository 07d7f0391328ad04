package retry

import (
	"context"
	"fmt"
	"time"

	"parley/pkg/llm"
	"parley/pkg/llm/llmerrors"
	"parley/pkg/logx"
)

// Observer is notified when the driver schedules another attempt. The
// metrics recorder is the usual implementation.
type Observer interface {
	ObserveRetry(errorType string, delay time.Duration)
}

// Middleware returns a middleware function that wraps a client with retry
// logic. Failed calls are re-attempted according to the policy, with
// exponential backoff between retryable failures; a server retry-after hint
// takes precedence over the computed delay. Observers hear about every
// scheduled retry.
//
// Streaming calls retry establishment only: once a stream handle has been
// returned, failures surface as stream errors, never as new attempts.
func Middleware(policy *Policy, observers ...Observer) llm.Middleware {
	logger := logx.NewLogger("retry")
	notify := func(errorType string, delay time.Duration) {
		for _, o := range observers {
			o.ObserveRetry(errorType, delay)
		}
	}
	return func(next llm.Client) llm.Client {
		return llm.WrapClient(
			// Complete implementation with retry
			func(ctx context.Context, req llm.Request) (*llm.Response, error) {
				var resp *llm.Response
				err := attempt(ctx, policy, logger, notify, func() error {
					var callErr error
					resp, callErr = next.Complete(ctx, req)
					return callErr
				})
				if err != nil {
					return nil, err
				}
				return resp, nil
			},
			// Stream establishment with retry
			func(ctx context.Context, req llm.Request) (llm.EventStream, error) {
				var stream llm.EventStream
				err := attempt(ctx, policy, logger, notify, func() error {
					var callErr error
					stream, callErr = next.Stream(ctx, req)
					return callErr
				})
				if err != nil {
					return nil, err
				}
				return stream, nil
			},
			next.Model,
		)
	}
}

// attempt runs fn up to MaxAttempts times, waiting out the backoff delay
// between retryable failures. It returns nil on the first success, the bare
// error on a fatal failure, and the last error wrapped with the attempt
// count when retries are exhausted.
func attempt(ctx context.Context, policy *Policy, logger *logx.Logger, notify func(string, time.Duration), fn func() error) error {
	maxAttempts := policy.Config.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for n := 0; n < maxAttempts; n++ {
		// Wait for backoff delay (except on the initial attempt)
		if n > 0 {
			hint, _ := llmerrors.RetryAfterOf(lastErr)
			delay := policy.DelayAfter(n, hint)
			notify(llmerrors.TypeOf(lastErr).String(), delay)
			if delay > 0 {
				logger.Debug("attempt %d/%d in %v after: %v", n+1, maxAttempts, delay, lastErr)
				select {
				case <-ctx.Done():
					return fmt.Errorf("retry cancelled: %w", ctx.Err())
				case <-time.After(delay):
					// Continue with retry
				}
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !policy.ShouldRetry(err) {
			return lastErr
		}
	}

	return fmt.Errorf("request failed after %d attempts: %w", maxAttempts, lastErr)
}
