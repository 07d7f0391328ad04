package metrics

import (
	"context"
	"time"

	"parley/pkg/config"
	"parley/pkg/llm"
	"parley/pkg/llm/llmerrors"
	"parley/pkg/logx"
)

// Middleware returns a middleware function that records metrics for every
// call crossing it: latency, token usage, cost, and outcome. Place it inside
// the retry driver so each physical attempt is observed.
//
// Token counts come from the usage the service reports, and cost from the
// model registry's pricing. Streaming calls record establishment only; their
// usage arrives inside the stream and is not visible here.
func Middleware(recorder Recorder) llm.Middleware {
	logger := logx.NewLogger("metrics")
	return func(next llm.Client) llm.Client {
		return llm.WrapClient(
			// Complete implementation with metrics
			func(ctx context.Context, req llm.Request) (*llm.Response, error) {
				start := time.Now()
				resp, err := next.Complete(ctx, req)
				observe(recorder, logger, next.Model(), ModeComplete, resp, err, time.Since(start))
				return resp, err //nolint:wrapcheck // Middleware should pass through errors unchanged
			},
			// Stream establishment with metrics
			func(ctx context.Context, req llm.Request) (llm.EventStream, error) {
				start := time.Now()
				stream, err := next.Stream(ctx, req)
				observe(recorder, logger, next.Model(), ModeStream, nil, err, time.Since(start))
				return stream, err //nolint:wrapcheck // Middleware should pass through errors unchanged
			},
			next.Model,
		)
	}
}

func observe(recorder Recorder, logger *logx.Logger, model, mode string, resp *llm.Response, err error, duration time.Duration) {
	var inputTokens, outputTokens int
	var cost float64
	if err == nil && resp != nil {
		inputTokens = resp.Usage.InputTokens
		outputTokens = resp.Usage.OutputTokens
		info, _ := config.GetModelInfo(model)
		cost = info.Cost(inputTokens, outputTokens)
	}

	errorType := ""
	status := "success"
	if err != nil {
		errorType = llmerrors.TypeOf(err).String()
		status = "error"
	}

	recorder.ObserveRequest(model, mode, inputTokens, outputTokens, cost, err == nil, errorType, duration)
	logger.Debug("%s model=%s tokens=%d+%d status=%s duration=%dms",
		mode, model, inputTokens, outputTokens, status, duration.Milliseconds())
}
