package metrics

import (
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// ====================================================================================
// PrometheusRecorder Tests
// ====================================================================================

func TestPrometheusRecorder_SuccessRecordsTokensAndCost(t *testing.T) {
	rec := NewPrometheusRecorderWith(prometheus.NewRegistry())

	rec.ObserveRequest("claude-3-5-haiku-latest", ModeComplete, 1000, 500, 0.0028, true, "", 250*time.Millisecond)

	requests := testutil.ToFloat64(rec.requestsTotal.WithLabelValues("claude-3-5-haiku-latest", ModeComplete, "success", ""))
	if requests != 1 {
		t.Errorf("Expected 1 successful request, got: %v", requests)
	}
	input := testutil.ToFloat64(rec.tokensTotal.WithLabelValues("claude-3-5-haiku-latest", "input"))
	if input != 1000 {
		t.Errorf("Expected 1000 input tokens, got: %v", input)
	}
	output := testutil.ToFloat64(rec.tokensTotal.WithLabelValues("claude-3-5-haiku-latest", "output"))
	if output != 500 {
		t.Errorf("Expected 500 output tokens, got: %v", output)
	}
	cost := testutil.ToFloat64(rec.costTotal.WithLabelValues("claude-3-5-haiku-latest"))
	if math.Abs(cost-0.0028) > 1e-9 {
		t.Errorf("Expected cost 0.0028, got: %v", cost)
	}
}

func TestPrometheusRecorder_ErrorSkipsTokensAndCost(t *testing.T) {
	rec := NewPrometheusRecorderWith(prometheus.NewRegistry())

	rec.ObserveRequest("claude-3-5-haiku-latest", ModeComplete, 0, 0, 0, false, "rate_limit", 50*time.Millisecond)

	requests := testutil.ToFloat64(rec.requestsTotal.WithLabelValues("claude-3-5-haiku-latest", ModeComplete, "error", "rate_limit"))
	if requests != 1 {
		t.Errorf("Expected 1 failed request, got: %v", requests)
	}
	input := testutil.ToFloat64(rec.tokensTotal.WithLabelValues("claude-3-5-haiku-latest", "input"))
	if input != 0 {
		t.Errorf("Expected no input tokens recorded on error, got: %v", input)
	}
	cost := testutil.ToFloat64(rec.costTotal.WithLabelValues("claude-3-5-haiku-latest"))
	if cost != 0 {
		t.Errorf("Expected no cost recorded on error, got: %v", cost)
	}
}

func TestPrometheusRecorder_AccumulatesAcrossCalls(t *testing.T) {
	rec := NewPrometheusRecorderWith(prometheus.NewRegistry())

	rec.ObserveRequest("m", ModeStream, 100, 20, 0.001, true, "", time.Millisecond)
	rec.ObserveRequest("m", ModeStream, 200, 40, 0.002, true, "", time.Millisecond)

	requests := testutil.ToFloat64(rec.requestsTotal.WithLabelValues("m", ModeStream, "success", ""))
	if requests != 2 {
		t.Errorf("Expected 2 requests, got: %v", requests)
	}
	input := testutil.ToFloat64(rec.tokensTotal.WithLabelValues("m", "input"))
	if input != 300 {
		t.Errorf("Expected 300 accumulated input tokens, got: %v", input)
	}
	cost := testutil.ToFloat64(rec.costTotal.WithLabelValues("m"))
	if math.Abs(cost-0.003) > 1e-9 {
		t.Errorf("Expected accumulated cost 0.003, got: %v", cost)
	}
}

func TestPrometheusRecorder_ObserveRetry(t *testing.T) {
	rec := NewPrometheusRecorderWith(prometheus.NewRegistry())

	rec.ObserveRetry("overloaded", 500*time.Millisecond)
	rec.ObserveRetry("overloaded", time.Second)

	retries := testutil.ToFloat64(rec.retriesTotal.WithLabelValues("overloaded"))
	if retries != 2 {
		t.Errorf("Expected 2 retries, got: %v", retries)
	}
	if series := testutil.CollectAndCount(rec.retryBackoff, "parley_retry_backoff_seconds"); series != 1 {
		t.Errorf("Expected 1 backoff series, got: %d", series)
	}
}

func TestNoopRecorder_DiscardsEverything(t *testing.T) {
	rec := Nop()
	rec.ObserveRequest("m", ModeComplete, 1, 1, 0.1, true, "", time.Millisecond)
	rec.ObserveRequest("m", ModeStream, 0, 0, 0, false, "timeout", time.Millisecond)
	rec.ObserveRetry("timeout", time.Second)
}
