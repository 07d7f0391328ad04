package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusRecorder implements the Recorder interface using Prometheus
// metrics.
type PrometheusRecorder struct {
	requestsTotal   *prometheus.CounterVec
	tokensTotal     *prometheus.CounterVec
	costTotal       *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	retriesTotal    *prometheus.CounterVec
	retryBackoff    *prometheus.HistogramVec
}

// NewPrometheusRecorder creates a recorder registered on the default
// registry. Call it once per process; registering the same metrics twice
// panics.
func NewPrometheusRecorder() *PrometheusRecorder {
	return NewPrometheusRecorderWith(prometheus.DefaultRegisterer)
}

// NewPrometheusRecorderWith creates a recorder registered on reg. Tests use
// this with a private registry.
func NewPrometheusRecorderWith(reg prometheus.Registerer) *PrometheusRecorder {
	factory := promauto.With(reg)
	return &PrometheusRecorder{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parley_requests_total",
				Help: "Total number of requests by model, transport mode, and status",
			},
			[]string{"model", "mode", "status", "error_type"},
		),
		tokensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parley_tokens_total",
				Help: "Total number of tokens used, split by direction",
			},
			[]string{"model", "type"},
		),
		costTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parley_cost_usd_total",
				Help: "Total cost in USD, from the model registry's pricing",
			},
			[]string{"model"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "parley_request_duration_seconds",
				Help:    "Duration of requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"model", "mode"},
		),
		retriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parley_retries_total",
				Help: "Total number of scheduled retries by error type",
			},
			[]string{"error_type"},
		),
		retryBackoff: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "parley_retry_backoff_seconds",
				Help:    "Backoff waited before each retry",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"error_type"},
		),
	}
}

// ObserveRequest records one completed call.
func (p *PrometheusRecorder) ObserveRequest(
	model, mode string,
	inputTokens, outputTokens int,
	cost float64,
	success bool,
	errorType string,
	duration time.Duration,
) {
	status := "success"
	if !success {
		status = "error"
	}
	p.requestsTotal.WithLabelValues(model, mode, status, errorType).Inc()

	// Tokens and cost only exist on success.
	if success {
		p.tokensTotal.WithLabelValues(model, "input").Add(float64(inputTokens))
		p.tokensTotal.WithLabelValues(model, "output").Add(float64(outputTokens))
		p.costTotal.WithLabelValues(model).Add(cost)
	}
	p.requestDuration.WithLabelValues(model, mode).Observe(duration.Seconds())
}

// ObserveRetry records a scheduled retry and its backoff.
func (p *PrometheusRecorder) ObserveRetry(errorType string, delay time.Duration) {
	p.retriesTotal.WithLabelValues(errorType).Inc()
	p.retryBackoff.WithLabelValues(errorType).Observe(delay.Seconds())
}
