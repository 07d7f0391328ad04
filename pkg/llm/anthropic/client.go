// Package anthropic implements the llm.Client interface over the Anthropic
// Messages HTTP API. The client performs exactly one physical attempt per
// call and classifies every failure into the llmerrors taxonomy; retry and
// timeout policy belong to the middleware layer.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/google/uuid"

	"parley/pkg/llm"
	"parley/pkg/llm/llmerrors"
	"parley/pkg/logx"
)

const (
	// DefaultBaseURL is the production API root.
	DefaultBaseURL = "https://api.anthropic.com/v1/"

	// DefaultModel is used when no model is configured.
	DefaultModel = "claude-sonnet-4-5"

	// EnvAPIKey is the environment variable consulted for credentials.
	EnvAPIKey = "ANTHROPIC_API_KEY"

	// apiVersion pins the service's versioned behavior.
	apiVersion = "2023-06-01"

	messagesPath = "messages"
)

// Client is a provider for the Anthropic Messages API.
//
//nolint:govet // Simple client struct, logical grouping preferred
type Client struct {
	apiKey     string
	baseURL    string
	version    string
	userAgent  string
	model      string
	httpClient *http.Client
	logger     *logx.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sets the API key explicitly.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithAPIKeyFromEnv reads the API key from ANTHROPIC_API_KEY.
func WithAPIKeyFromEnv() Option {
	return func(c *Client) { c.apiKey = os.Getenv(EnvAPIKey) }
}

// WithBaseURL overrides the API root, e.g. for a test server or proxy.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithHTTPClient supplies a custom HTTP client. The default client carries
// no global timeout: per-attempt deadlines are the timeout middleware's job.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithVersion overrides the anthropic-version header.
func WithVersion(version string) Option {
	return func(c *Client) { c.version = version }
}

// WithUserAgent sets the user-agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) { c.userAgent = userAgent }
}

// WithModel sets the model reported by Model() and used by callers that
// build requests from the client's default.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// New creates a client. Without WithAPIKey the key falls back to
// ANTHROPIC_API_KEY; a missing key is an auth-classified error.
func New(opts ...Option) (*Client, error) {
	c := &Client{
		baseURL:    DefaultBaseURL,
		version:    apiVersion,
		model:      DefaultModel,
		httpClient: &http.Client{},
		logger:     logx.NewLogger("anthropic"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.apiKey == "" {
		c.apiKey = os.Getenv(EnvAPIKey)
	}
	if c.apiKey == "" {
		return nil, llmerrors.NewError(llmerrors.ErrorTypeAuth,
			"api key not set: use WithAPIKey or the ANTHROPIC_API_KEY environment variable")
	}
	if !strings.HasSuffix(c.baseURL, "/") {
		c.baseURL += "/"
	}
	return c, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Complete sends a non-streaming request and parses the full response body.
func (c *Client) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	req.Stream = false

	httpResp, err := c.send(ctx, &req, false)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	var resp llm.Response
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, llmerrors.NewErrorWithCause(llmerrors.ErrorTypeDecode, err, "decoding response body")
	}
	return &resp, nil
}

// Stream sends a streaming request and returns a stream of decoded events.
// The caller must Close the stream, even after an error from Next.
func (c *Client) Stream(ctx context.Context, req llm.Request) (llm.EventStream, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	req.Stream = true

	httpResp, err := c.send(ctx, &req, true)
	if err != nil {
		return nil, err
	}
	return NewStream(httpResp.Body), nil
}

// send performs one physical attempt: marshal, POST, classify.
// On success the caller owns the response body; on error it is closed.
func (c *Client) send(ctx context.Context, req *llm.Request, streaming bool) (*http.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, llmerrors.NewErrorWithCause(llmerrors.ErrorTypeValidation, err, "marshaling request")
	}

	endpoint := c.baseURL + messagesPath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, llmerrors.NewErrorWithCause(llmerrors.ErrorTypeValidation, err, "creating request")
	}

	requestID := uuid.NewString()
	httpReq.Header.Set("content-type", "application/json")
	if streaming {
		httpReq.Header.Set("accept", "text/event-stream")
	} else {
		httpReq.Header.Set("accept", "application/json")
	}
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", c.version)
	httpReq.Header.Set("x-request-id", requestID)
	if c.userAgent != "" {
		httpReq.Header.Set("user-agent", c.userAgent)
	}

	c.logger.Debug("POST %s model=%s stream=%v request_id=%s", endpoint, req.Model, streaming, requestID)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, classifyTransport(ctx, err)
	}
	if httpResp.StatusCode != http.StatusOK {
		defer httpResp.Body.Close()
		apiErr := llmerrors.FromResponse(httpResp.StatusCode, httpResp.Body, httpResp.Header)
		c.logger.Debug("request_id=%s failed: %v", requestID, apiErr)
		return nil, apiErr
	}
	return httpResp, nil
}

// classifyTransport maps connection-level failures into the taxonomy.
// Deadline hits become retryable timeouts; caller cancellation passes
// through bare so the retry driver sees context.Canceled and stops.
func classifyTransport(ctx context.Context, err error) error {
	cause := context.Cause(ctx)
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(cause, context.DeadlineExceeded):
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeTimeout, err, "attempt deadline exceeded")
	case errors.Is(err, context.Canceled) || errors.Is(cause, context.Canceled):
		return err
	default:
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeTransport, err, "sending request")
	}
}
