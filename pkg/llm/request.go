package llm

import (
	"encoding/json"
	"fmt"

	"parley/pkg/llm/llmerrors"
)

const (
	// DefaultMaxTokens is the output token limit used when a request does
	// not set one.
	DefaultMaxTokens = 4096

	// TemperatureDefault allows some exploration while staying focused.
	TemperatureDefault = 0.3
)

// ToolDefinition describes a tool the model may request. InputSchema is a
// JSON Schema object for the tool's input.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

// ToolChoice constrains how the model selects tools: "auto" lets it
// decide, "any" forces some tool, "tool" forces the named one.
type ToolChoice struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

// Metadata carries request metadata the service associates with the call.
type Metadata struct {
	// UserID is an opaque end-user identifier for abuse detection. It
	// should not contain identifying information.
	UserID string `json:"user_id,omitempty"`
}

// Request is a completion request. Messages must alternate user/assistant
// roles and start with a user message; the system prompt is a separate
// field, not a message.
type Request struct {
	Model         string           `json:"model"`
	MaxTokens     int              `json:"max_tokens"`
	System        string           `json:"system,omitempty"`
	Messages      []Message        `json:"messages"`
	Tools         []ToolDefinition `json:"tools,omitempty"`
	ToolChoice    *ToolChoice      `json:"tool_choice,omitempty"`
	Temperature   *float64         `json:"temperature,omitempty"`
	TopP          *float64         `json:"top_p,omitempty"`
	StopSequences []string         `json:"stop_sequences,omitempty"`
	Metadata      *Metadata        `json:"metadata,omitempty"`
	Stream        bool             `json:"stream,omitempty"`
}

// NewRequest creates a request with default limits.
func NewRequest(model string, messages ...Message) Request {
	return Request{
		Model:     model,
		MaxTokens: DefaultMaxTokens,
		Messages:  messages,
	}
}

// Validate rejects requests the service would refuse, before any bytes hit
// the wire. Violations are classified as validation errors so the retry
// driver fails them in one attempt.
func (r *Request) Validate() error {
	if r.Model == "" {
		return llmerrors.NewError(llmerrors.ErrorTypeValidation, "model must not be empty")
	}
	if r.MaxTokens <= 0 {
		return llmerrors.NewError(llmerrors.ErrorTypeValidation, "max_tokens must be positive")
	}
	if len(r.Messages) == 0 {
		return llmerrors.NewError(llmerrors.ErrorTypeValidation, "messages must not be empty")
	}
	if r.Messages[0].Role != RoleUser {
		return llmerrors.NewError(llmerrors.ErrorTypeValidation, "first message must have the user role")
	}
	for i := 1; i < len(r.Messages); i++ {
		if r.Messages[i].Role == r.Messages[i-1].Role {
			return llmerrors.NewError(llmerrors.ErrorTypeValidation,
				fmt.Sprintf("messages %d and %d share role %q; roles must alternate", i-1, i, r.Messages[i].Role))
		}
	}
	if r.Temperature != nil && (*r.Temperature < 0.0 || *r.Temperature > 1.0) {
		return llmerrors.NewError(llmerrors.ErrorTypeValidation, "temperature must be between 0.0 and 1.0")
	}
	if r.TopP != nil && (*r.TopP < 0.0 || *r.TopP > 1.0) {
		return llmerrors.NewError(llmerrors.ErrorTypeValidation, "top_p must be between 0.0 and 1.0")
	}
	return nil
}

// Response is a complete model response: the generated content plus the
// metadata needed to decide what happens next (stop reason, token usage).
type Response struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	Role         Role           `json:"role"`
	Content      []ContentBlock `json:"content"`
	Model        string         `json:"model"`
	StopReason   StopReason     `json:"stop_reason"`
	StopSequence string         `json:"stop_sequence,omitempty"`
	Usage        Usage          `json:"usage"`
}

// Message converts the response into a conversation message for the next
// request.
func (r *Response) Message() Message {
	return Message{Role: r.Role, Content: r.Content}
}

// Text concatenates the response's text blocks.
func (r *Response) Text() string {
	return r.Message().Text()
}

// ToolUses extracts the response's tool invocation requests.
func (r *Response) ToolUses() []ToolUse {
	return r.Message().ToolUses()
}
