package llm

import (
	"encoding/json"
	"fmt"
)

// EventType identifies a streaming event.
type EventType string

const (
	// EventTypeMessageStart opens a streamed response and carries the
	// message head (id, model, role, input token usage).
	EventTypeMessageStart EventType = "message_start"
	// EventTypeContentBlockStart opens content block Index.
	EventTypeContentBlockStart EventType = "content_block_start"
	// EventTypeContentBlockDelta appends to content block Index.
	EventTypeContentBlockDelta EventType = "content_block_delta"
	// EventTypeContentBlockStop closes content block Index.
	EventTypeContentBlockStop EventType = "content_block_stop"
	// EventTypeMessageDelta carries the stop reason and output token usage.
	EventTypeMessageDelta EventType = "message_delta"
	// EventTypeMessageStop closes the streamed response.
	EventTypeMessageStop EventType = "message_stop"
	// EventTypePing is a keepalive; it carries nothing.
	EventTypePing EventType = "ping"
	// EventTypeError reports a server-side failure mid-stream.
	EventTypeError EventType = "error"
)

// Delta type tags for content_block_delta events.
const (
	DeltaTypeText      = "text_delta"
	DeltaTypeInputJSON = "input_json_delta"
	DeltaTypeThinking  = "thinking_delta"
	DeltaTypeSignature = "signature_delta"
)

// Delta is one increment of a content block. Type discriminates: text
// deltas carry Text, tool input deltas carry a PartialJSON fragment that
// only parses once the block is complete.
type Delta struct {
	Type        string `json:"type"`
	Text        string `json:"text,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`
	Thinking    string `json:"thinking,omitempty"`
	Signature   string `json:"signature,omitempty"`
}

// MessageDelta is the top-level delta of a message_delta event.
type MessageDelta struct {
	StopReason   StopReason `json:"stop_reason,omitempty"`
	StopSequence string     `json:"stop_sequence,omitempty"`
}

// MessageDeltaUsage is the usage fragment of a message_delta event. The
// service reports cumulative output tokens here.
type MessageDeltaUsage struct {
	OutputTokens int `json:"output_tokens"`
}

// APIError is the payload of an in-stream error event.
type APIError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Event is one decoded streaming event. Type discriminates; the pointer
// fields for other types are nil. Index is meaningful for the
// content_block_* types.
type Event struct {
	Type EventType

	// message_start.
	Message *Response

	// content_block_start / content_block_delta / content_block_stop.
	Index int
	Block *ContentBlock
	Delta *Delta

	// message_delta.
	MessageDelta *MessageDelta
	Usage        *MessageDeltaUsage

	// error.
	Err *APIError
}

// KnownEventType reports whether label names an event this package
// decodes. The decoder skips events with unknown labels so that new
// server-side event types do not break existing clients.
func KnownEventType(label string) bool {
	switch EventType(label) {
	case EventTypeMessageStart, EventTypeContentBlockStart, EventTypeContentBlockDelta,
		EventTypeContentBlockStop, EventTypeMessageDelta, EventTypeMessageStop,
		EventTypePing, EventTypeError:
		return true
	default:
		return false
	}
}

// ParseEvent decodes the payload of one streaming event. label is the
// event's type tag and data its joined payload. Callers should check
// KnownEventType first; unknown labels fail here.
func ParseEvent(label string, data []byte) (Event, error) {
	switch EventType(label) {
	case EventTypeMessageStart:
		var envelope struct {
			Message Response `json:"message"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil {
			return Event{}, fmt.Errorf("parsing message_start: %w", err)
		}
		return Event{Type: EventTypeMessageStart, Message: &envelope.Message}, nil

	case EventTypeContentBlockStart:
		var envelope struct {
			Index        int          `json:"index"`
			ContentBlock ContentBlock `json:"content_block"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil {
			return Event{}, fmt.Errorf("parsing content_block_start: %w", err)
		}
		return Event{Type: EventTypeContentBlockStart, Index: envelope.Index, Block: &envelope.ContentBlock}, nil

	case EventTypeContentBlockDelta:
		var envelope struct {
			Index int   `json:"index"`
			Delta Delta `json:"delta"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil {
			return Event{}, fmt.Errorf("parsing content_block_delta: %w", err)
		}
		return Event{Type: EventTypeContentBlockDelta, Index: envelope.Index, Delta: &envelope.Delta}, nil

	case EventTypeContentBlockStop:
		var envelope struct {
			Index int `json:"index"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil {
			return Event{}, fmt.Errorf("parsing content_block_stop: %w", err)
		}
		return Event{Type: EventTypeContentBlockStop, Index: envelope.Index}, nil

	case EventTypeMessageDelta:
		var envelope struct {
			Delta MessageDelta      `json:"delta"`
			Usage MessageDeltaUsage `json:"usage"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil {
			return Event{}, fmt.Errorf("parsing message_delta: %w", err)
		}
		return Event{Type: EventTypeMessageDelta, MessageDelta: &envelope.Delta, Usage: &envelope.Usage}, nil

	case EventTypeMessageStop:
		return Event{Type: EventTypeMessageStop}, nil

	case EventTypePing:
		return Event{Type: EventTypePing}, nil

	case EventTypeError:
		var envelope struct {
			Error APIError `json:"error"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil || envelope.Error.Type == "" {
			// Keep the raw payload when the envelope is not in the usual shape.
			return Event{Type: EventTypeError, Err: &APIError{Type: "error", Message: string(data)}}, nil
		}
		return Event{Type: EventTypeError, Err: &envelope.Error}, nil

	default:
		return Event{}, fmt.Errorf("unknown event type %q", label)
	}
}
