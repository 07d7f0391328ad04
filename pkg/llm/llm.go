// Package llm defines the types and interfaces for conversational model
// interactions: messages built from typed content blocks, streaming events,
// the Client interface, and the middleware chain that composes resilience
// layers around a provider implementation.
package llm

import (
	"encoding/json"
	"strings"
)

// Role identifies the author of a conversation message. The wire protocol
// requires strict user/assistant alternation; the system prompt travels as
// a top-level request field, not as a message.
type Role string

const (
	// RoleUser is a message from the caller.
	RoleUser Role = "user"
	// RoleAssistant is a message from the model.
	RoleAssistant Role = "assistant"
)

// StopReason reports why the model stopped generating.
type StopReason string

const (
	// StopEndTurn means the model finished its turn.
	StopEndTurn StopReason = "end_turn"
	// StopMaxTokens means the response hit the output token limit.
	StopMaxTokens StopReason = "max_tokens"
	// StopStopSequence means a configured stop sequence was produced.
	StopStopSequence StopReason = "stop_sequence"
	// StopToolUse means the model is requesting tool invocations.
	StopToolUse StopReason = "tool_use"
	// StopPauseTurn means the model paused mid-turn; resubmit the
	// conversation to let it continue.
	StopPauseTurn StopReason = "pause_turn"
	// StopRefusal means the model declined to respond.
	StopRefusal StopReason = "refusal"
)

// Content block type tags as they appear on the wire.
const (
	BlockTypeText       = "text"
	BlockTypeToolUse    = "tool_use"
	BlockTypeToolResult = "tool_result"
	BlockTypeThinking   = "thinking"
)

// ContentBlock is one unit of message content: text, a tool-use request
// from the model, a tool result from the caller, or model thinking. The
// Type tag discriminates; only the fields for that type are populated.
// The flat shape marshals directly to the wire format.
type ContentBlock struct {
	Type string `json:"type"`

	// Text payload, for type "text".
	Text string `json:"text,omitempty"`

	// Tool-use payload, for type "tool_use".
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// Tool-result payload, for type "tool_result".
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`

	// Thinking payload, for type "thinking".
	Thinking  string `json:"thinking,omitempty"`
	Signature string `json:"signature,omitempty"`
}

// NewTextBlock creates a text content block.
func NewTextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockTypeText, Text: text}
}

// NewToolUseBlock creates a tool-use request block.
func NewToolUseBlock(id, name string, input json.RawMessage) ContentBlock {
	return ContentBlock{Type: BlockTypeToolUse, ID: id, Name: name, Input: input}
}

// NewToolResultBlock creates a tool-result block answering the tool-use
// request identified by toolUseID.
func NewToolResultBlock(toolUseID, content string, isError bool) ContentBlock {
	return ContentBlock{Type: BlockTypeToolResult, ToolUseID: toolUseID, Content: content, IsError: isError}
}

// IsText reports whether the block is a text block.
func (b ContentBlock) IsText() bool { return b.Type == BlockTypeText }

// IsToolUse reports whether the block is a tool-use request.
func (b ContentBlock) IsToolUse() bool { return b.Type == BlockTypeToolUse }

// IsToolResult reports whether the block is a tool result.
func (b ContentBlock) IsToolResult() bool { return b.Type == BlockTypeToolResult }

// ToolUse is a tool invocation request extracted from an assistant message:
// the model wants tool Name called with Input, and the eventual result must
// reference ID.
type ToolUse struct {
	ID    string
	Name  string
	Input json.RawMessage
}

// ToolResult is the outcome of executing one tool invocation. An IsError
// result is still a valid answer to the model (it reports the failure and
// the conversation continues); aborting the whole exchange is signalled by
// returning an error from the tool itself, not by a ToolResult.
type ToolResult struct {
	Content string
	IsError bool
}

// Message is one conversation turn: a role and its content blocks.
type Message struct {
	Role    Role           `json:"role"`
	Content []ContentBlock `json:"content"`
}

// NewUserMessage creates a user message with a single text block.
func NewUserMessage(text string) Message {
	return Message{Role: RoleUser, Content: []ContentBlock{NewTextBlock(text)}}
}

// NewAssistantMessage creates an assistant message with a single text block.
func NewAssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Content: []ContentBlock{NewTextBlock(text)}}
}

// NewToolResultsMessage creates the user message that answers a batch of
// tool-use requests.
func NewToolResultsMessage(results ...ContentBlock) Message {
	return Message{Role: RoleUser, Content: results}
}

// Text concatenates the message's text blocks.
func (m Message) Text() string {
	var sb strings.Builder
	for _, block := range m.Content {
		if block.IsText() {
			sb.WriteString(block.Text)
		}
	}
	return sb.String()
}

// ToolUses extracts the tool invocation requests from the message, in
// order of appearance.
func (m Message) ToolUses() []ToolUse {
	var uses []ToolUse
	for _, block := range m.Content {
		if block.IsToolUse() {
			uses = append(uses, ToolUse{ID: block.ID, Name: block.Name, Input: block.Input})
		}
	}
	return uses
}

// Usage reports token consumption for a request/response pair.
type Usage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens,omitempty"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens,omitempty"`
}

// Total returns input plus output tokens. Cache tokens are a billing
// detail, not additional consumption.
func (u Usage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// Add accumulates another usage report into this one.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.CacheCreationInputTokens += other.CacheCreationInputTokens
	u.CacheReadInputTokens += other.CacheReadInputTokens
}
