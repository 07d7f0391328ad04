// Package tokens estimates token counts for prompt sizing.
//
// The service does not publish its tokenizer, so counts approximate with the
// GPT-4 encoding and degrade to a bytes-per-token heuristic when no codec is
// available. Estimates feed the context guard and display; billing-grade
// counts come from the usage the service reports.
package tokens

import (
	"fmt"

	"github.com/tiktoken-go/tokenizer"

	"parley/pkg/llm"
)

// messageOverhead approximates the wire framing around one message (role tag
// and content envelope).
const messageOverhead = 4

// Estimator counts tokens in text and messages.
type Estimator struct {
	codec tokenizer.Codec
}

// NewEstimator creates an estimator for the given model. Claude tokenization
// is close enough to GPT-4's for sizing purposes, so every model maps to that
// encoding.
func NewEstimator(model string) (*Estimator, error) {
	codec, err := tokenizer.ForModel(tokenizer.GPT4)
	if err != nil {
		return nil, fmt.Errorf("creating tokenizer codec for model %s: %w", model, err)
	}
	return &Estimator{codec: codec}, nil
}

// Count returns the estimated token count of text.
func (e *Estimator) Count(text string) int {
	if e == nil || e.codec == nil {
		return Approx(text)
	}
	count, err := e.codec.Count(text)
	if err != nil {
		return Approx(text)
	}
	return count
}

// CountMessage returns the estimated token count of one message, including
// framing overhead.
func (e *Estimator) CountMessage(msg llm.Message) int {
	total := messageOverhead
	for _, block := range msg.Content {
		switch block.Type {
		case llm.BlockTypeText:
			total += e.Count(block.Text)
		case llm.BlockTypeToolUse:
			total += e.Count(block.Name) + e.Count(string(block.Input))
		case llm.BlockTypeToolResult:
			total += e.Count(block.Content)
		case llm.BlockTypeThinking:
			total += e.Count(block.Thinking)
		}
	}
	return total
}

// CountMessages returns the estimated token count of a conversation.
func (e *Estimator) CountMessages(msgs []llm.Message) int {
	total := 0
	for _, msg := range msgs {
		total += e.CountMessage(msg)
	}
	return total
}

// CountRequest returns the estimated prompt size of a request: system prompt,
// tool definitions, and every message. The response reservation (MaxTokens)
// is not included.
func (e *Estimator) CountRequest(req llm.Request) int {
	total := e.Count(req.System)
	for _, tool := range req.Tools {
		total += e.Count(tool.Name) + e.Count(tool.Description) + e.Count(string(tool.InputSchema))
	}
	return total + e.CountMessages(req.Messages)
}

// Truncate shortens text to approximately limit tokens. The cut is by
// characters scaled from the estimate, not exact token boundaries.
func (e *Estimator) Truncate(text string, limit int) string {
	current := e.Count(text)
	if current <= limit {
		return text
	}
	ratio := float64(limit) / float64(current)
	cut := int(float64(len(text)) * ratio * 0.9)
	if cut >= len(text) {
		return text
	}
	return text[:cut] + "..."
}

// Approx estimates without a codec: roughly four bytes per token.
func Approx(text string) int {
	return len(text) / 4
}
