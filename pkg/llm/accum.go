package llm

import (
	"encoding/json"
	"strings"

	"parley/pkg/llm/llmerrors"
)

// Accumulator folds streaming events into a complete Response while the
// caller forwards them elsewhere (terminal output, transcript). Feed every
// event to Apply; after message_stop, Response returns the assembled result.
//
// An Accumulator is not safe for concurrent use.
type Accumulator struct {
	head     *Response
	builders []*blockBuilder
}

// blockBuilder collects one content block across start/delta events.
type blockBuilder struct {
	started       bool
	block         ContentBlock
	text          strings.Builder
	inputJSON     strings.Builder
	thinking      strings.Builder
	signature     strings.Builder
	sawInputDelta bool
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Apply folds one event into the accumulated state. Deltas for indexes
// that were never started are dropped rather than failing the stream.
// In-stream error events return the server's failure as a classified error.
func (a *Accumulator) Apply(ev Event) error {
	switch ev.Type {
	case EventTypeMessageStart:
		if ev.Message != nil {
			head := *ev.Message
			a.head = &head
		}

	case EventTypeContentBlockStart:
		if ev.Block == nil {
			return nil
		}
		for len(a.builders) <= ev.Index {
			a.builders = append(a.builders, &blockBuilder{})
		}
		builder := &blockBuilder{started: true, block: *ev.Block}
		builder.text.WriteString(ev.Block.Text)
		builder.thinking.WriteString(ev.Block.Thinking)
		builder.signature.WriteString(ev.Block.Signature)
		a.builders[ev.Index] = builder

	case EventTypeContentBlockDelta:
		if ev.Delta == nil || ev.Index >= len(a.builders) {
			return nil
		}
		builder := a.builders[ev.Index]
		switch ev.Delta.Type {
		case DeltaTypeText:
			builder.text.WriteString(ev.Delta.Text)
		case DeltaTypeInputJSON:
			builder.sawInputDelta = true
			builder.inputJSON.WriteString(ev.Delta.PartialJSON)
		case DeltaTypeThinking:
			builder.thinking.WriteString(ev.Delta.Thinking)
		case DeltaTypeSignature:
			builder.signature.WriteString(ev.Delta.Signature)
		}

	case EventTypeMessageDelta:
		if a.head == nil {
			return nil
		}
		if ev.MessageDelta != nil {
			if ev.MessageDelta.StopReason != "" {
				a.head.StopReason = ev.MessageDelta.StopReason
			}
			if ev.MessageDelta.StopSequence != "" {
				a.head.StopSequence = ev.MessageDelta.StopSequence
			}
		}
		if ev.Usage != nil {
			// The service reports cumulative output tokens in each
			// message_delta, so assign rather than add.
			a.head.Usage.OutputTokens = ev.Usage.OutputTokens
		}

	case EventTypeError:
		if ev.Err != nil {
			return llmerrors.FromAPIType(ev.Err.Type, ev.Err.Message)
		}
		return llmerrors.NewError(llmerrors.ErrorTypeUnknown, "stream error event without payload")

	case EventTypeContentBlockStop, EventTypeMessageStop, EventTypePing:
		// Block finalization happens in Response; nothing to fold here.
	}
	return nil
}

// Text returns the text accumulated so far, across all text blocks. Useful
// for rendering partial output before the stream completes.
func (a *Accumulator) Text() string {
	var sb strings.Builder
	for i := range a.builders {
		builder := a.builders[i]
		if builder.started && builder.block.Type == BlockTypeText {
			sb.WriteString(builder.text.String())
		}
	}
	return sb.String()
}

// Response assembles the accumulated response. Complete after the stream's
// message_stop; calling earlier returns whatever has arrived, which is how
// partial output is recovered after max_tokens truncation. A stream that
// never produced message_start yields a malformed-stream error.
func (a *Accumulator) Response() (*Response, error) {
	if a.head == nil {
		return nil, llmerrors.NewError(llmerrors.ErrorTypeStreamMalformed, "stream ended without a message_start event")
	}

	response := *a.head
	response.Content = nil
	for i := range a.builders {
		builder := a.builders[i]
		if !builder.started {
			continue
		}
		block, ok := builder.build(response.StopReason)
		if ok {
			response.Content = append(response.Content, block)
		}
	}
	return &response, nil
}

// build finalizes one content block. Tool-use input assembled from deltas
// must parse as JSON; an empty assembly becomes {}. Unparseable input under
// max_tokens truncation drops the block, since the model was cut off
// mid-JSON; otherwise the raw fragment is preserved as a JSON string.
func (b *blockBuilder) build(stopReason StopReason) (ContentBlock, bool) {
	block := b.block
	switch block.Type {
	case BlockTypeText:
		block.Text = b.text.String()

	case BlockTypeToolUse:
		if b.sawInputDelta || len(block.Input) == 0 {
			assembled := strings.TrimSpace(b.inputJSON.String())
			switch {
			case assembled == "":
				block.Input = json.RawMessage(`{}`)
			case json.Valid([]byte(assembled)):
				block.Input = json.RawMessage(assembled)
			case stopReason == StopMaxTokens:
				return ContentBlock{}, false
			default:
				quoted, _ := json.Marshal(assembled)
				block.Input = quoted
			}
		}

	case BlockTypeThinking:
		block.Thinking = b.thinking.String()
		block.Signature = b.signature.String()
	}
	return block, true
}
