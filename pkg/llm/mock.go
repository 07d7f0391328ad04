package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// MockClient provides a controllable implementation of Client for testing.
// Results are consumed in order; each call pops the next scripted response
// or error. Requests are recorded for later inspection.
type MockClient struct {
	mu      sync.Mutex
	model   string
	results []MockResult
	index   int
	calls   []Request
}

// MockResult is one scripted outcome: either a response or an error.
type MockResult struct {
	Response *Response
	Err      error
}

// NewMockClient creates a mock client that replays results in order.
func NewMockClient(model string, results ...MockResult) *MockClient {
	return &MockClient{model: model, results: results}
}

// MockText scripts a text response with the given stop reason.
func MockText(text string, stop StopReason) MockResult {
	return MockResult{Response: &Response{
		ID:         "msg_mock",
		Type:       "message",
		Role:       RoleAssistant,
		Content:    []ContentBlock{NewTextBlock(text)},
		StopReason: stop,
		Usage:      Usage{InputTokens: 10, OutputTokens: 5},
	}}
}

// MockToolUse scripts a response requesting one tool invocation.
func MockToolUse(id, name, inputJSON string) MockResult {
	return MockResult{Response: &Response{
		ID:         "msg_mock",
		Type:       "message",
		Role:       RoleAssistant,
		Content:    []ContentBlock{NewToolUseBlock(id, name, json.RawMessage(inputJSON))},
		StopReason: StopToolUse,
		Usage:      Usage{InputTokens: 10, OutputTokens: 5},
	}}
}

// MockError scripts a failed call.
func MockError(err error) MockResult {
	return MockResult{Err: err}
}

// Complete returns the next scripted result.
func (m *MockClient) Complete(_ context.Context, req Request) (*Response, error) {
	result, err := m.next(req)
	if err != nil {
		return nil, err
	}
	return result.Response, result.Err
}

// Stream replays the next scripted result as a canonical event sequence.
func (m *MockClient) Stream(_ context.Context, req Request) (EventStream, error) {
	result, err := m.next(req)
	if err != nil {
		return nil, err
	}
	if result.Err != nil {
		return nil, result.Err
	}
	return &mockEventStream{events: responseEvents(result.Response)}, nil
}

// Model returns the configured model name.
func (m *MockClient) Model() string {
	return m.model
}

// Calls returns the requests seen so far.
func (m *MockClient) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]Request, len(m.calls))
	copy(calls, m.calls)
	return calls
}

func (m *MockClient) next(req Request) (MockResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, req)
	if m.index >= len(m.results) {
		return MockResult{}, fmt.Errorf("mock client: no more responses (call %d)", m.index+1)
	}
	result := m.results[m.index]
	m.index++
	return result, nil
}

// mockEventStream replays a fixed event slice.
type mockEventStream struct {
	events []Event
	index  int
}

func (s *mockEventStream) Next() (Event, error) {
	if s.index >= len(s.events) {
		return Event{}, io.EOF
	}
	ev := s.events[s.index]
	s.index++
	return ev, nil
}

func (s *mockEventStream) Close() error { return nil }

// responseEvents converts a complete response into the event sequence a
// streaming call would produce for it.
func responseEvents(resp *Response) []Event {
	head := *resp
	head.Content = nil
	head.StopReason = ""
	head.Usage.OutputTokens = 0

	events := []Event{{Type: EventTypeMessageStart, Message: &head}}
	for i, block := range resp.Content {
		start := block
		switch block.Type {
		case BlockTypeText:
			start.Text = ""
			events = append(events,
				Event{Type: EventTypeContentBlockStart, Index: i, Block: &start},
				Event{Type: EventTypeContentBlockDelta, Index: i, Delta: &Delta{Type: DeltaTypeText, Text: block.Text}},
			)
		case BlockTypeToolUse:
			start.Input = nil
			events = append(events,
				Event{Type: EventTypeContentBlockStart, Index: i, Block: &start},
				Event{Type: EventTypeContentBlockDelta, Index: i, Delta: &Delta{Type: DeltaTypeInputJSON, PartialJSON: string(block.Input)}},
			)
		default:
			events = append(events, Event{Type: EventTypeContentBlockStart, Index: i, Block: &start})
		}
		events = append(events, Event{Type: EventTypeContentBlockStop, Index: i})
	}
	events = append(events,
		Event{
			Type:         EventTypeMessageDelta,
			MessageDelta: &MessageDelta{StopReason: resp.StopReason, StopSequence: resp.StopSequence},
			Usage:        &MessageDeltaUsage{OutputTokens: resp.Usage.OutputTokens},
		},
		Event{Type: EventTypeMessageStop},
	)
	return events
}
