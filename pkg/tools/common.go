package tools

import (
	"encoding/json"
	"fmt"

	"parley/pkg/agent"
	"parley/pkg/llm"
)

// errorResult wraps a tool-level failure as an error payload. The model
// sees the message and the conversation continues; aborts are reserved for
// cancellation and programming errors.
func errorResult(format string, args ...any) llm.ToolResult {
	return llm.ToolResult{Content: fmt.Sprintf(format, args...), IsError: true}
}

// decodeInput unmarshals an invocation's arguments. A missing input decodes
// as empty arguments.
func decodeInput(use llm.ToolUse, v any) error {
	input := use.Input
	if len(input) == 0 {
		input = json.RawMessage(`{}`)
	}
	return json.Unmarshal(input, v)
}

// ready carries an already-final result through the apply phase, for tools
// whose work is entirely read-only.
func ready(use llm.ToolUse, result llm.ToolResult) *agent.Pending {
	return &agent.Pending{Use: use, Value: result}
}

// takeResult unpacks a ready result in the apply phase.
func takeResult(name string, pending *agent.Pending) (llm.ToolResult, error) {
	result, ok := pending.Value.(llm.ToolResult)
	if !ok {
		return llm.ToolResult{}, fmt.Errorf("%s: unexpected pending value %T", name, pending.Value)
	}
	return result, nil
}
