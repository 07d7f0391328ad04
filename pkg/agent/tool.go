package agent

import (
	"context"

	"parley/pkg/llm"
)

// Tool is a capability the model can invoke. Execution is split into two
// phases so the loop can overlap the expensive read-only work of a turn's
// invocations while keeping side effects deterministic:
//
//   - Compute runs first and must not mutate shared state. Within one turn,
//     Compute calls for independent invocations run concurrently.
//   - Apply performs the side effects and produces the result sent back to
//     the model. Apply calls run sequentially, in the order the invocations
//     appeared in the response.
//
// Both phases distinguish a tool-level failure from an abort: returning a
// ToolResult with IsError set reports the failure to the model and the
// conversation continues; returning a non-nil error halts the loop.
type Tool interface {
	// Definition describes the tool to the model.
	Definition() llm.ToolDefinition

	// Compute performs the read-only phase of an invocation.
	Compute(ctx context.Context, use llm.ToolUse) (*Pending, error)

	// Apply performs the side-effecting phase and yields the result.
	Apply(ctx context.Context, pending *Pending) (llm.ToolResult, error)
}

// Pending carries one invocation between the compute and apply phases. Use
// identifies the invocation; Value is whatever Compute produced for its own
// Apply to finish with.
type Pending struct {
	Use   llm.ToolUse
	Value any
}
