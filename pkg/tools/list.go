package tools

import (
	"context"
	"encoding/json"
	"strings"

	"parley/pkg/agent"
	"parley/pkg/llm"
)

// ToolFSList is the wire name of the directory-listing tool.
const ToolFSList = "fs_list"

// ListTool lists a workspace directory. All work happens in the compute
// phase.
type ListTool struct {
	fs FS
}

// NewListTool creates an fs_list tool over the given filesystem.
func NewListTool(fsys FS) *ListTool {
	return &ListTool{fs: fsys}
}

// Definition returns the tool definition for the model.
func (t *ListTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        ToolFSList,
		Description: "List a workspace directory. Directories in the listing end with a slash.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {"type": "string", "description": "Relative path to the directory. Defaults to the workspace root."}
			}
		}`),
	}
}

type listInput struct {
	Path string `json:"path"`
}

// Compute lists the directory.
func (t *ListTool) Compute(ctx context.Context, use llm.ToolUse) (*agent.Pending, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var in listInput
	if err := decodeInput(use, &in); err != nil {
		return ready(use, errorResult("invalid fs_list input: %v", err)), nil
	}
	entries, err := t.fs.List(in.Path)
	if err != nil {
		return ready(use, errorResult("listing %s: %v", in.Path, err)), nil
	}
	return ready(use, llm.ToolResult{Content: strings.Join(entries, "\n")}), nil
}

// Apply returns the computed listing.
func (t *ListTool) Apply(_ context.Context, pending *agent.Pending) (llm.ToolResult, error) {
	return takeResult(ToolFSList, pending)
}
