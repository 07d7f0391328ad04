package tools

import (
	"context"
	"encoding/json"
	"strings"

	"parley/pkg/agent"
	"parley/pkg/llm"
)

// ToolFSRead is the wire name of the file-reading tool.
const ToolFSRead = "fs_read"

// ReadTool reads file contents from the workspace, optionally limited to a
// line range. All work happens in the compute phase.
type ReadTool struct {
	fs FS
}

// NewReadTool creates an fs_read tool over the given filesystem.
func NewReadTool(fsys FS) *ReadTool {
	return &ReadTool{fs: fsys}
}

// Definition returns the tool definition for the model.
func (t *ReadTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        ToolFSRead,
		Description: "Read a file from the workspace. For large files, use start_line and end_line to read a specific section.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {"type": "string", "description": "Relative path to the file within the workspace"},
				"start_line": {"type": "integer", "description": "First line to return (1-based, inclusive)"},
				"end_line": {"type": "integer", "description": "Last line to return (1-based, inclusive)"}
			},
			"required": ["path"]
		}`),
	}
}

type readInput struct {
	Path      string `json:"path"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
}

// Compute reads the file and slices the requested range.
func (t *ReadTool) Compute(ctx context.Context, use llm.ToolUse) (*agent.Pending, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var in readInput
	if err := decodeInput(use, &in); err != nil {
		return ready(use, errorResult("invalid fs_read input: %v", err)), nil
	}
	if in.Path == "" {
		return ready(use, errorResult("path is required")), nil
	}
	if in.StartLine < 0 || in.EndLine < 0 {
		return ready(use, errorResult("start_line and end_line must be >= 1")), nil
	}

	content, err := t.fs.Read(in.Path)
	if err != nil {
		return ready(use, errorResult("reading %s: %v", in.Path, err)), nil
	}
	if in.StartLine == 0 && in.EndLine == 0 {
		return ready(use, llm.ToolResult{Content: content}), nil
	}

	lines := strings.Split(content, "\n")
	start := in.StartLine
	if start == 0 {
		start = 1
	}
	end := in.EndLine
	if end == 0 || end > len(lines) {
		end = len(lines)
	}
	if start > len(lines) {
		return ready(use, errorResult("start_line %d is beyond the end of the file (%d lines)", start, len(lines))), nil
	}
	if end < start {
		return ready(use, errorResult("end_line %d is before start_line %d", end, start)), nil
	}
	return ready(use, llm.ToolResult{Content: strings.Join(lines[start-1:end], "\n") + "\n"}), nil
}

// Apply returns the computed content.
func (t *ReadTool) Apply(_ context.Context, pending *agent.Pending) (llm.ToolResult, error) {
	return takeResult(ToolFSRead, pending)
}
