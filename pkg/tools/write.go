package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"parley/pkg/agent"
	"parley/pkg/llm"
)

// ToolFSWrite is the wire name of the file-writing tool.
const ToolFSWrite = "fs_write"

// WriteTool mutates workspace files in two modes: create a new file from
// content (fails if the file exists), or replace an exact string that
// appears exactly once. The compute phase reads and prepares the new file
// body; the apply phase performs the write.
type WriteTool struct {
	fs FS
}

// NewWriteTool creates an fs_write tool over the given filesystem.
func NewWriteTool(fsys FS) *WriteTool {
	return &WriteTool{fs: fsys}
}

// Definition returns the tool definition for the model.
func (t *WriteTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        ToolFSWrite,
		Description: "Write to a workspace file. Provide content to create a new file (fails if it exists), or old_string and new_string to replace an exact match that occurs exactly once.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {"type": "string", "description": "Relative path to the file within the workspace"},
				"content": {"type": "string", "description": "Full content for a new file"},
				"old_string": {"type": "string", "description": "Exact string to find. Must match exactly one location."},
				"new_string": {"type": "string", "description": "Replacement string. Empty deletes the matched text."}
			},
			"required": ["path"]
		}`),
	}
}

type writeInput struct {
	Path      string  `json:"path"`
	Content   *string `json:"content"`
	OldString *string `json:"old_string"`
	NewString *string `json:"new_string"`
}

// pendingWrite is the prepared mutation carried between the phases.
type pendingWrite struct {
	path    string
	content string
	message string
}

// Compute validates the request and prepares the full new file body without
// touching the filesystem state.
func (t *WriteTool) Compute(ctx context.Context, use llm.ToolUse) (*agent.Pending, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var in writeInput
	if err := decodeInput(use, &in); err != nil {
		return ready(use, errorResult("invalid fs_write input: %v", err)), nil
	}
	if in.Path == "" {
		return ready(use, errorResult("path is required")), nil
	}

	switch {
	case in.Content != nil && in.OldString == nil && in.NewString == nil:
		return t.prepareCreate(use, in)
	case in.Content == nil && in.OldString != nil && in.NewString != nil:
		return t.prepareReplace(use, in)
	default:
		return ready(use, errorResult("provide either content (create a new file) or old_string and new_string (edit an existing file)")), nil
	}
}

func (t *WriteTool) prepareCreate(use llm.ToolUse, in writeInput) (*agent.Pending, error) {
	if _, err := t.fs.Read(in.Path); err == nil {
		return ready(use, errorResult("file exists: %s. Use old_string and new_string to edit it.", in.Path)), nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return ready(use, errorResult("checking %s: %v", in.Path, err)), nil
	}
	return &agent.Pending{Use: use, Value: pendingWrite{
		path:    in.Path,
		content: *in.Content,
		message: fmt.Sprintf("created %s", in.Path),
	}}, nil
}

func (t *WriteTool) prepareReplace(use llm.ToolUse, in writeInput) (*agent.Pending, error) {
	if *in.OldString == "" {
		return ready(use, errorResult("old_string must not be empty")), nil
	}
	content, err := t.fs.Read(in.Path)
	if err != nil {
		return ready(use, errorResult("reading %s: %v", in.Path, err)), nil
	}
	switch count := strings.Count(content, *in.OldString); {
	case count == 0:
		return ready(use, errorResult("old_string not found in file. Make sure it matches the file content exactly, including whitespace and indentation.")), nil
	case count > 1:
		return ready(use, errorResult("old_string matches %d locations in the file. It must match exactly once. Include more surrounding context to make it unique.", count)), nil
	}
	return &agent.Pending{Use: use, Value: pendingWrite{
		path:    in.Path,
		content: strings.Replace(content, *in.OldString, *in.NewString, 1),
		message: fmt.Sprintf("edit applied to %s", in.Path),
	}}, nil
}

// Apply performs the prepared write.
func (t *WriteTool) Apply(_ context.Context, pending *agent.Pending) (llm.ToolResult, error) {
	switch value := pending.Value.(type) {
	case llm.ToolResult:
		// Compute already settled the outcome (a validation failure).
		return value, nil
	case pendingWrite:
		if err := t.fs.Write(value.path, value.content); err != nil {
			return errorResult("writing %s: %v", value.path, err), nil
		}
		response, _ := json.Marshal(map[string]any{
			"success": true,
			"path":    value.path,
			"message": value.message,
		})
		return llm.ToolResult{Content: string(response)}, nil
	default:
		return llm.ToolResult{}, fmt.Errorf("%s: unexpected pending value %T", ToolFSWrite, pending.Value)
	}
}
