package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"parley/pkg/agent"
	"parley/pkg/llm"
)

// ToolFSSearch is the wire name of the content-search tool.
const ToolFSSearch = "fs_search"

// SearchTool searches workspace files for a pattern. All work happens in
// the compute phase.
type SearchTool struct {
	fs FS
}

// NewSearchTool creates an fs_search tool over the given filesystem.
func NewSearchTool(fsys FS) *SearchTool {
	return &SearchTool{fs: fsys}
}

// Definition returns the tool definition for the model.
func (t *SearchTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        ToolFSSearch,
		Description: "Search workspace files for a regular expression. Matches are reported as path:line:text.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"pattern": {"type": "string", "description": "Regular expression to search for"}
			},
			"required": ["pattern"]
		}`),
	}
}

type searchInput struct {
	Pattern string `json:"pattern"`
}

// Compute runs the search and formats the matches.
func (t *SearchTool) Compute(ctx context.Context, use llm.ToolUse) (*agent.Pending, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var in searchInput
	if err := decodeInput(use, &in); err != nil {
		return ready(use, errorResult("invalid fs_search input: %v", err)), nil
	}
	if in.Pattern == "" {
		return ready(use, errorResult("pattern is required")), nil
	}
	matches, err := t.fs.Search(in.Pattern)
	if err != nil {
		return ready(use, errorResult("searching for %q: %v", in.Pattern, err)), nil
	}
	count := strings.Count(matches, "\n")
	return ready(use, llm.ToolResult{
		Content: fmt.Sprintf("%s\nsearch returned %d results\n", matches, count),
	}), nil
}

// Apply returns the computed matches.
func (t *SearchTool) Apply(_ context.Context, pending *agent.Pending) (llm.ToolResult, error) {
	return takeResult(ToolFSSearch, pending)
}
