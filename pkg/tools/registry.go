package tools

import (
	"fmt"
	"sync"

	"parley/pkg/agent"
	"parley/pkg/llm"
)

// Registry assembles the toolset exposed to an agent. Registration order is
// preserved: it is the order definitions appear in requests.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]agent.Tool
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]agent.Tool)}
}

// Register adds a tool. Duplicate names are an error.
func (r *Registry) Register(tool agent.Tool) error {
	name := tool.Definition().Name
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %s already registered", name)
	}
	r.tools[name] = tool
	r.order = append(r.order, name)
	return nil
}

// Get returns a registered tool by name.
func (r *Registry) Get(name string) (agent.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Tools returns the registered tools in registration order.
func (r *Registry) Tools() []agent.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]agent.Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Definitions returns the registered tools' definitions in registration
// order.
func (r *Registry) Definitions() []llm.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]llm.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].Definition())
	}
	return out
}

// FSTools returns the built-in filesystem toolset over fsys: fs_read,
// fs_write, fs_list, fs_search.
func FSTools(fsys FS) []agent.Tool {
	return []agent.Tool{
		NewReadTool(fsys),
		NewWriteTool(fsys),
		NewListTool(fsys),
		NewSearchTool(fsys),
	}
}
