// Package tools maps chair tool names onto engine operations.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/xiaot623/caucus/internal/domain"
	"github.com/xiaot623/caucus/internal/engine"
)

// ExecutorFunc runs a chair tool against one session's engine.
// The caller holds the session's writer lock.
type ExecutorFunc func(ctx context.Context, eng *engine.Engine, args json.RawMessage) (json.RawMessage, error)

type entry struct {
	description string
	exec        ExecutorFunc
}

// Registry stores tool executors keyed by tool name.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]entry
}

// DefaultRegistry is the shared registry used by the service.
var DefaultRegistry = NewRegistry()

// NewRegistry creates an empty tool executor registry.
func NewRegistry() *Registry {
	return &Registry{
		executors: make(map[string]entry),
	}
}

// Register adds a new executor for a tool name.
func (r *Registry) Register(toolName, description string, exec ExecutorFunc) error {
	if toolName == "" {
		return fmt.Errorf("tool name is required")
	}
	if exec == nil {
		return fmt.Errorf("executor is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.executors[toolName]; exists {
		return fmt.Errorf("executor already registered for %s", toolName)
	}
	r.executors[toolName] = entry{description: description, exec: exec}
	return nil
}

// Has reports whether a tool is registered.
func (r *Registry) Has(toolName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.executors[toolName]
	return ok
}

// Execute runs the executor for the tool name.
func (r *Registry) Execute(ctx context.Context, eng *engine.Engine, toolName string, args json.RawMessage) (json.RawMessage, error) {
	if toolName == "" {
		return nil, fmt.Errorf("%w: tool name is required", domain.ErrUnknownTool)
	}
	r.mu.RLock()
	e, ok := r.executors[toolName]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownTool, toolName)
	}
	return e.exec(ctx, eng, args)
}

// Descriptors lists the registered tools by name.
func (r *Registry) Descriptors() []domain.ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.ToolDescriptor, 0, len(r.executors))
	for name, e := range r.executors {
		out = append(out, domain.ToolDescriptor{Name: name, Description: e.description})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Register adds an executor to the default registry.
func Register(toolName, description string, exec ExecutorFunc) error {
	return DefaultRegistry.Register(toolName, description, exec)
}

// MustRegister adds an executor to the default registry or panics.
func MustRegister(toolName, description string, exec ExecutorFunc) {
	if err := Register(toolName, description, exec); err != nil {
		panic(err)
	}
}
