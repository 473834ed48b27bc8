// Package tools maps tool names the agent can call to local handlers.
package tools

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Registry holds tool handlers by name and gates their execution.
// It is safe for concurrent use.
type Registry struct {
	logger *slog.Logger

	mu      sync.RWMutex
	tools   map[string]Tool
	running bool
}

// NewRegistry creates an empty, stopped registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger: logger.With("component", "tools"),
		tools:  make(map[string]Tool),
	}
}

// Register adds handler under name. The first registration of a name wins.
func (r *Registry) Register(name string, handler Handler) error {
	return r.RegisterTool(Tool{Name: name, Handler: handler})
}

// RegisterTool adds a tool definition.
func (r *Registry) RegisterTool(t Tool) error {
	if t.Name == "" {
		return &Error{Tool: t.Name, Err: ErrInvalidName}
	}
	if t.Handler == nil {
		return &Error{Tool: t.Name, Err: ErrInvalidHandler}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[t.Name]; exists {
		return &Error{Tool: t.Name, Err: ErrDuplicateName}
	}
	r.tools[t.Name] = t

	r.logger.Debug("tool registered", "tool", t.Name)
	return nil
}

// Start allows Handle to run handlers.
func (r *Registry) Start() {
	r.mu.Lock()
	r.running = true
	r.mu.Unlock()
}

// Stop makes Handle return ErrNotRunning. Handlers already running finish.
func (r *Registry) Stop() {
	r.mu.Lock()
	r.running = false
	r.mu.Unlock()
}

// Running reports whether the registry accepts calls.
func (r *Registry) Running() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Tool returns the definition registered under name.
func (r *Registry) Tool(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Handle runs the handler registered under name with params and returns
// its result. Handler errors are returned unchanged; registry failures
// come back as *Error.
func (r *Registry) Handle(ctx context.Context, name string, params map[string]any) (any, error) {
	r.mu.RLock()
	running := r.running
	t, ok := r.tools[name]
	r.mu.RUnlock()

	if !running {
		return nil, &Error{Tool: name, Err: ErrNotRunning}
	}
	if !ok {
		return nil, &Error{Tool: name, Err: ErrUnknownTool}
	}

	start := time.Now()
	result, err := t.Handler(ctx, params)
	if err != nil {
		r.logger.Warn("tool failed", "tool", name, "error", err, "duration", time.Since(start))
		return result, err
	}

	r.logger.Debug("tool completed", "tool", name, "duration", time.Since(start))
	return result, nil
}
