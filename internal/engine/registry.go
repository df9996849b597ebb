package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/mhollis/warren/pkg/ledger"
)

// Handler executes a due evaluation and reports its outcome. Handlers run
// inside the worker; the engine never invokes them.
type Handler func(ctx context.Context, e *ledger.Evaluation) *ledger.EvaluationResult

// Registry maps deliverable handler names to executable handlers. It is an
// explicit object constructed once and passed by reference into the
// worker, not a shared module-level map. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds a handler under the given name. Registering a duplicate
// name is an error.
func (r *Registry) Register(name string, h Handler) error {
	if name == "" {
		return fmt.Errorf("handler name cannot be empty")
	}
	if h == nil {
		return fmt.Errorf("handler %q cannot be nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("handler %q already registered", name)
	}
	r.handlers[name] = h
	return nil
}

// Get returns the handler registered under name.
func (r *Registry) Get(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Names returns the registered handler names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
