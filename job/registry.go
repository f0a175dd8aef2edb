package job

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// HandlerFunc is a type-erased job handler. It receives the raw JSON
// payload and a Handle for reporting progress, and returns the result
// bytes stored on the job when it completes.
//
// The typed Definition[T] is converted to a HandlerFunc at registration
// time by closing over JSON codec calls and the typed handler.
type HandlerFunc func(ctx context.Context, payload []byte, h *Handle) ([]byte, error)

// Registry maps job type names to type-erased handler functions.
// Registration is expected during setup, before workers start, but
// concurrent registration and resolution are race-free. The last
// registration for a type wins.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]HandlerFunc)}
}

// RegisterFunc associates a type-erased handler with a job type,
// replacing any prior registration.
func (r *Registry) RegisterFunc(jobType string, fn HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[jobType] = fn
}

// Resolve returns the handler for the given job type.
// Returns false if no handler is registered.
func (r *Registry) Resolve(jobType string) (HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.handlers[jobType]
	return fn, ok
}

// Types returns all registered job type names.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		types = append(types, name)
	}
	return types
}

// RegisterDefinition registers a typed job definition. The generic
// handler is wrapped in a closure that JSON-unmarshals the payload into
// T before the call and JSON-marshals the returned result after it.
//
// This is a package-level generic function because Go does not allow
// generic methods on non-generic receiver types.
func RegisterDefinition[T any](r *Registry, def *Definition[T]) {
	fn := func(ctx context.Context, payload []byte, h *Handle) ([]byte, error) {
		var t T
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &t); err != nil {
				return nil, fmt.Errorf("unmarshal payload for job type %q: %w", def.Name, err)
			}
		}

		res, err := def.Handler(ctx, t, h)
		if err != nil {
			return nil, err
		}
		if res == nil {
			return nil, nil
		}

		data, err := json.Marshal(res)
		if err != nil {
			return nil, fmt.Errorf("marshal result for job type %q: %w", def.Name, err)
		}
		return data, nil
	}

	r.RegisterFunc(def.Name, fn)
}
