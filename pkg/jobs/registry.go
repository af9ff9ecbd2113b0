package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/taskwellio/taskwell/pkg/pool"
)

var (
	// ErrUnknownKind is returned when no handler is registered for a job kind
	ErrUnknownKind = errors.New("unknown job kind")

	// ErrDuplicateKind is returned when registering a kind twice
	ErrDuplicateKind = errors.New("job kind already registered")
)

// Handler executes one job kind. payload is the raw submission payload;
// the handler owns its decoding.
type Handler func(ctx context.Context, payload json.RawMessage) error

// Submission is the wire envelope accepted by the gateway and the NATS
// bridge. Kind selects the registered handler; Payload is opaque to the
// pool and handed to the handler as-is.
type Submission struct {
	Name    string          `json:"name,omitempty"`
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Registry maps job kinds to handlers.
// Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register adds a handler for kind.
// Returns ErrDuplicateKind if the kind is already registered.
func (r *Registry) Register(kind string, h Handler) error {
	if kind == "" {
		return errors.New("job kind cannot be empty")
	}
	if h == nil {
		return errors.New("handler cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.handlers[kind]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateKind, kind)
	}
	r.handlers[kind] = h
	return nil
}

// Resolve returns the handler for kind
func (r *Registry) Resolve(kind string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[kind]
	return h, ok
}

// Kinds returns the registered kinds (unordered)
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		kinds = append(kinds, k)
	}
	return kinds
}

// Job builds a pool job from a submission, resolving its handler.
// Returns ErrUnknownKind when no handler matches.
func (r *Registry) Job(sub Submission) (pool.Job, error) {
	h, ok := r.Resolve(sub.Kind)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, sub.Kind)
	}

	name := sub.Name
	if name == "" {
		name = sub.Kind
	}
	payload := sub.Payload

	return pool.NewNamedJob(name, func(ctx context.Context) error {
		return h(ctx, payload)
	}), nil
}
