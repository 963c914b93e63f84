package tutor

import (
	"context"
	"errors"
	"fmt"
)

// Handler is the single capability every agent exposes: accept conversation
// state, return updated state. Handlers append exactly one assistant turn in
// the common case and may update CurrentAgent to steer the next message.
type Handler interface {
	Handle(ctx context.Context, state *State) (*State, error)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, state *State) (*State, error)

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, state *State) (*State, error) {
	return f(ctx, state)
}

// Registry maps the fixed agent names to their handlers. It is populated at
// startup and read-only afterwards, so no locking is needed at dispatch time.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds a handler to one of the fixed agent names.
func (r *Registry) Register(name string, handler Handler) error {
	if handler == nil {
		return fmt.Errorf("handler for %s cannot be nil", name)
	}
	if !isAgentName(name) {
		return fmt.Errorf("%w: %s is not a registered agent name", ErrUnknownAgent, name)
	}
	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("agent %s already registered", name)
	}
	r.handlers[name] = handler
	return nil
}

// Has reports whether a handler is registered under the given name.
func (r *Registry) Has(name string) bool {
	_, ok := r.handlers[name]
	return ok
}

// Names returns the registered agent names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	return names
}

// Resolve returns the handler for the given name. A name outside the
// registered set is a configuration error, not a recoverable condition.
func (r *Registry) Resolve(name string) (Handler, error) {
	handler, ok := r.handlers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAgent, name)
	}
	return handler, nil
}

// Dispatch resolves the named handler and invokes it once with the current
// state. Handler failures outside the invocation taxonomy are surfaced as
// generation failures.
func (r *Registry) Dispatch(ctx context.Context, name string, state *State) (*State, error) {
	handler, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}

	next, err := handler.Handle(ctx, state)
	if err != nil {
		if errors.Is(err, ErrGenerationFailure) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: agent %s: %v", ErrGenerationFailure, name, err)
	}
	if next == nil {
		return nil, fmt.Errorf("%w: agent %s returned nil state", ErrGenerationFailure, name)
	}
	return next, nil
}

func isAgentName(name string) bool {
	switch name {
	case AgentClassifier, AgentFeynman, AgentTeacher, AgentQuiz:
		return true
	}
	return false
}
