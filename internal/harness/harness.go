// Package harness runs named test handlers against the startup state read
// from stdin. Handlers are registered explicitly; asking for a name that
// was never registered is an error rather than a silent no-op.
package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/banshee-data/telemetry.replay/internal/appstate"
)

// ErrHandlerNotFound matches every HandlerNotFoundError.
var ErrHandlerNotFound = errors.New("handler not found")

// HandlerNotFoundError names the missing handler and what was available.
type HandlerNotFoundError struct {
	Suite     string
	Name      string
	Available []string
}

func (e *HandlerNotFoundError) Error() string {
	return fmt.Sprintf("function %q not found in suite %s (available: %s)",
		e.Name, e.Suite, strings.Join(e.Available, ", "))
}

// Is lets errors.Is match ErrHandlerNotFound.
func (e *HandlerNotFoundError) Is(target error) bool {
	return target == ErrHandlerNotFound
}

// Handler runs one named check. Status lines go to out.
type Handler func(ctx context.Context, state *appstate.AppState, out io.Writer) error

// Registry maps handler names to handlers in registration order.
type Registry struct {
	suite    string
	names    []string
	handlers map[string]Handler
}

// NewRegistry creates an empty registry for the named suite.
func NewRegistry(suite string) *Registry {
	return &Registry{suite: suite, handlers: make(map[string]Handler)}
}

// Suite returns the suite name.
func (r *Registry) Suite() string {
	return r.suite
}

// Register adds h under name. Names must be unique and non-empty.
func (r *Registry) Register(name string, h Handler) error {
	if name == "" {
		return fmt.Errorf("handler name is empty")
	}
	if h == nil {
		return fmt.Errorf("handler %s is nil", name)
	}
	if _, dup := r.handlers[name]; dup {
		return fmt.Errorf("handler %s already registered in %s", name, r.suite)
	}
	r.names = append(r.names, name)
	r.handlers[name] = h
	return nil
}

// MustRegister is Register for static tables; it panics on error.
func (r *Registry) MustRegister(name string, h Handler) {
	if err := r.Register(name, h); err != nil {
		panic(err)
	}
}

// Names returns handler names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Lookup returns the named handler or a *HandlerNotFoundError.
func (r *Registry) Lookup(name string) (Handler, error) {
	h, ok := r.handlers[name]
	if !ok {
		return nil, &HandlerNotFoundError{Suite: r.suite, Name: name, Available: r.Names()}
	}
	return h, nil
}

// Run executes one handler.
func (r *Registry) Run(ctx context.Context, name string, state *appstate.AppState, out io.Writer) error {
	h, err := r.Lookup(name)
	if err != nil {
		return err
	}
	if err := h(ctx, state, out); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// RunAll executes every handler in registration order, stopping at the
// first error or when ctx is cancelled.
func (r *Registry) RunAll(ctx context.Context, state *appstate.AppState, out io.Writer) error {
	for _, name := range r.names {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.Run(ctx, name, state, out); err != nil {
			return err
		}
	}
	return nil
}
