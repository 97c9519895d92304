package scene

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// DefaultRef is resolved when a load request carries an empty reference.
const DefaultRef = "canvas"

// ErrSceneNotFound is returned for references no factory is registered for.
var ErrSceneNotFound = errors.New("scene not found")

// ErrInvalidScene is returned when a factory yields no usable scene.
var ErrInvalidScene = errors.New("factory returned no scene")

// LoadError reports a failed scene load.
type LoadError struct {
	Ref string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load scene %q: %v", e.Ref, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Registry maps scene names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[strings.ToLower(strings.TrimSpace(name))] = f
}

// Names returns the registered scene names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseRef splits "name:arg" into its parts. An empty ref becomes DefaultRef.
func ParseRef(ref string) (name, arg string) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return DefaultRef, ""
	}
	name, arg, _ = strings.Cut(ref, ":")
	return strings.ToLower(strings.TrimSpace(name)), strings.TrimSpace(arg)
}

// Resolve returns the factory for ref together with its argument.
func (r *Registry) Resolve(ref string) (Factory, string, error) {
	name, arg := ParseRef(ref)
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, "", &LoadError{Ref: ref, Err: ErrSceneNotFound}
	}
	return f, arg, nil
}

// New resolves ref and builds a fresh scene instance. Instances are never
// cached: every load evaluates the factory again.
func (r *Registry) New(ctx context.Context, ref string, opts Options) (Scene, error) {
	f, arg, err := r.Resolve(ref)
	if err != nil {
		return nil, err
	}
	opts.Arg = arg
	s, err := f(ctx, opts)
	if err != nil {
		return nil, &LoadError{Ref: ref, Err: err}
	}
	if s == nil {
		return nil, &LoadError{Ref: ref, Err: ErrInvalidScene}
	}
	return s, nil
}
