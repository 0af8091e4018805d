package plugins

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds a plugin from its spec, validating the options.
type Factory func(spec Spec, env Env) (Plugin, error)

// Registry maps plugin kinds to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry knows every plugin kind this tool ships.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(KindSchemaTypes, newSchemaTypes)
	r.Register(KindSchemaDefaults, newSchemaDefaults)
	r.Register(KindVersion, newVersion)
	r.Register(KindManifest, newManifest)
	r.Register(KindWebpack, newBundlerOnly)
	return r
}

func (r *Registry) Register(kind string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = f
}

// New builds the plugin described by spec.
func (r *Registry) New(spec Spec, env Env) (Plugin, error) {
	r.mu.RLock()
	f, ok := r.factories[spec.Kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, spec.Kind)
	}
	p, err := f(spec, env)
	if err != nil {
		return nil, fmt.Errorf("plugin %s: %w", displayName(spec), err)
	}
	return p, nil
}

// Kinds returns the registered kinds, sorted.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

func displayName(spec Spec) string {
	if spec.Name != "" {
		return spec.Name
	}
	return spec.Kind
}
