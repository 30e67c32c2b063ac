package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/matrix-org/batesian/pkg/renderer"
	"github.com/matrix-org/batesian/pkg/store"
)

// UnitProvider produces the raw units for a build. It is called once per
// build, before any section is produced.
type UnitProvider interface {
	Units(ctx context.Context, debug bool) (map[string]any, error)
}

// UnitProviderFunc adapts a function to UnitProvider.
type UnitProviderFunc func(ctx context.Context, debug bool) (map[string]any, error)

func (f UnitProviderFunc) Units(ctx context.Context, debug bool) (map[string]any, error) {
	return f(ctx, debug)
}

// SectionBuilder turns units into named text sections. It reads units only
// through the store so unused units can be reported afterwards.
type SectionBuilder interface {
	Sections(ctx context.Context, env *renderer.Environment, units *store.Store, debug bool) (map[string]string, error)
}

// SectionBuilderFunc adapts a function to SectionBuilder.
type SectionBuilderFunc func(ctx context.Context, env *renderer.Environment, units *store.Store, debug bool) (map[string]string, error)

func (f SectionBuilderFunc) Sections(ctx context.Context, env *renderer.Environment, units *store.Store, debug bool) (map[string]string, error) {
	return f(ctx, env, units, debug)
}

// Input is the capability pair selected for a build, plus the directory of
// shared templates the renderer should load before sections are built.
type Input struct {
	Name        string
	Units       UnitProvider
	Sections    SectionBuilder
	TemplateDir string // optional
}

func (in *Input) validate() error {
	if in == nil {
		return errors.New("input is nil")
	}
	if in.Units == nil {
		return fmt.Errorf("input %q has no unit provider", in.Name)
	}
	if in.Sections == nil {
		return fmt.Errorf("input %q has no section builder", in.Name)
	}
	return nil
}

// InputConfig carries the per-input settings from configuration. Empty
// directory fields fall back to their conventional names under Root.
type InputConfig struct {
	Name      string
	Root      string
	Units     string
	Sections  string
	Templates string
}

// Factory builds an Input from its configuration.
type Factory func(cfg InputConfig) (*Input, error)

// Registry maps input names to factories. Inputs are registered at
// program start rather than discovered at runtime.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory. Names must be unique.
func (r *Registry) Register(name string, f Factory) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("input name is empty")
	}
	if f == nil {
		return fmt.Errorf("input %q: factory is nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("input %q is already registered", name)
	}
	r.factories[name] = f
	return nil
}

// Lookup returns the factory registered under name.
func (r *Registry) Lookup(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	return f, ok
}

// Names returns the registered input names, sorted.
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

// Resolve builds the named input.
func (r *Registry) Resolve(name string, cfg InputConfig) (*Input, error) {
	f, ok := r.Lookup(name)
	if !ok {
		known := r.Names()
		if len(known) == 0 {
			return nil, fmt.Errorf("%w %q (no inputs registered)", ErrUnknownInput, name)
		}
		return nil, fmt.Errorf("%w %q (known: %s)", ErrUnknownInput, name, strings.Join(known, ", "))
	}
	if cfg.Name == "" {
		cfg.Name = name
	}
	in, err := f(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating input %q: %w", name, err)
	}
	if in.Name == "" {
		in.Name = name
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	return in, nil
}

// DefaultRegistry holds the inputs compiled into the binary.
var DefaultRegistry = NewRegistry()

// Register adds a factory to DefaultRegistry and panics on a duplicate name.
// It is meant for init functions.
func Register(name string, f Factory) {
	if err := DefaultRegistry.Register(name, f); err != nil {
		panic(err)
	}
}
