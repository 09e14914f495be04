package generation

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry resolves provider identities and aliases to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	aliases   map[string]string
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		aliases:   make(map[string]string),
	}
}

// Register adds a factory under its name and any aliases
func (r *Registry) Register(f Factory, aliases ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := strings.ToLower(f.Name())
	if name == "" {
		return fmt.Errorf("provider factory must have a non-empty name")
	}
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("provider '%s' is already registered", name)
	}
	for _, alias := range aliases {
		alias = strings.ToLower(alias)
		if _, taken := r.factories[alias]; taken {
			return fmt.Errorf("alias '%s' collides with a provider name", alias)
		}
		if owner, taken := r.aliases[alias]; taken {
			return fmt.Errorf("alias '%s' is already used by '%s'", alias, owner)
		}
	}

	r.factories[name] = f
	for _, alias := range aliases {
		r.aliases[strings.ToLower(alias)] = name
	}
	return nil
}

// Resolve returns the canonical provider name for a name or alias
func (r *Registry) Resolve(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	name = strings.ToLower(strings.TrimSpace(name))
	if _, ok := r.factories[name]; ok {
		return name, true
	}
	if canonical, ok := r.aliases[name]; ok {
		return canonical, true
	}
	return "", false
}

// Lookup returns the factory for a name or alias
func (r *Registry) Lookup(name string) (Factory, error) {
	canonical, ok := r.Resolve(name)
	if !ok {
		return nil, fmt.Errorf("unknown provider '%s' (available: %s)", name, strings.Join(r.Names(), ", "))
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.factories[canonical], nil
}

// Create builds a backend, filling in the provider's default model
func (r *Registry) Create(cfg ProviderConfig) (Backend, error) {
	f, err := r.Lookup(cfg.Name)
	if err != nil {
		return nil, err
	}
	cfg.Name = f.Name()
	if cfg.Model == "" {
		cfg.Model = f.DefaultModel()
	}
	backend, err := f.Create(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider '%s': %w", cfg.Name, err)
	}
	return backend, nil
}

// Names returns the registered provider names, sorted
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
