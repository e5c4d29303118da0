package agent

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds live agent instances by id. It is owned by the
// composition root and does not manage agent lifecycles; callers close
// agents they remove.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]*Agent
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]*Agent)}
}

// Register adds an agent to the registry, replacing any previous agent
// with the same id.
func (r *Registry) Register(a *Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[a.ID()] = a
}

// Unregister removes the agent with the given id and returns it, or
// nil if the id is unknown.
func (r *Registry) Unregister(id string) *Agent {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.agents[id]
	delete(r.agents, id)
	return a
}

// Get returns the agent with the given id.
func (r *Registry) Get(id string) (*Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[id]
	return a, ok
}

// List returns all registered agents sorted by name.
func (r *Registry) List() []*Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Agent, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Len returns the number of registered agents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// Clear removes every agent and returns the removed set.
func (r *Registry) Clear() []*Agent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Agent, 0, len(r.agents))
	for id, a := range r.agents {
		out = append(out, a)
		delete(r.agents, id)
	}
	return out
}

// Constructor builds a concrete agent from a name, description, and a
// free-form settings map. Implementations validate settings and return
// a SettingsError for missing or invalid values.
type Constructor func(name, description string, settings map[string]any) (*Agent, error)

// Factory maps agent type names to constructors.
type Factory struct {
	mu    sync.RWMutex
	types map[string]Constructor
}

// NewFactory returns an empty factory.
func NewFactory() *Factory {
	return &Factory{types: make(map[string]Constructor)}
}

// Register binds a type name to a constructor. Registering an existing
// name overwrites the previous constructor.
func (f *Factory) Register(typeName string, ctor Constructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.types[typeName] = ctor
}

// Create builds a new agent of the given type.
func (f *Factory) Create(typeName, name, description string, settings map[string]any) (*Agent, error) {
	f.mu.RLock()
	ctor, ok := f.types[typeName]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, typeName)
	}
	return ctor(name, description, settings)
}

// Types returns the registered type names, sorted.
func (f *Factory) Types() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, 0, len(f.types))
	for name := range f.types {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
