package agent

import (
	"sync"

	"github.com/shayc/relay/pkg/models"
)

// Registry holds agents in registration order. Lookup returns the
// first agent that claims a kind, so registration order is routing
// precedence.
type Registry struct {
	mu     sync.RWMutex
	agents []Agent
	byName map[string]Agent
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Agent)}
}

// Register appends an agent. Registering a duplicate name replaces the
// earlier entry in the name index but keeps ordering of the original.
func (r *Registry) Register(a Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents = append(r.agents, a)
	r.byName[a.Name()] = a
}

// FindHandler returns the first registered agent that handles the
// kind, or nil when no agent claims it.
func (r *Registry) FindHandler(kind models.TaskKind) Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.agents {
		if a.CanHandle(kind) {
			return a
		}
	}
	return nil
}

// Get returns the agent with the given name, or nil.
func (r *Registry) Get(name string) Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byName[name]
}

// Names lists registered agent names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.agents))
	for _, a := range r.agents {
		names = append(names, a.Name())
	}
	return names
}
