package providers

import (
	"fmt"
	"sort"
	"sync"
)

// Registry is a name-keyed lookup of configured Provider instances, built
// once at startup from config.ProvidersConfig and consulted by the agent
// resolver and by the agent loop's failover attempts when turning a
// candidate's provider name into something that can actually place a call.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider not configured: %s", name)
	}
	return p, nil
}

// List returns configured provider names, sorted for deterministic fallback
// ordering.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
