package agent

import (
	"context"
	"sync"
)

// Agent is the subset of *Loop the router and gateway depend on. Defined as
// an interface (rather than depending on *Loop directly) so tests can stub
// an agent without building a full LoopConfig.
type Agent interface {
	ID() string
	Model() string
	IsRunning() bool
	Run(ctx context.Context, req RunRequest) (*RunResult, error)
}

// ResolverFunc builds (or looks up) the Agent behind an agent key. Agent keys
// are config.AgentsConfig.List keys — see NewConfigResolver.
type ResolverFunc func(agentKey string) (Agent, error)

type agentEntry struct {
	agent Agent
	err   error
}

// Router resolves and caches agents by key, so a gateway serving many
// sessions against the same agent only builds its Loop once. Resolution
// failures are not cached — a transient error (e.g. no provider available
// yet) should not poison future lookups.
type Router struct {
	mu       sync.Mutex
	resolver ResolverFunc
	agents   map[string]*agentEntry
}

func NewRouter(resolver ResolverFunc) *Router {
	return &Router{
		resolver: resolver,
		agents:   make(map[string]*agentEntry),
	}
}

// Resolve returns the cached agent for agentKey, building it via the
// resolver on first use.
func (r *Router) Resolve(agentKey string) (Agent, error) {
	r.mu.Lock()
	if entry, ok := r.agents[agentKey]; ok {
		r.mu.Unlock()
		return entry.agent, entry.err
	}
	r.mu.Unlock()

	ag, err := r.resolver(agentKey)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		r.agents[agentKey] = &agentEntry{agent: ag}
	}
	return ag, err
}

// InvalidateAgent removes an agent from the router cache, forcing
// re-resolution on next lookup. Used after a config reload changes one
// agent's settings.
func (r *Router) InvalidateAgent(agentKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.agents, agentKey)
}

// InvalidateAll clears the entire agent cache, forcing every agent to
// re-resolve. Used after a config reload that may have touched shared
// state (tools, skills, providers).
func (r *Router) InvalidateAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents = make(map[string]*agentEntry)
}
