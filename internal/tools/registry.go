package tools

import (
	"context"
	"fmt"
	"sync"

	"github.com/nextlevelbuilder/surprisebot/internal/providers"
)

// Tool is the interface every registered tool implements. Execute receives
// a context already carrying the per-call channel/chatID/peerKind/sandbox
// values (see context_keys.go); tools read them via the *FromCtx helpers
// instead of mutable setter fields, so one Tool instance is safe to share
// across concurrent runs.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]interface{}
	Execute(ctx context.Context, args map[string]interface{}) *Result
}

// AsyncCallback delivers a deferred tool result (e.g. a long-running exec)
// back to the run that originated the call, keyed by toolCallId.
type AsyncCallback func(toolCallID string, result *Result)

// ToProviderDef converts a registered Tool into the wire-level
// providers.ToolDefinition the LLM sees.
func ToProviderDef(t Tool) providers.ToolDefinition {
	return providers.ToolDefinition{
		Type: "function",
		Function: providers.ToolFunctionSchema{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		},
	}
}

// Registry holds every tool known to the process, keyed by canonical name.
// A single Registry is shared across agents; per-run restriction happens in
// PolicyEngine.FilterTools, not here.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool, replacing any existing tool under the same name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := t.Name()
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = t
}

// Get returns the tool registered under name, if any.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns every registered tool name in registration order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// ProviderDefs returns every registered tool's wire definition, unfiltered.
// Used when no PolicyEngine is configured (e.g. standalone CLI mode).
func (r *Registry) ProviderDefs() []providers.ToolDefinition {
	r.mu.RLock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	r.mu.RUnlock()

	defs := make([]providers.ToolDefinition, 0, len(names))
	for _, name := range names {
		if t, ok := r.Get(name); ok {
			defs = append(defs, ToProviderDef(t))
		}
	}
	return defs
}

// ExecuteWithContext looks up name and runs it with the call-scoped values
// injected into ctx, matching the per-call context-injection pattern the
// agent runner already uses for vision config and builtin tool settings.
// sessionKey is injected as the sandbox key (see ToolSandboxKeyFromCtx).
func (r *Registry) ExecuteWithContext(ctx context.Context, name string, args map[string]interface{}, channel, chatID, peerKind, sessionKey string, asyncCB AsyncCallback) *Result {
	t, ok := r.Get(name)
	if !ok {
		return ErrorResult(fmt.Sprintf("unknown tool: %s", name))
	}

	ctx = WithToolChannel(ctx, channel)
	ctx = WithToolChatID(ctx, chatID)
	ctx = WithToolPeerKind(ctx, peerKind)
	ctx = WithToolSandboxKey(ctx, sessionKey)
	if asyncCB != nil {
		ctx = WithToolAsyncCB(ctx, asyncCB)
	}

	return t.Execute(ctx, args)
}
