package agent

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/nextlevelbuilder/surprisebot/internal/bootstrap"
	"github.com/nextlevelbuilder/surprisebot/internal/budget"
	"github.com/nextlevelbuilder/surprisebot/internal/bus"
	"github.com/nextlevelbuilder/surprisebot/internal/config"
	"github.com/nextlevelbuilder/surprisebot/internal/ledger"
	"github.com/nextlevelbuilder/surprisebot/internal/providers"
	"github.com/nextlevelbuilder/surprisebot/internal/skills"
	"github.com/nextlevelbuilder/surprisebot/internal/store"
	"github.com/nextlevelbuilder/surprisebot/internal/tools"
	"github.com/nextlevelbuilder/surprisebot/internal/tracing"
)

// ConfigResolverDeps holds the shared dependencies a config-driven resolver
// wires into every agent it builds. Agents themselves come from
// config.AgentsConfig.List — there is no per-tenant agent registry here;
// this is a single-deployment orchestrator, not a multi-tenant SaaS.
type ConfigResolverDeps struct {
	Config      *config.Config
	ProviderReg *providers.Registry
	Bus         bus.EventPublisher
	Sessions    store.SessionStore
	Tools       *tools.Registry
	ToolPolicy  *tools.PolicyEngine
	Skills      *skills.Loader
	HasMemory   bool
	OnEvent     func(AgentEvent)
	TraceCollector *tracing.Collector

	InjectionAction string // "log", "warn", "block", "off"
	MaxMessageChars int

	// Model failover + budget enforcement (spec.md §4.2/§4.4/§4.5). Any of
	// these left nil disables the corresponding Loop behavior.
	Cooldowns   *providers.CooldownTracker
	BudgetMgr   *budget.Manager
	LedgerStore *ledger.Store
}

// NewConfigResolver creates a ResolverFunc that builds Loops from
// config.AgentsConfig: agentKey looks up cfg.Agents.List[agentKey], falling
// back to cfg.Agents.Defaults for any field the per-agent spec leaves zero.
func NewConfigResolver(deps ConfigResolverDeps) ResolverFunc {
	return func(agentKey string) (Agent, error) {
		cfg := deps.Config
		spec, ok := cfg.Agents.List[agentKey]
		if !ok && agentKey != "" {
			slog.Debug("agent key not in config list, using defaults", "agent", agentKey)
		}
		defaults := cfg.ResolveAgent(agentKey)

		providerName := spec.Provider
		if providerName == "" {
			providerName = defaults.Provider
		}
		provider, err := deps.ProviderReg.Get(providerName)
		if err != nil {
			names := deps.ProviderReg.List()
			if len(names) == 0 {
				return nil, fmt.Errorf("no providers configured for agent %s", agentKey)
			}
			provider, _ = deps.ProviderReg.Get(names[0])
			slog.Warn("agent provider not found, using fallback",
				"agent", agentKey, "wanted", providerName, "using", names[0])
		}

		model := spec.Model
		if model == "" {
			model = defaults.Model
		}
		contextWindow := spec.ContextWindow
		if contextWindow <= 0 {
			contextWindow = defaults.ContextWindow
		}
		if contextWindow <= 0 {
			contextWindow = 200000
		}
		maxIter := spec.MaxToolIterations
		if maxIter <= 0 {
			maxIter = defaults.MaxToolIterations
		}
		if maxIter <= 0 {
			maxIter = 20
		}
		agentType := spec.AgentType
		if agentType == "" {
			agentType = defaults.AgentType
		}

		workspace := spec.Workspace
		if workspace == "" {
			workspace = defaults.Workspace
		}
		workspace = config.ExpandHome(workspace)
		if workspace != "" && !filepath.IsAbs(workspace) {
			workspace, _ = filepath.Abs(workspace)
		}
		if workspace != "" {
			if err := os.MkdirAll(workspace, 0755); err != nil {
				slog.Warn("failed to create agent workspace directory", "workspace", workspace, "agent", agentKey, "error", err)
			}
		}

		// Seed and load bootstrap context files (AGENTS.md, SOUL.md, ...) from
		// the agent's own workspace — see internal/bootstrap.
		var contextFiles []bootstrap.ContextFile
		if workspace != "" {
			if _, err := bootstrap.EnsureWorkspaceFiles(workspace); err != nil {
				slog.Warn("failed to seed workspace files", "workspace", workspace, "agent", agentKey, "error", err)
			}
			raw := bootstrap.LoadWorkspaceFiles(workspace)
			truncCfg := bootstrap.TruncateConfig{
				MaxCharsPerFile: defaults.BootstrapMaxChars,
				TotalMaxChars:   defaults.BootstrapTotalMaxChars,
			}
			if truncCfg.MaxCharsPerFile <= 0 {
				truncCfg.MaxCharsPerFile = bootstrap.DefaultMaxCharsPerFile
			}
			if truncCfg.TotalMaxChars <= 0 {
				truncCfg.TotalMaxChars = bootstrap.DefaultTotalMaxChars
			}
			contextFiles = bootstrap.BuildContextFiles(raw, truncCfg)
		}

		compaction := defaults.Compaction
		contextPruning := defaults.ContextPruning

		sandboxEnabled := false
		sandboxContainerDir := ""
		sandboxWorkspaceAccess := "rw"
		sandboxCfg := spec.Sandbox
		if sandboxCfg == nil {
			sandboxCfg = defaults.Sandbox
		}
		if sandboxCfg != nil {
			resolved := sandboxCfg.ToSandboxConfig()
			sandboxEnabled = resolved.Mode != "off"
			sandboxContainerDir = "/workspace"
			sandboxWorkspaceAccess = string(resolved.Access)
		}

		hasMemory := deps.HasMemory

		fallbacks, allowList := cfg.ResolveModelFallback(agentKey)
		jobType := spec.JobType
		budgetCfg := cfg.ResolveBudgetConfig(agentKey, jobType)

		loop := NewLoop(LoopConfig{
			ID:              agentKey,
			AgentUUID:       deterministicAgentUUID(agentKey),
			AgentType:       agentType,
			Provider:        provider,
			Model:           model,
			ContextWindow:   contextWindow,
			MaxIterations:   maxIter,
			Workspace:       workspace,
			Bus:             deps.Bus,
			Sessions:        deps.Sessions,
			Tools:           deps.Tools,
			ToolPolicy:      deps.ToolPolicy,
			AgentToolPolicy: spec.Tools,
			OwnerIDs:        cfg.Gateway.OwnerIDs,
			SkillsLoader:    deps.Skills,
			SkillAllowList:  spec.Skills,
			HasMemory:       hasMemory,
			ContextFiles:    contextFiles,
			OnEvent:         deps.OnEvent,
			TraceCollector:  deps.TraceCollector,
			InjectionAction: deps.InjectionAction,
			MaxMessageChars: deps.MaxMessageChars,
			CompactionCfg:          compaction,
			ContextPruningCfg:      contextPruning,
			SandboxEnabled:         sandboxEnabled,
			SandboxContainerDir:    sandboxContainerDir,
			SandboxWorkspaceAccess: sandboxWorkspaceAccess,
			ProviderRegistry:       deps.ProviderReg,
			Fallbacks:              fallbacks,
			AllowList:              allowList,
			Cooldowns:              deps.Cooldowns,
			BudgetMgr:              deps.BudgetMgr,
			BudgetCfg:              budgetCfg,
			LedgerStore:            deps.LedgerStore,
			JobType:                jobType,
		})

		slog.Info("resolved agent from config", "agent", agentKey, "model", model, "provider", provider.Name())
		return loop, nil
	}
}

// deterministicAgentUUID derives a stable UUID from an agent key so tools
// that key off AgentUUID (sandbox scoping, trace attribution) get a
// consistent identity across resolves without a database row to own one.
func deterministicAgentUUID(agentKey string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("surprisebot-agent:"+agentKey))
}
