package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/nextlevelbuilder/surprisebot/internal/agent"
	"github.com/nextlevelbuilder/surprisebot/internal/bootstrap"
	"github.com/nextlevelbuilder/surprisebot/internal/budget"
	"github.com/nextlevelbuilder/surprisebot/internal/bus"
	"github.com/nextlevelbuilder/surprisebot/internal/config"
	"github.com/nextlevelbuilder/surprisebot/internal/cron"
	"github.com/nextlevelbuilder/surprisebot/internal/heartbeat"
	"github.com/nextlevelbuilder/surprisebot/internal/incident"
	"github.com/nextlevelbuilder/surprisebot/internal/ledger"
	"github.com/nextlevelbuilder/surprisebot/internal/missioncontrol"
	"github.com/nextlevelbuilder/surprisebot/internal/providers"
	"github.com/nextlevelbuilder/surprisebot/internal/scheduler"
	"github.com/nextlevelbuilder/surprisebot/internal/sessions"
	"github.com/nextlevelbuilder/surprisebot/internal/skills"
	"github.com/nextlevelbuilder/surprisebot/internal/store"
	"github.com/nextlevelbuilder/surprisebot/internal/store/file"
	"github.com/nextlevelbuilder/surprisebot/internal/tools"
	"github.com/nextlevelbuilder/surprisebot/internal/tracing"
	"github.com/nextlevelbuilder/surprisebot/pkg/protocol"
)

// runGateway boots the orchestrator: load config, wire providers/tools,
// resolve agents, and drive the four stimulus sources spec.md §3 names
// (interactive via the inbound bus, cron, filesystem incidents, heartbeat)
// through the scheduler into agent runs.
func runGateway() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if !cfg.HasAnyProvider() {
		slog.Error("no AI provider API key configured", "hint", "set a provider key via env or config.json, or run `surprisebot setup`")
		os.Exit(1)
	}

	msgBus := bus.New()

	providerRegistry := providers.NewRegistry()
	registerProviders(providerRegistry, cfg)
	cooldowns := providers.NewCooldownTracker()

	workspace := config.ExpandHome(cfg.Agents.Defaults.Workspace)
	if workspace == "" {
		workspace = "./workspace"
	}
	if !filepath.IsAbs(workspace) {
		workspace, _ = filepath.Abs(workspace)
	}
	if err := os.MkdirAll(workspace, 0755); err != nil {
		slog.Error("failed to create workspace directory", "workspace", workspace, "error", err)
		os.Exit(1)
	}

	seededFiles, seedErr := bootstrap.EnsureWorkspaceFiles(workspace)
	if seedErr != nil {
		slog.Warn("bootstrap template seeding failed", "error", seedErr)
	} else if len(seededFiles) > 0 {
		slog.Info("seeded workspace templates", "files", seededFiles)
	}

	// State directories: ledger (run/budget/incident records) and the
	// mission-control SQLite DB both live under SURPRISEBOT_STATE_DIR (or
	// workspace/memory by default, matching spec.md §6).
	stateDir := os.Getenv("SURPRISEBOT_STATE_DIR")
	if stateDir == "" {
		stateDir = filepath.Join(workspace, "memory")
	}
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		slog.Error("failed to create state directory", "dir", stateDir, "error", err)
		os.Exit(1)
	}
	ledgerStore := ledger.NewStore(filepath.Join(stateDir, "ledger"))
	budgetMgr := budget.NewManager(ledgerStore)

	agentCfg := cfg.ResolveAgent(cfg.ResolveDefaultAgentID())

	toolsReg := tools.NewRegistry()
	toolsReg.Register(tools.NewReadFileTool(workspace, agentCfg.RestrictToWorkspace))
	toolsReg.Register(tools.NewWriteFileTool(workspace, agentCfg.RestrictToWorkspace))
	toolsReg.Register(tools.NewListFilesTool(workspace, agentCfg.RestrictToWorkspace))
	toolsReg.Register(tools.NewEditFileTool(workspace, agentCfg.RestrictToWorkspace))
	toolsReg.Register(tools.NewExecTool(workspace, agentCfg.RestrictToWorkspace))

	webSearchTool := tools.NewWebSearchTool(tools.WebSearchConfig{
		BraveEnabled: cfg.Tools.Web.Brave.Enabled,
		BraveAPIKey:  cfg.Tools.Web.Brave.APIKey,
		DDGEnabled:   cfg.Tools.Web.DuckDuckGo.Enabled,
	})
	if webSearchTool != nil {
		toolsReg.Register(webSearchTool)
	}
	toolsReg.Register(tools.NewWebFetchTool(tools.WebFetchConfig{}))

	// Exec approval — deny/allowlist/ask gate in front of the exec tool.
	execCfg := cfg.Tools.ExecApproval
	if execCfg.Security == "" {
		execCfg.Security = "full"
	}
	if execCfg.Ask == "" {
		execCfg.Ask = "off"
	}
	execApprovalMgr := tools.NewExecApprovalManager(execCfg.Security, execCfg.Ask)
	if execTool, ok := toolsReg.Get("exec"); ok {
		if et, ok := execTool.(*tools.ExecTool); ok {
			et.SetApprovalManager(execApprovalMgr, "default")
		}
	}

	globalSkillsDir := os.Getenv("SURPRISEBOT_SKILLS_ROOTS")
	if globalSkillsDir == "" {
		globalSkillsDir = filepath.Join(config.ExpandHome("~/.surprisebot"), "skills")
	}
	skillsLoader := skills.NewLoader(workspace, globalSkillsDir, "")
	toolsReg.Register(tools.NewSkillSearchTool(skillsLoader))

	toolsReg.Register(tools.NewSessionsListTool())
	toolsReg.Register(tools.NewSessionStatusTool())
	toolsReg.Register(tools.NewSessionsHistoryTool())
	toolsReg.Register(tools.NewSessionsSendTool())

	toolPE := tools.NewPolicyEngine(&cfg.Tools)

	// Bootstrap context files (AGENTS.md, SOUL.md, ...) are loaded per-agent
	// by the resolver itself (internal/agent/resolver.go), so there's no
	// shared contextFiles value to thread through here.

	var sessStore store.SessionStore = file.NewFileSessionStore(sessions.NewManager(config.ExpandHome(cfg.Sessions.Storage)))

	var traceCollector *tracing.Collector

	agentRouter := agent.NewRouter(agent.NewConfigResolver(agent.ConfigResolverDeps{
		Config:          cfg,
		ProviderReg:     providerRegistry,
		Bus:             msgBus,
		Sessions:        sessStore,
		Tools:           toolsReg,
		ToolPolicy:      toolPE,
		Skills:          skillsLoader,
		HasMemory:       false,
		TraceCollector:  traceCollector,
		InjectionAction: cfg.Gateway.InjectionAction,
		MaxMessageChars: cfg.Gateway.MaxMessageChars,
		Cooldowns:       cooldowns,
		BudgetMgr:       budgetMgr,
		LedgerStore:     ledgerStore,
	}))

	sched := scheduler.New(agentRouter)

	// --- Mission control: SQLite task DB + periodic rollup/prune ---
	mc, mcErr := missioncontrol.Open(cfg.MissionControl.DBPathOrDefault(workspace))
	if mcErr != nil {
		slog.Error("failed to open mission control DB", "error", mcErr)
		os.Exit(1)
	}

	// --- Incident generator: tail watched files, classify, create tasks ---
	taskCfg := cfg.MissionControl.ToTaskCreationConfig()
	incidentGen, incErr := incident.NewGenerator(cfg.Incidents.ToWatchTargets(), func(inc incident.Incident) {
		_ = ledgerStore.AppendIncident(ledger.IncidentRecord{
			ID:       inc.Fingerprint,
			TS:       inc.At,
			Source:   inc.Source,
			Severity: ledger.IncidentSeverity(inc.Severity),
			Summary:  inc.Summary,
			Evidence: inc.Evidence,
			Meta:     map[string]interface{}{"class": string(inc.Class)},
		})
		result, err := mc.MaybeCreateTaskFromIncident(context.Background(), taskCfg, inc)
		if err != nil {
			slog.Warn("mission control task creation failed", "incident", inc.Fingerprint, "error", err)
			return
		}
		if result.Created {
			slog.Info("task created from incident", "task", result.TaskID, "source", inc.Source, "severity", string(inc.Severity))
			msgBus.PublishInbound(bus.InboundMessage{
				Channel:  "system",
				SenderID: "incident:" + inc.Source,
				Content:  fmt.Sprintf("New task %s from incident: %s", result.TaskID, inc.Summary),
			})
		}
	})
	if incErr != nil {
		slog.Warn("incident generator disabled", "error", incErr)
	}

	var incidentRefresher *incident.Refresher
	if cfg.Incidents.Enabled && cfg.Incidents.MemoryFile != "" {
		incidentRefresher = incident.NewRefresher(cfg.Incidents.MemoryFile, cfg.Incidents.RefreshIntervalOrDefault(), func(ctx context.Context) (string, error) {
			recs, err := ledgerStore.ReadIncidents()
			if err != nil {
				return "", err
			}
			body := fmt.Sprintf("%d recent incidents recorded.\n", len(recs))
			return body, nil
		})
	}

	// --- Heartbeat: periodic self-check turns for the default agent ---
	var heartbeatSched *heartbeat.Scheduler
	if hbCfg := agentCfg.Heartbeat.ToHeartbeatConfig(); hbCfg.Enabled {
		defaultAgentID := cfg.ResolveDefaultAgentID()
		heartbeatSched = heartbeat.NewScheduler(
			defaultAgentID,
			hbCfg,
			func() int { return sched.QueueSize(scheduler.LaneInteractive) },
			nil,
			func(ctx context.Context, prompt string) (string, bool, error) {
				sessionKey := sessions.BuildAgentMainSessionKey(defaultAgentID, "heartbeat")
				outCh := sched.Schedule(ctx, scheduler.LaneHeartbeat, agent.RunRequest{
					SessionKey: sessionKey,
					Message:    prompt,
					Channel:    "system",
					RunID:      fmt.Sprintf("heartbeat:%d", time.Now().UnixNano()),
					TraceName:  "Heartbeat",
					TraceTags:  []string{"heartbeat"},
				})
				outcome := <-outCh
				if outcome.Err != nil {
					return "", false, outcome.Err
				}
				return outcome.Result.Content, len(outcome.Result.Media) > 0, nil
			},
			func(ctx context.Context, reply string) error {
				msgBus.PublishOutbound(bus.OutboundMessage{Channel: "system", ChatID: "heartbeat", Content: reply})
				return nil
			},
			func(ev heartbeat.Event) {
				slog.Info("heartbeat", "reason", string(ev.Reason), "outcome", string(ev.Outcome), "detail", ev.Detail)
			},
		)
	}

	// --- Cron: config-driven schedule, routed through the cron lane ---
	cronRunner := cron.NewRunner(cfg.Cron.ToRetryConfig(), makeCronJobHandler(sched, msgBus, cfg), func(o cron.Outcome) {
		if o.Err != nil {
			slog.Warn("cron job failed", "job", o.Job.ID, "error", o.Err)
		} else {
			slog.Info("cron job completed", "job", o.Job.ID, "status", o.Status)
		}
	})
	cronRunner.SetJobs(cfg.CronJobs.ToJobs())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go cronRunner.Run(ctx, cfg.CronJobs.Tick())

	if incidentGen != nil {
		incidentGen.Start(ctx)
		defer incidentGen.Close()
	}
	if incidentRefresher != nil {
		incidentRefresher.Start(ctx)
		defer incidentRefresher.Stop()
	}
	if heartbeatSched != nil {
		heartbeatSched.Start(ctx)
		defer heartbeatSched.Stop()
	}

	// Mission control maintenance: periodic rollup of cold ledger records
	// and duplicate-incident pruning, per spec.md §4.11.
	rollupCfg := cfg.MissionControl.ToRollupConfig()
	go runPeriodic(ctx, cfg.MissionControl.RollupInterval(), func() {
		if err := missioncontrol.Rollup(ledgerStore, rollupCfg, time.Now().UTC()); err != nil {
			slog.Warn("ledger rollup failed", "error", err)
		}
	})
	go runPeriodic(ctx, cfg.MissionControl.PruneInterval(), func() {
		if err := missioncontrol.PruneDuplicates(context.Background(), ledgerStore, mc); err != nil {
			slog.Warn("incident dedupe prune failed", "error", err)
		}
	})

	// Inbound consumer: channel-origin messages enter the interactive lane.
	go consumeInboundMessages(ctx, msgBus, sched, cfg)

	go func() {
		sig := <-sigCh
		slog.Info("graceful shutdown initiated", "signal", sig)
		cancel()
		_ = mc.Close()
	}()

	slog.Info("surprisebot gateway starting",
		"version", Version,
		"protocol", protocol.ProtocolVersion,
		"workspace", workspace,
		"tools", len(toolsReg.List()),
	)

	<-ctx.Done()
	slog.Info("surprisebot gateway stopped")
}

// runPeriodic runs fn immediately and then every interval until ctx is
// cancelled.
func runPeriodic(ctx context.Context, interval time.Duration, fn func()) {
	if interval <= 0 {
		return
	}
	fn()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

// consumeInboundMessages drains the bus's inbound queue and schedules each
// message onto the interactive lane, matching spec.md §4.1's stimulus
// intake for channel-origin messages.
func consumeInboundMessages(ctx context.Context, msgBus *bus.MessageBus, sched *scheduler.Scheduler, cfg *config.Config) {
	for {
		msg, ok := msgBus.ConsumeInbound(ctx)
		if !ok {
			return
		}
		agentID := cfg.ResolveDefaultAgentID()
		sessionKey := sessions.BuildSessionKey(agentID, msg.Channel, sessions.PeerDirect, msg.SenderID)
		outCh := sched.Schedule(ctx, scheduler.LaneInteractive, agent.RunRequest{
			SessionKey: sessionKey,
			Message:    msg.Content,
			Channel:    msg.Channel,
			ChatID:     msg.ChatID,
			UserID:     msg.UserID,
			SenderID:   msg.SenderID,
			RunID:      fmt.Sprintf("msg:%d", time.Now().UnixNano()),
			TraceName:  fmt.Sprintf("Chat [%s]", msg.Channel),
		})
		go func() {
			outcome := <-outCh
			if outcome.Err != nil {
				slog.Warn("inbound message run failed", "channel", msg.Channel, "error", outcome.Err)
				return
			}
			msgBus.PublishOutbound(bus.OutboundMessage{
				Channel: msg.Channel,
				ChatID:  msg.ChatID,
				Content: outcome.Result.Content,
			})
		}()
	}
}
