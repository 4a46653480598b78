package config

import (
	"time"

	"github.com/nextlevelbuilder/surprisebot/internal/budget"
	"github.com/nextlevelbuilder/surprisebot/internal/cron"
	"github.com/nextlevelbuilder/surprisebot/internal/heartbeat"
	"github.com/nextlevelbuilder/surprisebot/internal/incident"
	"github.com/nextlevelbuilder/surprisebot/internal/missioncontrol"
	"github.com/nextlevelbuilder/surprisebot/internal/providers"
)

// ToScopeConfig converts one BudgetScopeSpec into budget.ScopeConfig,
// leaving zero values for ScopeConfig's own defaulting helpers to fill in.
func (s BudgetScopeSpec) ToScopeConfig(id string) budget.ScopeConfig {
	cfg := budget.ScopeConfig{
		ID:      id,
		WarnPct: s.WarnPct,
		HardPct: s.HardPct,
		Caps: budget.Caps{
			RunLimit:          s.RunLimit,
			TokenLimit:        s.TokenLimit,
			ConcurrencyLimit:  s.ConcurrencyLimit,
			QueryLimit:        s.QueryLimit,
			MaxRuntimeSeconds: s.MaxRuntimeSeconds,
			MaxOutputChars:    s.MaxOutputChars,
			TokenEstimate:     s.TokenEstimate,
		},
	}
	if s.Enforcement == "soft" {
		cfg.Enforcement = budget.Soft
	} else {
		cfg.Enforcement = budget.Hard
	}
	if s.Window != "" {
		if d, err := time.ParseDuration(s.Window); err == nil && d > 0 {
			cfg.Window = d
		}
	}
	return cfg
}

// ResolveBudgetConfig builds the nested budget.Config for one agent/jobType
// pair per spec.md §4.4: the global scope always applies; a job scope
// applies when jobType matches an entry in cfg.Budget.Jobs; an agent scope
// comes from cfg.Budget.Agents[agentID], or from the agent spec's own
// Budget when that map has no entry for the agent.
func (c *Config) ResolveBudgetConfig(agentID, jobType string) budget.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := budget.Config{Global: c.Budget.Global.ToScopeConfig("global")}

	if jobType != "" {
		if spec, ok := c.Budget.Jobs[jobType]; ok {
			scope := spec.ToScopeConfig(jobType)
			out.Job = &scope
		}
	}

	agentSpec, hasAgentSpec := c.Agents.List[agentID]
	if spec, ok := c.Budget.Agents[agentID]; ok {
		scope := spec.ToScopeConfig(agentID)
		out.Agent = &scope
	} else if hasAgentSpec && agentSpec.Budget != nil {
		scope := agentSpec.Budget.ToScopeConfig(agentID)
		out.Agent = &scope
	}

	return out
}

// ToCandidate converts a ModelCandidateSpec into providers.Candidate.
func (m ModelCandidateSpec) ToCandidate() providers.Candidate {
	return providers.Candidate{Provider: m.Provider, Model: m.Model, IsCLI: m.IsCLI}
}

// ResolveModelFallback returns the fallback list and allow-list configured
// for an agent, falling back to the agent defaults' configuration when the
// agent spec itself doesn't override it.
func (c *Config) ResolveModelFallback(agentID string) (fallbacks []providers.Candidate, allowList []string) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var mf *ModelFallbackConfig
	if spec, ok := c.Agents.List[agentID]; ok && spec.ModelFallback != nil {
		mf = spec.ModelFallback
	} else {
		mf = c.Agents.Defaults.ModelFallback
	}
	if mf == nil {
		return nil, nil
	}
	for _, f := range mf.Fallbacks {
		fallbacks = append(fallbacks, f.ToCandidate())
	}
	return fallbacks, mf.AllowList
}

// ToJob converts a CronJobSpec into cron.Job.
func (j CronJobSpec) ToJob() cron.Job {
	kind := j.Payload.Kind
	if kind == "" {
		kind = "agentTurn"
	}
	return cron.Job{
		ID:       j.ID,
		Name:     j.Name,
		CronExpr: j.CronExpr,
		AgentID:  j.AgentID,
		JobType:  j.JobType,
		UserID:   j.UserID,
		Payload: cron.JobPayload{
			Kind:              kind,
			Model:             j.Payload.Model,
			Thinking:          j.Payload.Thinking,
			TimeoutSeconds:    j.Payload.TimeoutSeconds,
			Deliver:           j.Payload.Deliver,
			BestEffortDeliver: j.Payload.BestEffortDeliver,
			Channel:           j.Payload.Channel,
			To:                j.Payload.To,
			Message:           j.Payload.Message,
		},
	}
}

// ToJobs converts the whole schedule list.
func (cj CronJobsConfig) ToJobs() []cron.Job {
	out := make([]cron.Job, 0, len(cj.List))
	for _, j := range cj.List {
		out = append(out, j.ToJob())
	}
	return out
}

// Tick returns the configured poll interval, defaulting to 30s.
func (cj CronJobsConfig) Tick() time.Duration {
	if cj.PollInterval == "" {
		return 30 * time.Second
	}
	if d, err := time.ParseDuration(cj.PollInterval); err == nil && d > 0 {
		return d
	}
	return 30 * time.Second
}

// ToHeartbeatConfig bridges the existing TS-shaped HeartbeatConfig (string
// duration, activeHours/session/target/to) into heartbeat.Config. "0m" (or
// "0s"/"0") disables the scheduler; an empty or unparseable Every uses
// heartbeat.DefaultHeartbeatEvery.
func (hc *HeartbeatConfig) ToHeartbeatConfig() heartbeat.Config {
	if hc == nil {
		return heartbeat.Config{Enabled: false}
	}
	cfg := heartbeat.Config{
		Enabled:     true,
		Every:       heartbeat.DefaultHeartbeatEvery,
		Prompt:      hc.Prompt,
		AckMaxChars: hc.AckMaxChars,
	}
	if hc.Every == "0m" || hc.Every == "0s" || hc.Every == "0" {
		cfg.Enabled = false
		return cfg
	}
	if d, err := time.ParseDuration(hc.Every); err == nil && d > 0 {
		cfg.Every = d
	}
	return cfg
}

// ToWatchTargets converts the configured watch list into incident.WatchTarget.
func (ic IncidentConfig) ToWatchTargets() []incident.WatchTarget {
	out := make([]incident.WatchTarget, 0, len(ic.Watch))
	for _, w := range ic.Watch {
		out = append(out, incident.WatchTarget{Path: w.Path, Class: incident.FileClass(w.Class)})
	}
	return out
}

// RefreshIntervalOrDefault parses RefreshInterval, defaulting to 1 minute.
func (ic IncidentConfig) RefreshIntervalOrDefault() time.Duration {
	if ic.RefreshInterval == "" {
		return incident.DefaultRefreshInterval
	}
	if d, err := time.ParseDuration(ic.RefreshInterval); err == nil && d > 0 {
		return d
	}
	return incident.DefaultRefreshInterval
}

// ToTaskCreationConfig converts the taskCreation section into
// missioncontrol.TaskCreationConfig.
func (mc MissionControlConfig) ToTaskCreationConfig() missioncontrol.TaskCreationConfig {
	sev := incident.SeverityLow
	switch mc.TaskCreation.MinSeverity {
	case "medium":
		sev = incident.SeverityMedium
	case "high":
		sev = incident.SeverityHigh
	}
	return missioncontrol.TaskCreationConfig{
		Enabled:          mc.TaskCreation.Enabled,
		MinSeverity:      sev,
		MinEvidenceCount: mc.TaskCreation.MinEvidenceCount,
		Trust: missioncontrol.TrustConfig{
			BySource:          mc.TaskCreation.Trust.BySource,
			QuarantineSources: mc.TaskCreation.Trust.QuarantineSources,
			DefaultTier:       mc.TaskCreation.Trust.DefaultTier,
		},
		Routing: missioncontrol.RoutingConfig{
			BySource:     mc.TaskCreation.Routing.BySource,
			DefaultAgent: mc.TaskCreation.Routing.DefaultAgent,
			QAAgent:      mc.TaskCreation.Routing.QAAgent,
		},
	}
}

// ToRollupConfig converts the rollup section into missioncontrol.RollupConfig.
func (mc MissionControlConfig) ToRollupConfig() missioncontrol.RollupConfig {
	return missioncontrol.RollupConfig{KeepDays: mc.Rollup.KeepDays, MinBytes: mc.Rollup.MinBytes}
}

// RollupInterval returns the configured rollup interval, defaulting to 6h.
func (mc MissionControlConfig) RollupInterval() time.Duration {
	if mc.Rollup.Interval == "" {
		return 6 * time.Hour
	}
	if d, err := time.ParseDuration(mc.Rollup.Interval); err == nil && d > 0 {
		return d
	}
	return 6 * time.Hour
}

// PruneInterval returns the configured prune interval, defaulting to 24h.
func (mc MissionControlConfig) PruneInterval() time.Duration {
	if mc.Prune.Interval == "" {
		return 24 * time.Hour
	}
	if d, err := time.ParseDuration(mc.Prune.Interval); err == nil && d > 0 {
		return d
	}
	return 24 * time.Hour
}

// DBPathOrDefault returns the configured mission-control DB path, defaulting
// to <workspace>/memory/mission-control.db per spec.md §6.
func (mc MissionControlConfig) DBPathOrDefault(workspace string) string {
	if mc.DBPath != "" {
		return mc.DBPath
	}
	return workspace + "/memory/mission-control.db"
}
