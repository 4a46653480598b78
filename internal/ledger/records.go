package ledger

import (
	"encoding/json"
	"time"
)

// RunStatus is the lifecycle status of a RunRecord.
type RunStatus string

const (
	RunQueued    RunStatus = "queued"
	RunRunning   RunStatus = "running"
	RunDone      RunStatus = "done"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// RunSource is the stimulus that triggered a run.
type RunSource string

const (
	SourceInteractive RunSource = "interactive"
	SourceCron        RunSource = "cron"
	SourceSystem      RunSource = "system"
	SourceHook        RunSource = "hook"
)

// RunRecord is spec.md §3's RunLedgerRecord: later records with the same id
// override earlier ones (latest ts wins for status).
type RunRecord struct {
	ID              string                 `json:"id"`
	TS              time.Time              `json:"ts"`
	Source          RunSource              `json:"source"`
	Status          RunStatus              `json:"status"`
	AgentID         string                 `json:"agentId"`
	JobType         string                 `json:"jobType,omitempty"`
	Command         string                 `json:"command,omitempty"`
	StartedAt       time.Time              `json:"startedAt,omitempty"`
	FinishedAt      time.Time              `json:"finishedAt,omitempty"`
	ExitCode        *int                   `json:"exitCode,omitempty"`
	EstimatedTokens int64                  `json:"estimatedTokens,omitempty"`
	Meta            map[string]interface{} `json:"meta,omitempty"`
}

func (r RunRecord) toRecord() (Record, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, err
	}
	rec["ts"] = r.TS.Format(time.RFC3339Nano)
	return rec, nil
}

// AppendRun writes a RunRecord to run-ledger.jsonl.
func (s *Store) AppendRun(r RunRecord) error {
	rec, err := r.toRecord()
	if err != nil {
		return err
	}
	return s.Append(KindRunLedger, rec)
}

// TailRuns returns deduplicated (latest-ts-wins) run records since the
// given time, decoded back into RunRecord.
func (s *Store) TailRuns(since time.Time) ([]RunRecord, error) {
	raw, err := s.Tail(KindRunLedger, since)
	if err != nil {
		return nil, err
	}
	out := make([]RunRecord, 0, len(raw))
	for _, rec := range raw {
		var r RunRecord
		b, _ := json.Marshal(rec)
		if err := json.Unmarshal(b, &r); err != nil {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// BudgetDecision is the four-valued outcome of an evaluateBudget pass.
type BudgetDecision string

const (
	DecisionAllow    BudgetDecision = "allow"
	DecisionThrottle BudgetDecision = "throttle"
	DecisionDefer    BudgetDecision = "defer"
	DecisionDeny     BudgetDecision = "deny"
)

// BudgetScope is the nesting level a BudgetRecord applies to.
type BudgetScope string

const (
	ScopeGlobal BudgetScope = "global"
	ScopeAgent  BudgetScope = "agent"
	ScopeJob    BudgetScope = "job"
	ScopeRun    BudgetScope = "run"
)

// BudgetRecord is spec.md §3's BudgetLedgerRecord, written before each run
// start.
type BudgetRecord struct {
	ID             string                 `json:"id"`
	TS             time.Time              `json:"ts"`
	Scope          BudgetScope            `json:"scope"`
	ScopeID        string                 `json:"scopeId"`
	Decision       BudgetDecision         `json:"decision"`
	Reason         string                 `json:"reason,omitempty"`
	BudgetSnapshot map[string]interface{} `json:"budgetSnapshot,omitempty"`
	Meta           map[string]interface{} `json:"meta,omitempty"`
}

func (r BudgetRecord) toRecord() (Record, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, err
	}
	rec["ts"] = r.TS.Format(time.RFC3339Nano)
	return rec, nil
}

// AppendBudget writes a BudgetRecord to budget-ledger.jsonl.
func (s *Store) AppendBudget(r BudgetRecord) error {
	rec, err := r.toRecord()
	if err != nil {
		return err
	}
	return s.Append(KindBudgetLedger, rec)
}

// IncidentSeverity classifies an incident's urgency.
type IncidentSeverity string

const (
	SeverityLow    IncidentSeverity = "low"
	SeverityMedium IncidentSeverity = "medium"
	SeverityHigh   IncidentSeverity = "high"
)

// IncidentRecord is spec.md §3's IncidentRecord, written to incidents.jsonl
// (a sibling of the Kind-based ledger files, not one of the nine kinds, so
// it gets its own small append/read helpers below rather than a Kind entry
// with required-field validation against the generic table).
type IncidentRecord struct {
	ID       string                 `json:"id"`
	TS       time.Time              `json:"ts"`
	Source   string                 `json:"source"`
	Severity IncidentSeverity       `json:"severity"`
	Summary  string                 `json:"summary"`
	Evidence []string               `json:"evidence,omitempty"`
	Meta     map[string]interface{} `json:"meta,omitempty"`
}

const incidentsFile = "incidents.jsonl"

func (s *Store) incidentsPath() string {
	return s.dir + "/" + incidentsFile
}

// AppendIncident appends an IncidentRecord to incidents.jsonl.
func (s *Store) AppendIncident(r IncidentRecord) error {
	if r.ID == "" || r.Summary == "" {
		return &ValidationError{Kind: "incidents", Field: "id/summary"}
	}
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	lock := s.writerLock(Kind("incidents"))
	lock.Lock()
	defer lock.Unlock()
	f, err := openAppend(s.incidentsPath())
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(append(b, '\n')); err != nil {
		return err
	}
	return f.Sync()
}

// ReadIncidents reads every record in incidents.jsonl.
func (s *Store) ReadIncidents() ([]IncidentRecord, error) {
	raws, err := readLines(s.incidentsPath())
	if err != nil {
		return nil, err
	}
	out := make([]IncidentRecord, 0, len(raws))
	for _, line := range raws {
		var r IncidentRecord
		if err := json.Unmarshal(line, &r); err != nil {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// RewriteIncidents atomically replaces incidents.jsonl, used by
// missioncontrol's PruneDuplicates.
func (s *Store) RewriteIncidents(records []IncidentRecord) error {
	lock := s.writerLock(Kind("incidents"))
	lock.Lock()
	defer lock.Unlock()
	return rewriteJSONL(s.dir, "incidents", records)
}
