package missioncontrol

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/surprisebot/internal/incident"
)

// Severity ordering for minimum-severity enforcement.
var severityRank = map[incident.Severity]int{
	incident.SeverityLow:    0,
	incident.SeverityMedium: 1,
	incident.SeverityHigh:   2,
}

// TrustConfig resolves a source's trustTier per spec.md §4.10 step 3.
type TrustConfig struct {
	BySource          map[string]string
	QuarantineSources []string
	DefaultTier       string
}

func (t TrustConfig) resolve(source string) string {
	if tier, ok := t.BySource[source]; ok {
		return tier
	}
	for _, q := range t.QuarantineSources {
		if q == source {
			return "quarantine"
		}
	}
	if t.DefaultTier != "" {
		return t.DefaultTier
	}
	return "unverified"
}

// RoutingConfig decides task assignment.
type RoutingConfig struct {
	BySource    map[string]string // source -> agentId
	DefaultAgent string
	QAAgent      string
}

// TaskCreationConfig gathers everything §4.10 needs to evaluate one
// incident.
type TaskCreationConfig struct {
	Enabled          bool // kill-switch: false disables task creation entirely
	MinSeverity      incident.Severity
	MinEvidenceCount int
	Trust            TrustConfig
	Routing          RoutingConfig
}

// researchSources are the source kinds spec.md §4.10 step 2 subjects to
// the minimum-evidence-count gate. No URL presence check is made:
// incident.Incident carries no URL field.
var researchSources = map[string]bool{
	"research": true,
	"exposure": true,
}

// CreateResult reports what happened when evaluating one incident.
type CreateResult struct {
	Created    bool
	TaskID     string
	ExistingID string
	Skipped    bool
	SkipReason string
}

// MaybeCreateTaskFromIncident implements spec.md §4.10's 7-step algorithm.
func (d *DB) MaybeCreateTaskFromIncident(ctx context.Context, cfg TaskCreationConfig, inc incident.Incident) (CreateResult, error) {
	// Step 1: kill-switch.
	if !cfg.Enabled {
		return CreateResult{Skipped: true, SkipReason: "kill_switch"}, nil
	}

	// Step 2: minimum severity + evidence gates.
	minRank := severityRank[cfg.MinSeverity]
	if cfg.MinSeverity == "" {
		minRank = severityRank[incident.SeverityLow]
	}
	if severityRank[inc.Severity] < minRank {
		return CreateResult{Skipped: true, SkipReason: "below_min_severity"}, nil
	}
	if researchSources[strings.ToLower(inc.Source)] {
		if cfg.MinEvidenceCount > 0 && len(inc.Evidence) < cfg.MinEvidenceCount {
			return CreateResult{Skipped: true, SkipReason: "insufficient_evidence"}, nil
		}
	}

	// Step 3: trust tier.
	trustTier := cfg.Trust.resolve(inc.Source)

	// Step 4: qaRequired decision + assignment.
	qaRequired := inc.Severity == incident.SeverityHigh || trustTier == "unverified" || trustTier == "quarantine"
	assignee := cfg.Routing.DefaultAgent
	if a, ok := cfg.Routing.BySource[inc.Source]; ok {
		assignee = a
	}
	status := "inbox"
	if qaRequired {
		assignee = cfg.Routing.QAAgent
		if assignee == "" {
			assignee = cfg.Routing.DefaultAgent
		}
		status = "review"
	}

	// Step 5: fingerprint.
	fingerprint := incident.Fingerprint(inc.Source, inc.Severity, inc.Summary, inc.Evidence)

	priority := priorityForSeverity(inc.Severity)
	assignees, _ := json.Marshal([]string{assignee})
	meta, _ := json.Marshal(map[string]any{"incidentId": inc.Fingerprint, "qaRequired": qaRequired})

	taskID := uuid.NewString()
	now := nowISO()

	// Step 6: insert; UNIQUE(fingerprint) violation means dedupe.
	_, err := execCtx(ctx, d.conn,
		`INSERT INTO tasks (id, created_at, updated_at, title, description, status, priority, source, severity, trust_tier, fingerprint, assignees, labels, parent_task_id, meta)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '[]', NULL, ?)`,
		taskID, now, now, taskTitle(inc), inc.Summary, status, priority, inc.Source, string(inc.Severity), trustTier, fingerprint, string(assignees), string(meta))

	if err != nil {
		if isUniqueViolation(err) {
			existingID, lookupErr := d.taskIDForFingerprint(ctx, fingerprint)
			if lookupErr != nil {
				return CreateResult{}, lookupErr
			}
			if err := d.appendActivity(ctx, existingID, "incident_dedupe", map[string]any{"incidentId": inc.Fingerprint}); err != nil {
				return CreateResult{}, err
			}
			return CreateResult{Created: false, ExistingID: existingID}, nil
		}
		return CreateResult{}, fmt.Errorf("insert task: %w", err)
	}

	// Step 7: subscriptions + task_created activity.
	if assignee != "" {
		if err := d.addSubscription(ctx, taskID, assignee, "assignee"); err != nil {
			return CreateResult{}, err
		}
	}
	if err := d.appendActivity(ctx, taskID, "task_created", map[string]any{"incidentId": inc.Fingerprint, "source": inc.Source}); err != nil {
		return CreateResult{}, err
	}

	return CreateResult{Created: true, TaskID: taskID}, nil
}

func taskTitle(inc incident.Incident) string {
	t := inc.Summary
	if len(t) > 120 {
		t = t[:120] + "…"
	}
	return t
}

func priorityForSeverity(sev incident.Severity) string {
	switch sev {
	case incident.SeverityHigh:
		return "high"
	case incident.SeverityMedium:
		return "medium"
	default:
		return "low"
	}
}

func (d *DB) taskIDForFingerprint(ctx context.Context, fingerprint string) (string, error) {
	var id string
	row := d.conn.QueryRowContext(ctx, `SELECT id FROM tasks WHERE fingerprint = ?`, fingerprint)
	if err := row.Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}

func (d *DB) appendActivity(ctx context.Context, taskID, kind string, detail map[string]any) error {
	body, _ := json.Marshal(detail)
	_, err := execCtx(ctx, d.conn,
		`INSERT INTO activities (id, task_id, created_at, kind, detail) VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), taskID, nowISO(), kind, string(body))
	return err
}

func (d *DB) addSubscription(ctx context.Context, taskID, agentID, reason string) error {
	_, err := execCtx(ctx, d.conn,
		`INSERT INTO subscriptions (id, task_id, agent_id, reason, created_at) VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), taskID, agentID, reason, nowISO())
	return err
}

// isUniqueViolation detects a SQLite UNIQUE constraint failure across
// driver error-message conventions (modernc.org/sqlite wraps it in a
// sqlite.Error but the message text is stable across builds).
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
