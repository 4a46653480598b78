package missioncontrol

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/nextlevelbuilder/surprisebot/internal/ledger"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

func normalizeSummary(s string) string {
	return whitespaceRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), " ")
}

type dedupeKey struct {
	source, summary, url, path string
}

func keyFor(r ledger.IncidentRecord) dedupeKey {
	var url, path string
	if r.Meta != nil {
		if v, ok := r.Meta["url"].(string); ok {
			url = v
		}
		if v, ok := r.Meta["path"].(string); ok {
			path = v
		}
	}
	return dedupeKey{source: r.Source, summary: normalizeSummary(r.Summary), url: url, path: path}
}

// PruneDuplicates implements spec.md §4.11's duplicate-prune pass: dedupe
// incidents.jsonl by (source, normalized-summary, url, path) keeping the
// first occurrence, then cascade-delete tasks/activities/subscriptions
// whose incidentId was pruned.
func PruneDuplicates(ctx context.Context, store *ledger.Store, db *DB) error {
	incidents, err := store.ReadIncidents()
	if err != nil {
		return fmt.Errorf("read incidents: %w", err)
	}

	seen := make(map[dedupeKey]bool, len(incidents))
	kept := make([]ledger.IncidentRecord, 0, len(incidents))
	keptIDs := make(map[string]bool, len(incidents))
	var prunedIDs []string

	for _, inc := range incidents {
		k := keyFor(inc)
		if seen[k] {
			prunedIDs = append(prunedIDs, inc.ID)
			continue
		}
		seen[k] = true
		kept = append(kept, inc)
		keptIDs[inc.ID] = true
	}

	if len(prunedIDs) == 0 {
		return nil
	}

	if err := store.RewriteIncidents(kept); err != nil {
		return fmt.Errorf("rewrite incidents: %w", err)
	}

	if db == nil {
		return nil
	}
	return cascadeDropTasksForIncidents(ctx, db, prunedIDs)
}

func cascadeDropTasksForIncidents(ctx context.Context, db *DB, prunedIncidentIDs []string) error {
	prunedSet := make(map[string]bool, len(prunedIncidentIDs))
	for _, id := range prunedIncidentIDs {
		prunedSet[id] = true
	}

	rows, err := db.conn.QueryContext(ctx, `SELECT id, meta FROM tasks`)
	if err != nil {
		return fmt.Errorf("query tasks: %w", err)
	}
	type taskMeta struct {
		id   string
		meta string
	}
	var candidates []taskMeta
	for rows.Next() {
		var t taskMeta
		if err := rows.Scan(&t.id, &t.meta); err != nil {
			rows.Close()
			return err
		}
		candidates = append(candidates, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, t := range candidates {
		var meta map[string]any
		if err := json.Unmarshal([]byte(t.meta), &meta); err != nil {
			continue
		}
		incidentID, _ := meta["incidentId"].(string)
		if incidentID == "" || !prunedSet[incidentID] {
			continue
		}
		if err := dropTaskCascade(ctx, db, t.id); err != nil {
			return err
		}
	}
	return nil
}

func dropTaskCascade(ctx context.Context, db *DB, taskID string) error {
	if _, err := execCtx(ctx, db.conn, `DELETE FROM activities WHERE task_id = ?`, taskID); err != nil {
		return err
	}
	if _, err := execCtx(ctx, db.conn, `DELETE FROM subscriptions WHERE task_id = ?`, taskID); err != nil {
		return err
	}
	if _, err := execCtx(ctx, db.conn, `DELETE FROM tasks WHERE id = ?`, taskID); err != nil {
		return err
	}
	return nil
}
