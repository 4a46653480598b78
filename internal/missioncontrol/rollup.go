package missioncontrol

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nextlevelbuilder/surprisebot/internal/ledger"
)

// RollupConfig controls the §4.11 periodic ledger compaction.
type RollupConfig struct {
	KeepDays int   // default 7
	MinBytes int64 // files smaller than this are left untouched
}

func (c RollupConfig) keepDays() int {
	if c.KeepDays <= 0 {
		return 7
	}
	return c.KeepDays
}

// rollupKinds are the ledger kinds subject to compaction; mission-control's
// own SQLite tables (tasks etc.) are compacted via PruneDuplicates instead.
var rollupKinds = []ledger.Kind{
	ledger.KindMessages,
	ledger.KindActivities,
	ledger.KindDocuments,
	ledger.KindNotifications,
	ledger.KindSubscriptions,
	ledger.KindSignals,
	ledger.KindRunLedger,
	ledger.KindBudgetLedger,
}

type rollupState struct {
	LastRunDate string `json:"lastRunDate"` // YYYY-MM-DD, one-per-day gate
}

func rollupStatePath(store *ledger.Store) string {
	return filepath.Join(store.Dir(), "rollups", "rollup.state.json")
}

func readRollupState(store *ledger.Store) rollupState {
	data, err := os.ReadFile(rollupStatePath(store))
	if err != nil {
		return rollupState{}
	}
	var st rollupState
	_ = json.Unmarshal(data, &st)
	return st
}

func writeRollupState(store *ledger.Store, st rollupState) error {
	path := rollupStatePath(store)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Rollup performs the §4.11 periodic compaction: for every ledger kind's
// JSONL file of at least MinBytes, records older than keepDays are moved
// into rollups/<date>/<kind>.jsonl and the live file is rewritten to keep
// only recent records. Gated to at most once per calendar day via
// rollups/rollup.state.json.
func Rollup(store *ledger.Store, cfg RollupConfig, now time.Time) error {
	today := now.UTC().Format("2006-01-02")
	st := readRollupState(store)
	if st.LastRunDate == today {
		return nil
	}

	cutoff := now.UTC().AddDate(0, 0, -cfg.keepDays())

	for _, kind := range rollupKinds {
		if err := rollupOne(store, kind, cutoff, today, cfg.MinBytes); err != nil {
			return fmt.Errorf("rollup %s: %w", kind, err)
		}
	}

	return writeRollupState(store, rollupState{LastRunDate: today})
}

func rollupOne(store *ledger.Store, kind ledger.Kind, cutoff time.Time, dateDir string, minBytes int64) error {
	info, err := os.Stat(filepath.Join(store.Dir(), string(kind)+".jsonl"))
	if err != nil {
		return nil // file absent, nothing to compact
	}
	if info.Size() < minBytes {
		return nil // below the size threshold, left untouched
	}

	all, err := store.ReadAll(kind)
	if err != nil {
		return err
	}

	var keep, archive []ledger.Record
	for _, rec := range all {
		ts, ok := recordTime(rec)
		if !ok || ts.After(cutoff) {
			keep = append(keep, rec)
		} else {
			archive = append(archive, rec)
		}
	}

	if len(archive) == 0 {
		return nil
	}

	archiveDir := filepath.Join(store.Dir(), "rollups", dateDir)
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return err
	}
	archivePath := filepath.Join(archiveDir, string(kind)+".jsonl")
	if err := appendRecordsToFile(archivePath, archive); err != nil {
		return err
	}

	return store.Rewrite(kind, keep)
}

func appendRecordsToFile(path string, records []ledger.Record) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	for _, rec := range records {
		line, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if _, err := f.Write(append(line, '\n')); err != nil {
			return err
		}
	}
	return f.Sync()
}

func recordTime(rec ledger.Record) (time.Time, bool) {
	s, ok := rec["ts"].(string)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func recordID(rec ledger.Record) (string, bool) {
	s, ok := rec["id"].(string)
	return s, ok && s != ""
}
