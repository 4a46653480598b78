package ledger

import (
	"testing"
	"time"
)

func TestTailDedupesByIDKeepingLatestTS(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	base := time.Now().UTC().Add(-time.Hour)
	if err := s.AppendRun(RunRecord{ID: "r1", TS: base, Source: SourceInteractive, Status: RunRunning, AgentID: "a1"}); err != nil {
		t.Fatalf("append running: %v", err)
	}
	if err := s.AppendRun(RunRecord{ID: "r1", TS: base.Add(time.Second), Source: SourceInteractive, Status: RunDone, AgentID: "a1"}); err != nil {
		t.Fatalf("append done: %v", err)
	}

	runs, err := s.TailRuns(time.Time{})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 deduplicated record, got %d", len(runs))
	}
	if runs[0].Status != RunDone {
		t.Fatalf("expected latest status done, got %s", runs[0].Status)
	}
}

func TestAppendRejectsMissingRequiredField(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	err := s.Append(KindRunLedger, Record{"id": "r1", "ts": time.Now().UTC().Format(time.RFC3339Nano)})
	if err == nil {
		t.Fatalf("expected validation error for missing fields")
	}
}

func TestTailSinceFiltersOlderRecords(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	now := time.Now().UTC()
	if err := s.AppendRun(RunRecord{ID: "old", TS: now.Add(-48 * time.Hour), Source: SourceCron, Status: RunDone, AgentID: "a1"}); err != nil {
		t.Fatal(err)
	}
	if err := s.AppendRun(RunRecord{ID: "new", TS: now, Source: SourceCron, Status: RunDone, AgentID: "a1"}); err != nil {
		t.Fatal(err)
	}

	runs, err := s.TailRuns(now.Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].ID != "new" {
		t.Fatalf("expected only the recent record, got %+v", runs)
	}
}
