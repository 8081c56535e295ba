package indexdb

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"cavewarden.ai/internal/sim/agent"
)

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1), runID: "r"}
	s.Notify(agent.Event{Tick: 1})
	s.Notify(agent.Event{Tick: 2})
	s.RecordOutcome(2, "target_down")
	s.BeginRun("d", 1, 1)

	st := s.Stats()
	if st.DropTotal != 3 {
		t.Fatalf("DropTotal=%d want=3", st.DropTotal)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_RecordsRunPlansAndEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index", "cavewarden.sqlite")
	s, err := OpenSQLite(path, "run-1")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer func() { _ = s.Close() }()

	s.BeginRun("abc123", 42, 2)
	s.Notify(agent.Event{Tick: 1, AgentID: "warden-01", Kind: agent.EventPlanInstalled, Plan: []string{"GoToForage", "Forage", "ReturnHome"}, Reason: "hungry"})
	s.Notify(agent.Event{Tick: 1, AgentID: "warden-01", Kind: agent.EventTaskStarted, Task: "GoToForage"})
	s.Notify(agent.Event{Tick: 1, AgentID: "warden-02", Kind: agent.EventPlanFailed, Reason: "no applicable method"})
	s.Notify(agent.Event{Tick: 5, AgentID: "warden-01", Kind: agent.EventTaskCompleted, Task: "GoToForage"})
	s.RecordOutcome(9, "treasure_lost")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Sync(ctx); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	run, err := s.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if run.DomainDigest != "abc123" || run.Seed != 42 || run.Agents != 2 || run.Outcome != "treasure_lost" || run.EndedTick != 9 {
		t.Fatalf("unexpected run row: %+v", run)
	}

	plans, err := s.Plans(ctx, "warden-01")
	if err != nil {
		t.Fatalf("Plans: %v", err)
	}
	if len(plans) != 1 || !plans[0].OK || plans[0].Reason != "hungry" {
		t.Fatalf("unexpected plans: %+v", plans)
	}
	var tasks []string
	if err := json.Unmarshal([]byte(plans[0].TasksJSON), &tasks); err != nil || len(tasks) != 3 {
		t.Fatalf("tasks_json=%q err=%v", plans[0].TasksJSON, err)
	}
	failed, err := s.Plans(ctx, "warden-02")
	if err != nil {
		t.Fatalf("Plans: %v", err)
	}
	if len(failed) != 1 || failed[0].OK || failed[0].TasksJSON != "[]" {
		t.Fatalf("unexpected failed plan: %+v", failed)
	}

	events, err := s.Events(ctx, "warden-01")
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("want 3 events, got %d", len(events))
	}
	if events[0].Seq != 0 || events[1].Seq != 1 || events[2].Tick != 5 || events[2].Seq != 0 {
		t.Fatalf("unexpected sequencing: %+v", events)
	}

	counts, err := s.EventCounts(ctx)
	if err != nil {
		t.Fatalf("EventCounts: %v", err)
	}
	if counts[string(agent.EventPlanInstalled)] != 1 || counts[string(agent.EventTaskStarted)] != 1 || counts[string(agent.EventPlanFailed)] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}
	if st := s.Stats(); st.DropTotal != 0 {
		t.Fatalf("unexpected drops: %d", st.DropTotal)
	}
}

func TestOpenSQLiteRejectsEmptyArgs(t *testing.T) {
	if _, err := OpenSQLite("", "r"); err == nil {
		t.Fatalf("expected error for empty path")
	}
	if _, err := OpenSQLite(filepath.Join(t.TempDir(), "x.sqlite"), ""); err == nil {
		t.Fatalf("expected error for empty run id")
	}
}
