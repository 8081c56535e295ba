package log

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"cavewarden.ai/internal/sim/agent"
)

func TestTraceLoggerRoundTripAndRotation(t *testing.T) {
	dir := t.TempDir()
	l := NewTraceLogger(dir, "run-1", nil)
	clock := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)
	l.w.now = func() time.Time { return clock }

	l.Notify(agent.Event{Tick: 1, AgentID: "warden-01", Kind: agent.EventPlanInstalled, Plan: []string{"WalkRandomly"}})
	l.Notify(agent.Event{Tick: 2, AgentID: "warden-01", Kind: agent.EventTaskStarted, Task: "WalkRandomly"})
	clock = clock.Add(2 * time.Minute)
	l.WriteOutcome(3, "target_down")
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if l.Failed() != 0 {
		t.Fatalf("failed writes: %d", l.Failed())
	}

	files, err := ListTraceFiles(filepath.Join(dir, "trace"))
	if err != nil {
		t.Fatalf("ListTraceFiles: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("want 2 hourly files, got %v", files)
	}
	if filepath.Base(files[0]) != "trace-2026-03-01-10.jsonl.zst" {
		t.Fatalf("unexpected first file %s", files[0])
	}

	var entries []TraceEntry
	for _, f := range files {
		if err := ReadTraceFile(f, func(e TraceEntry) error {
			entries = append(entries, e)
			return nil
		}); err != nil {
			t.Fatalf("ReadTraceFile: %v", err)
		}
	}
	if len(entries) != 3 {
		t.Fatalf("want 3 entries, got %d", len(entries))
	}
	if entries[0].RunID != "run-1" || entries[0].Event == nil || entries[0].Event.Kind != agent.EventPlanInstalled {
		t.Fatalf("bad first entry: %+v", entries[0])
	}
	if entries[1].Event.Task != "WalkRandomly" {
		t.Fatalf("bad second entry: %+v", entries[1].Event)
	}
	if entries[2].Event != nil || entries[2].Outcome != "target_down" || entries[2].Tick != 3 {
		t.Fatalf("bad outcome entry: %+v", entries[2])
	}
}

func TestListTraceFilesIgnoresOthers(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"trace-2026-01-01-01.jsonl.zst", "notes.txt", "events-2026-01-01-01.jsonl.zst"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "trace-sub"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	files, err := ListTraceFiles(dir)
	if err != nil {
		t.Fatalf("ListTraceFiles: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("want 1 file, got %v", files)
	}
}
