// Package indexdb keeps a queryable sqlite read model of runs, plans and agent events.
// The trace log stays the source of truth; the index may drop rows under load.
package indexdb

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"cavewarden.ai/internal/sim/agent"
)

type SQLiteIndex struct {
	db    *sqlx.DB
	runID string

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed  atomic.Bool
	dropped atomic.Uint64
}

type reqKind int

const (
	reqRun reqKind = iota + 1
	reqEvent
	reqOutcome
	reqSync
)

type req struct {
	kind reqKind

	run     RunRow
	event   agent.Event
	outcome string
	tick    uint64
	done    chan struct{}
}

type RunRow struct {
	RunID        string `db:"run_id"`
	StartedAt    string `db:"started_at"`
	DomainDigest string `db:"domain_digest"`
	Seed         int64  `db:"seed"`
	Agents       int    `db:"agents"`
	Outcome      string `db:"outcome"`
	EndedTick    int64  `db:"ended_tick"`
}

type PlanRow struct {
	RunID     string `db:"run_id"`
	Tick      int64  `db:"tick"`
	AgentID   string `db:"agent_id"`
	OK        bool   `db:"ok"`
	Reason    string `db:"reason"`
	TasksJSON string `db:"tasks_json"`
}

type EventRow struct {
	RunID   string `db:"run_id"`
	Tick    int64  `db:"tick"`
	Seq     int    `db:"seq"`
	AgentID string `db:"agent_id"`
	Kind    string `db:"kind"`
	Task    string `db:"task"`
	Detail  string `db:"detail"`
}

type Stats struct {
	QueueDepth    int
	QueueCapacity int
	DropTotal     uint64
}

// OpenSQLite opens (or creates) the index at path and starts its writer for runID.
func OpenSQLite(path, runID string) (*SQLiteIndex, error) {
	return openSQLite(path, runID, 65536)
}

func openSQLite(path, runID string, queue int) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if runID == "" {
		return nil, fmt.Errorf("empty run id")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	s := &SQLiteIndex{
		db:    db,
		runID: runID,
		ch:    make(chan req, queue),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sqlx.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sqlx.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		domain_digest TEXT NOT NULL,
		seed INTEGER NOT NULL,
		agents INTEGER NOT NULL,
		outcome TEXT NOT NULL DEFAULT '',
		ended_tick INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS plans (
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		agent_id TEXT NOT NULL,
		ok INTEGER NOT NULL,
		reason TEXT NOT NULL,
		tasks_json TEXT NOT NULL,
		PRIMARY KEY (run_id, agent_id, tick)
	);

	CREATE TABLE IF NOT EXISTS events (
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		seq INTEGER NOT NULL,
		agent_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		task TEXT NOT NULL,
		detail TEXT NOT NULL,
		PRIMARY KEY (run_id, tick, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_events_agent_tick ON events(run_id, agent_id, tick);
	CREATE INDEX IF NOT EXISTS idx_events_kind ON events(run_id, kind);
	`
	_, err := db.Exec(schema)
	return err
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) enqueue(r req) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- r:
	default:
		// Drop if the indexer falls behind; the trace log remains the source of truth.
		s.dropped.Add(1)
	}
}

// BeginRun records the run header.
func (s *SQLiteIndex) BeginRun(domainDigest string, seed int64, agents int) {
	s.enqueue(req{kind: reqRun, run: RunRow{
		RunID:        s.runID,
		StartedAt:    time.Now().UTC().Format(time.RFC3339Nano),
		DomainDigest: domainDigest,
		Seed:         seed,
		Agents:       agents,
	}})
}

// Notify implements agent.EventSink.
func (s *SQLiteIndex) Notify(e agent.Event) {
	s.enqueue(req{kind: reqEvent, event: e})
}

func (s *SQLiteIndex) RecordOutcome(tick uint64, outcome string) {
	s.enqueue(req{kind: reqOutcome, tick: tick, outcome: outcome})
}

// Sync blocks until every queued row is committed, or ctx ends.
func (s *SQLiteIndex) Sync(ctx context.Context) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{kind: reqSync, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SQLiteIndex) Stats() Stats {
	return Stats{
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
		DropTotal:     s.dropped.Load(),
	}
}

func (s *SQLiteIndex) Run(ctx context.Context) (RunRow, error) {
	var r RunRow
	err := s.db.GetContext(ctx, &r, `SELECT * FROM runs WHERE run_id = ?`, s.runID)
	return r, err
}

func (s *SQLiteIndex) Plans(ctx context.Context, agentID string) ([]PlanRow, error) {
	var rows []PlanRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM plans WHERE run_id = ? AND agent_id = ? ORDER BY tick`, s.runID, agentID)
	return rows, err
}

func (s *SQLiteIndex) Events(ctx context.Context, agentID string) ([]EventRow, error) {
	var rows []EventRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM events WHERE run_id = ? AND agent_id = ? ORDER BY tick, seq`, s.runID, agentID)
	return rows, err
}

func (s *SQLiteIndex) EventCounts(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		Kind string `db:"kind"`
		N    int    `db:"n"`
	}
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT kind, COUNT(*) AS n FROM events WHERE run_id = ? GROUP BY kind`, s.runID); err != nil {
		return nil, err
	}
	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.Kind] = r.N
	}
	return out, nil
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertEvent, _ := s.db.Preparex(`INSERT OR REPLACE INTO events(run_id,tick,seq,agent_id,kind,task,detail) VALUES(?,?,?,?,?,?,?)`)
	insertPlan, _ := s.db.Preparex(`INSERT OR REPLACE INTO plans(run_id,tick,agent_id,ok,reason,tasks_json) VALUES(?,?,?,?,?,?)`)
	defer func() {
		if insertEvent != nil {
			_ = insertEvent.Close()
		}
		if insertPlan != nil {
			_ = insertPlan.Close()
		}
	}()

	var (
		tx            *sqlx.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second

		lastTick uint64
		seq      int
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	// Commit when idle so readers never wait on an open transaction.
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if len(s.ch) == 0 || opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	for r := range s.ch {
		if r.kind == reqSync {
			commit()
			close(r.done)
			continue
		}
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqRun:
			if _, err := tx.NamedExec(`INSERT OR REPLACE INTO runs(run_id,started_at,domain_digest,seed,agents,outcome,ended_tick)
				VALUES(:run_id,:started_at,:domain_digest,:seed,:agents,:outcome,:ended_tick)`, r.run); err != nil {
				rollback()
				continue
			}
			opCount++

		case reqOutcome:
			if _, err := tx.Exec(`UPDATE runs SET outcome = ?, ended_tick = ? WHERE run_id = ?`,
				r.outcome, int64(r.tick), s.runID); err != nil {
				rollback()
				continue
			}
			opCount++

		case reqEvent:
			e := r.event
			if e.Tick != lastTick {
				lastTick = e.Tick
				seq = 0
			}
			cur := seq
			seq++
			if insertEvent != nil {
				if _, err := tx.Stmtx(insertEvent).Exec(
					s.runID, int64(e.Tick), cur, e.AgentID, string(e.Kind), e.Task, eventDetail(e),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
			if insertPlan != nil && (e.Kind == agent.EventPlanInstalled || e.Kind == agent.EventPlanFailed) {
				tasks, _ := json.Marshal(e.Plan)
				if e.Plan == nil {
					tasks = []byte("[]")
				}
				if _, err := tx.Stmtx(insertPlan).Exec(
					s.runID, int64(e.Tick), e.AgentID, e.Kind == agent.EventPlanInstalled, e.Reason, string(tasks),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		flushIfNeeded()
	}

	commit()
}

func eventDetail(e agent.Event) string {
	switch e.Kind {
	case agent.EventPlanInstalled:
		b, _ := json.Marshal(map[string]any{"reason": e.Reason, "plan": e.Plan})
		return string(b)
	case agent.EventPlanFailed:
		return e.Reason
	default:
		return fmt.Sprintf("%.2f,%.2f,%.2f", e.Pos.X, e.Pos.Y, e.Pos.Z)
	}
}
