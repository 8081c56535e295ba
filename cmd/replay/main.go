package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"cavewarden.ai/internal/persistence/indexdb"
	persistlog "cavewarden.ai/internal/persistence/log"
	"cavewarden.ai/internal/persistence/snapshot"
	"cavewarden.ai/internal/sim/agent"
)

func main() {
	var (
		traceDir  = flag.String("trace", "", "trace dir containing trace-*.jsonl.zst")
		snapPath  = flag.String("snapshot", "", "path to final.snap.zst (optional)")
		agentID   = flag.String("agent", "", "only print the timeline of this agent (optional)")
		fromTick  = flag.Uint64("from_tick", 0, "skip events before tick (inclusive, optional)")
		toTick    = flag.Uint64("to_tick", 0, "stop at tick (inclusive, optional)")
		indexPath = flag.String("index", "", "sqlite index to summarise alongside (optional)")
		runID     = flag.String("run", "", "run id to look up in -index")
	)
	flag.Parse()

	if *traceDir == "" && *snapPath == "" {
		fmt.Fprintln(os.Stderr, "missing -trace or -snapshot")
		os.Exit(2)
	}
	if *snapPath != "" {
		snap, err := snapshot.ReadSnapshot(*snapPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read snapshot:", err)
			os.Exit(1)
		}
		printSnapshot(os.Stdout, snap)
		if *traceDir == "" {
			return
		}
	}

	files, err := persistlog.ListTraceFiles(*traceDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list trace:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no trace files found in", *traceDir)
		os.Exit(1)
	}

	sum := newSummary(filter{agentID: *agentID, from: *fromTick, to: *toTick})
	for _, path := range files {
		if err := persistlog.ReadTraceFile(path, sum.add); err != nil {
			fmt.Fprintln(os.Stderr, "replay:", err)
			os.Exit(1)
		}
	}
	sum.print(os.Stdout)

	if *indexPath == "" {
		return
	}
	if *runID == "" {
		fmt.Fprintln(os.Stderr, "-index needs -run")
		os.Exit(2)
	}
	if err := printIndex(os.Stdout, *indexPath, *runID); err != nil {
		fmt.Fprintln(os.Stderr, "index:", err)
		os.Exit(1)
	}
}

type filter struct {
	agentID  string
	from, to uint64
}

func (f filter) keep(e *agent.Event) bool {
	if f.agentID != "" && e.AgentID != f.agentID {
		return false
	}
	if e.Tick < f.from {
		return false
	}
	return f.to == 0 || e.Tick <= f.to
}

type timelineLine struct {
	tick uint64
	text string
}

type summary struct {
	f filter

	runID    string
	first    time.Time
	last     time.Time
	entries  int
	counts   map[agent.EventKind]int
	lines    map[string][]timelineLine
	outcome  string
	outcomeT uint64
}

func newSummary(f filter) *summary {
	return &summary{
		f:      f,
		counts: map[agent.EventKind]int{},
		lines:  map[string][]timelineLine{},
	}
}

func (s *summary) add(e persistlog.TraceEntry) error {
	if s.runID == "" {
		s.runID = e.RunID
	}
	if s.first.IsZero() || e.Time.Before(s.first) {
		s.first = e.Time
	}
	if e.Time.After(s.last) {
		s.last = e.Time
	}
	if e.Outcome != "" {
		s.outcome, s.outcomeT = e.Outcome, e.Tick
		return nil
	}
	if e.Event == nil || !s.f.keep(e.Event) {
		return nil
	}
	s.entries++
	s.counts[e.Event.Kind]++
	if text, ok := timelineText(e.Event); ok {
		s.lines[e.Event.AgentID] = append(s.lines[e.Event.AgentID], timelineLine{tick: e.Event.Tick, text: text})
	}
	return nil
}

// timelineText renders the events that change what an agent is doing.
func timelineText(e *agent.Event) (string, bool) {
	switch e.Kind {
	case agent.EventPlanInstalled:
		return fmt.Sprintf("plan [%s] (%s)", strings.Join(e.Plan, " > "), e.Reason), true
	case agent.EventPlanFailed:
		return fmt.Sprintf("plan failed: %s", e.Reason), true
	case agent.EventTaskCancelled:
		if e.Reason == "" {
			return "cancelled " + e.Task, true
		}
		return fmt.Sprintf("cancelled %s: %s", e.Task, e.Reason), true
	case agent.EventTheftDetected, agent.EventHungry, agent.EventStrike, agent.EventThrow:
		return string(e.Kind), true
	}
	return "", false
}

func (s *summary) print(out io.Writer) {
	fmt.Fprintf(out, "run %s: %s events", s.runID, humanize.Comma(int64(s.entries)))
	if !s.first.IsZero() {
		fmt.Fprintf(out, " over %s (started %s)", s.last.Sub(s.first).Round(time.Millisecond), humanize.Time(s.first))
	}
	fmt.Fprintln(out)
	if s.outcome != "" {
		fmt.Fprintf(out, "outcome %s at tick %s\n", s.outcome, humanize.Comma(int64(s.outcomeT)))
	} else {
		fmt.Fprintln(out, "outcome undecided")
	}

	kinds := make([]string, 0, len(s.counts))
	for k := range s.counts {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(out, "  %-16s %s\n", k, humanize.Comma(int64(s.counts[agent.EventKind(k)])))
	}

	ids := make([]string, 0, len(s.lines))
	for id := range s.lines {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintf(out, "\n%s\n", id)
		for _, l := range s.lines[id] {
			fmt.Fprintf(out, "  %8d  %s\n", l.tick, l.text)
		}
	}
}

func printIndex(out io.Writer, path, runID string) error {
	idx, err := indexdb.OpenSQLite(path, runID)
	if err != nil {
		return err
	}
	defer idx.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	run, err := idx.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\nindex: run %s seed=%d agents=%d domain=%s outcome=%q ended_tick=%s\n",
		run.RunID, run.Seed, run.Agents, shortDigest(run.DomainDigest), run.Outcome, humanize.Comma(run.EndedTick))
	counts, err := idx.EventCounts(ctx)
	if err != nil {
		return err
	}
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(out, "  %-16s %s\n", k, humanize.Comma(int64(counts[k])))
	}
	return nil
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}

func printSnapshot(out io.Writer, snap snapshot.SnapshotV1) {
	fmt.Fprintf(out, "snapshot v%d run=%s tick=%s seed=%d domain=%s outcome=%q\n",
		snap.Header.Version, snap.Header.RunID, humanize.Comma(int64(snap.Header.Tick)), snap.Seed, shortDigest(snap.DomainDigest), snap.Outcome)
	t := snap.Target
	fmt.Fprintf(out, "  target lives=%d stolen=%d carrying=%v cloaked=%v treasures_left=%d\n",
		t.Lives, t.Stolen, t.Carrying, t.Cloaked, len(snap.Treasures))
	reserved := 0
	for _, it := range snap.Items {
		if it.ReservedBy != "" {
			reserved++
		}
	}
	fmt.Fprintf(out, "  items=%d reserved=%d\n", len(snap.Items), reserved)
	for _, a := range snap.Agents {
		fmt.Fprintf(out, "  %s %s [%s] task#%d\n", a.ID, a.Phase, strings.Join(a.Plan, " > "), a.TaskIndex)
	}
	fmt.Fprintln(out)
}
