// Package arena is a small reference host for cave wardens: kinematic bodies, a scripted
// intruder, cone perception and thrown objects, stepped at a fixed tick rate.
package arena

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"cavewarden.ai/internal/sim/agent"
	"cavewarden.ai/internal/sim/geom"
	"cavewarden.ai/internal/sim/htn"
	"cavewarden.ai/internal/sim/registry"
	"cavewarden.ai/internal/sim/tuning"
)

type Outcome string

const (
	OutcomeNone         Outcome = ""
	OutcomeTargetDown   Outcome = "target_down"
	OutcomeTreasureLost Outcome = "treasure_lost"
)

// OutcomeSink is told once, from the world loop, when the run is decided.
type OutcomeSink interface {
	Outcome(tick uint64, o Outcome)
}

type OutcomeSinkFunc func(tick uint64, o Outcome)

func (f OutcomeSinkFunc) Outcome(tick uint64, o Outcome) { f(tick, o) }

type Deps struct {
	Domain   *htn.Domain
	Root     string
	Events   agent.EventSink
	Outcomes OutcomeSink
	Logger   *slog.Logger
}

type warden struct {
	id    string
	body  *Body
	agent *agent.Agent
}

type World struct {
	cfg tuning.Tuning
	log *slog.Logger
	rng *rand.Rand
	reg *registry.Registry

	wardens       []*warden
	agentIDs      []string
	target        *Intruder
	treasures     []geom.Vec3
	treasureTotal int
	projectiles   []projectile

	outcomes OutcomeSink
	outcome  Outcome

	tick       atomic.Uint64
	tickEvents []agent.Event

	observers     map[string]*observerClient
	observerJoin  chan ObserverJoinRequest
	observerSub   chan ObserverSubscribeRequest
	observerLeave chan string

	stop     chan struct{}
	stopOnce sync.Once
}

func New(t tuning.Tuning, d Deps) (*World, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if d.Domain == nil {
		return nil, errors.New("arena: domain is required")
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	seed := t.Arena.Seed
	w := &World{
		cfg:           t,
		log:           logger,
		rng:           rand.New(rand.NewSource(seed)),
		reg:           registry.New(),
		outcomes:      d.Outcomes,
		observers:     map[string]*observerClient{},
		observerJoin:  make(chan ObserverJoinRequest, 16),
		observerSub:   make(chan ObserverSubscribeRequest, 64),
		observerLeave: make(chan string, 16),
		stop:          make(chan struct{}),
	}
	b := t.Arena.HalfExtent

	for i := 0; i < t.Arena.Treasures; i++ {
		ang := 2 * math.Pi * float64(i) / float64(t.Arena.Treasures)
		w.treasures = append(w.treasures, geom.V(4*math.Sin(ang), 0, 4*math.Cos(ang)))
	}
	w.treasureTotal = len(w.treasures)
	for i := 0; i < t.Arena.HeavyObjects; i++ {
		w.reg.Add(registry.HeavyObject, w.randomPoint(0.8*b))
	}
	for i := 0; i < t.Arena.ForagePoints; i++ {
		w.reg.Add(registry.ForagePoint, w.randomPoint(0.8*b))
	}

	spawn := w.rng.Float64() * 360
	w.target = newIntruder(geom.FromYaw(spawn).Scale(0.95*b), t.Arena.TargetSpeed, b, t.Arena.CloakBudgetS, t.Arena.TargetLives, seed, w)

	events := agent.Sinks{d.Events, agent.EventSinkFunc(w.recordEvent)}
	cfg := AgentConfig(t.Agent)
	n := t.Arena.Agents
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("warden-%02d", i+1)
		yaw := 360 * float64(i) / float64(n)
		home := geom.FromYaw(yaw).Scale(b / 3)
		body := NewBody(home, geom.NormalizeDeg(yaw+180), b)
		a, err := agent.New(id, home, cfg, agent.Deps{
			Body:     body,
			Registry: w.reg,
			Planner:  htn.NewPlanner(d.Domain, rand.New(rand.NewSource(seed+int64(i)+1))),
			Root:     d.Root,
			Launcher: w,
			Striker:  w,
			Events:   events,
			Logger:   logger,
			Rand:     rand.New(rand.NewSource(seed ^ int64(i+1)<<16)),
		})
		if err != nil {
			return nil, fmt.Errorf("arena: %s: %w", id, err)
		}
		w.wardens = append(w.wardens, &warden{id: id, body: body, agent: a})
		w.agentIDs = append(w.agentIDs, id)
	}
	return w, nil
}

func (w *World) randomPoint(r float64) geom.Vec3 {
	return geom.V((w.rng.Float64()*2-1)*r, 0, (w.rng.Float64()*2-1)*r)
}

func (w *World) Config() tuning.Tuning { return w.cfg }

func (w *World) CurrentTick() uint64 { return w.tick.Load() }

// AgentIDs lists agents in tick order. Safe to call from any goroutine.
func (w *World) AgentIDs() []string { return append([]string(nil), w.agentIDs...) }

// The accessors below are for the loop goroutine or a stopped world.

func (w *World) Target() *Intruder { return w.target }

func (w *World) Registry() *registry.Registry { return w.reg }

func (w *World) Outcome() Outcome { return w.outcome }

func (w *World) Agent(id string) (*agent.Agent, bool) {
	for _, wd := range w.wardens {
		if wd.id == id {
			return wd.agent, true
		}
	}
	return nil, false
}

func (w *World) Snapshots() []agent.Snapshot {
	out := make([]agent.Snapshot, 0, len(w.wardens))
	for _, wd := range w.wardens {
		out = append(out, wd.agent.Snapshot())
	}
	return out
}

// Step advances the arena by dt seconds. Agents tick in ID order after the intruder moves.
func (w *World) Step(dt float64) error {
	tick := w.tick.Add(1)
	w.tickEvents = w.tickEvents[:0]

	if err := w.target.Step(dt); err != nil {
		return fmt.Errorf("arena: intruder: %w", err)
	}
	for _, wd := range w.wardens {
		wd.agent.Tick(dt, w.perceive(wd))
		wd.body.Step(dt)
	}
	w.stepProjectiles(dt)
	w.checkOutcome(tick)
	w.stepObservers(tick)
	return nil
}

// Run steps the world at tick_rate_hz until ctx is done, Stop is called, or maxTicks
// ticks have run (0 means no limit).
func (w *World) Run(ctx context.Context, maxTicks uint64) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	dt := 1 / float64(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer w.closeObservers()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.observerJoin:
			w.handleObserverJoin(req)
		case req := <-w.observerSub:
			w.handleObserverSubscribe(req)
		case id := <-w.observerLeave:
			w.handleObserverLeave(id)
		case <-ticker.C:
			if err := w.Step(dt); err != nil {
				return err
			}
			if maxTicks > 0 && w.CurrentTick() >= maxTicks {
				return nil
			}
		}
	}
}

func (w *World) Stop() { w.stopOnce.Do(func() { close(w.stop) }) }

// Close releases every reservation the agents hold.
func (w *World) Close() {
	for _, wd := range w.wardens {
		wd.agent.Remove()
	}
}

func (w *World) recordEvent(e agent.Event) {
	if len(w.observers) > 0 {
		w.tickEvents = append(w.tickEvents, e)
	}
}

func (w *World) checkOutcome(tick uint64) {
	if w.outcome != OutcomeNone {
		return
	}
	switch {
	case w.target.Down():
		w.outcome = OutcomeTargetDown
	case w.treasureTotal > 0 && w.target.Stolen() >= w.treasureTotal:
		w.outcome = OutcomeTreasureLost
	default:
		return
	}
	w.log.Info("arena decided", "outcome", string(w.outcome), "tick", tick)
	if w.outcomes != nil {
		w.outcomes.Outcome(tick, w.outcome)
	}
}

func (w *World) nearestTreasure(from geom.Vec3) (int, geom.Vec3, bool) {
	best, bestD := -1, math.Inf(1)
	for i, p := range w.treasures {
		if d := from.Dist(p); d < bestD {
			best, bestD = i, d
		}
	}
	if best < 0 {
		return -1, geom.Vec3{}, false
	}
	return best, w.treasures[best], true
}

func (w *World) takeTreasure(i int) (geom.Vec3, bool) {
	if i < 0 || i >= len(w.treasures) {
		return geom.Vec3{}, false
	}
	p := w.treasures[i]
	w.treasures = append(w.treasures[:i], w.treasures[i+1:]...)
	return p, true
}
