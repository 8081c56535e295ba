package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"cavewarden.ai/internal/observerproto"
	persistlog "cavewarden.ai/internal/persistence/log"
	"cavewarden.ai/internal/persistence/snapshot"
	"cavewarden.ai/internal/sim/agent"
	"cavewarden.ai/internal/sim/arena"
	"cavewarden.ai/internal/sim/htn/domaincfg"
	"cavewarden.ai/internal/sim/tuning"
	"cavewarden.ai/internal/transport/observer"
)

func main() {
	var (
		addr       = flag.String("addr", "127.0.0.1:8080", "debug http listen address")
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		domainPath = flag.String("domain", "", "path to the HTN domain yaml (default: tuning domain_path, else embedded)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite plan/event index")
		seed       = flag.Int64("seed", 0, "arena seed override (0 keeps tuning)")
		agents     = flag.Int("agents", 0, "agent count override (0 keeps tuning)")
		ticks      = flag.Uint64("ticks", 0, "stop after this many ticks (0 runs until signalled)")
		stopOnEnd  = flag.Bool("stop_on_outcome", false, "stop when the arena is decided")
		snapOnExit = flag.Bool("snapshot", true, "write <data>/runs/<run>/final.snap.zst on exit")
		logLevel   = flag.String("log_level", "info", "debug|info|warn|error")
		logJSON    = flag.Bool("log_json", false, "log as JSON")
	)
	flag.Parse()

	logger := newLogger(*logLevel, *logJSON)
	runID := uuid.NewString()
	logger = logger.With("run", runID)

	tune, err := loadTuning(*configDir, *tuningPath, logger)
	if err != nil {
		fatal(logger, "load tuning", err)
	}
	if *seed != 0 {
		tune.Arena.Seed = *seed
	}
	if *agents > 0 {
		tune.Arena.Agents = *agents
	}

	dom, err := loadDomain(*domainPath, tune.DomainPath, *configDir)
	if err != nil {
		fatal(logger, "load domain", err)
	}
	logger.Info("domain loaded", "id", dom.Spec.ID, "root", dom.Root, "digest", dom.Digest[:12])

	runDir := filepath.Join(*dataDir, "runs", runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		fatal(logger, "data dir", err)
	}

	trace := persistlog.NewTraceLogger(runDir, runID, logger)
	defer trace.Close()

	idx, err := openRuntimeIndex(*dataDir, runID, *disableDB)
	if err != nil {
		fatal(logger, "open index backend", err)
	}
	if idx != nil {
		defer idx.Close()
		idx.BeginRun(dom.Digest, tune.Arena.Seed, tune.Arena.Agents)
	}

	ctx, cancel := signalContext()
	defer cancel()

	sinks := agent.Sinks{trace}
	if idx != nil {
		sinks = append(sinks, idx)
	}
	w, err := arena.New(tune, arena.Deps{
		Domain: dom.Domain,
		Root:   dom.Root,
		Events: sinks,
		Outcomes: arena.OutcomeSinkFunc(func(tick uint64, o arena.Outcome) {
			trace.WriteOutcome(tick, string(o))
			if idx != nil {
				idx.RecordOutcome(tick, string(o))
			}
			if *stopOnEnd {
				cancel()
			}
		}),
		Logger: logger,
	})
	if err != nil {
		fatal(logger, "arena", err)
	}
	defer w.Close()

	httpLog := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP cavewarden_arena_tick Current arena tick.\n")
		fmt.Fprintf(rw, "# TYPE cavewarden_arena_tick gauge\n")
		fmt.Fprintf(rw, "cavewarden_arena_tick{run=%q} %d\n", runID, w.CurrentTick())
		fmt.Fprintf(rw, "# HELP cavewarden_arena_agents Agents in the arena.\n")
		fmt.Fprintf(rw, "# TYPE cavewarden_arena_agents gauge\n")
		fmt.Fprintf(rw, "cavewarden_arena_agents{run=%q} %d\n", runID, len(w.AgentIDs()))
		fmt.Fprintf(rw, "# HELP cavewarden_trace_failed_total Trace entries that could not be written.\n")
		fmt.Fprintf(rw, "# TYPE cavewarden_trace_failed_total counter\n")
		fmt.Fprintf(rw, "cavewarden_trace_failed_total{run=%q} %d\n", runID, trace.Failed())
		if idx != nil {
			st := idx.Stats()
			fmt.Fprintf(rw, "# HELP cavewarden_index_queue_depth Index writer backlog.\n")
			fmt.Fprintf(rw, "# TYPE cavewarden_index_queue_depth gauge\n")
			fmt.Fprintf(rw, "cavewarden_index_queue_depth{run=%q} %d\n", runID, st.QueueDepth)
			fmt.Fprintf(rw, "# HELP cavewarden_index_dropped_total Index rows dropped under load.\n")
			fmt.Fprintf(rw, "# TYPE cavewarden_index_dropped_total counter\n")
			fmt.Fprintf(rw, "cavewarden_index_dropped_total{run=%q} %d\n", runID, st.DropTotal)
		}
	})
	observer.NewServer(w, runID, observerproto.DomainInfo{ID: dom.Spec.ID, Root: dom.Root, Digest: dom.Digest}, httpLog).Routes(mux)
	if envBool("CW_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		fatal(logger, "listen", err)
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpLog.Printf("debug http stopped: %v", err)
		}
	}()
	logger.Info("arena starting",
		"addr", ln.Addr().String(),
		"tick_rate_hz", tune.TickRateHz,
		"agents", tune.Arena.Agents,
		"seed", tune.Arena.Seed,
		"ticks", *ticks,
	)

	runErr := w.Run(ctx, *ticks)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)

	if *snapOnExit {
		path := filepath.Join(runDir, "final.snap.zst")
		if err := snapshot.WriteSnapshot(path, w.ExportSnapshot(runID, dom.Digest)); err != nil {
			logger.Error("snapshot failed", "path", path, "err", err)
		} else {
			logger.Info("snapshot written", "path", path)
		}
	}

	switch {
	case runErr == nil, errors.Is(runErr, context.Canceled):
		logger.Info("arena stopped", "tick", w.CurrentTick(), "outcome", string(w.Outcome()))
	default:
		logger.Error("arena failed", "tick", w.CurrentTick(), "err", runErr)
	}
}

func newLogger(level string, asJSON bool) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if asJSON {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func fatal(logger *slog.Logger, what string, err error) {
	logger.Error(what, "err", err)
	os.Exit(1)
}

func loadTuning(configDir, path string, logger *slog.Logger) (tuning.Tuning, error) {
	tp := strings.TrimSpace(path)
	if tp == "" {
		tp = filepath.Join(configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		// Only the implicit path may be missing.
		if errors.Is(err, fs.ErrNotExist) && strings.TrimSpace(path) == "" {
			logger.Info("tuning not found; using defaults", "path", tp)
			return tuning.Defaults(), nil
		}
		return tune, err
	}
	return tune, nil
}

func loadDomain(flagPath, tunedPath, configDir string) (*domaincfg.Loaded, error) {
	p := strings.TrimSpace(flagPath)
	if p == "" {
		p = strings.TrimSpace(tunedPath)
		if p != "" && !filepath.IsAbs(p) {
			p = filepath.Join(configDir, p)
		}
	}
	if p == "" {
		return domaincfg.Default()
	}
	return domaincfg.Load(p)
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-ch:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func envBool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}
