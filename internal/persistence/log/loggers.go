package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"cavewarden.ai/internal/sim/agent"
)

// JSONLZstdWriter appends one JSON document per line to hourly rotated zstd files named
// <prefix>-YYYY-MM-DD-HH.jsonl.zst.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	now     func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
		now:     time.Now,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curHour = hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.curHour = ""
	return err1
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

const tracePrefix = "trace"

// TraceEntry is one line of the trace log: an agent event, or the run outcome.
type TraceEntry struct {
	RunID   string       `json:"run_id"`
	Time    time.Time    `json:"time"`
	Event   *agent.Event `json:"event,omitempty"`
	Outcome string       `json:"outcome,omitempty"`
	Tick    uint64       `json:"tick,omitempty"`
}

// TraceLogger records every agent event of one run. It is an agent.EventSink; write
// errors are logged once and counted, never returned to the simulation.
type TraceLogger struct {
	w     *JSONLZstdWriter
	runID string
	log   *slog.Logger

	mu     sync.Mutex
	failed uint64
}

func NewTraceLogger(dataDir, runID string, logger *slog.Logger) *TraceLogger {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &TraceLogger{
		w:     NewJSONLZstdWriter(filepath.Join(dataDir, "trace"), tracePrefix),
		runID: runID,
		log:   logger,
	}
}

func (l *TraceLogger) Notify(e agent.Event) {
	l.write(TraceEntry{RunID: l.runID, Time: l.w.now().UTC(), Event: &e})
}

// WriteOutcome records how the run ended.
func (l *TraceLogger) WriteOutcome(tick uint64, outcome string) {
	l.write(TraceEntry{RunID: l.runID, Time: l.w.now().UTC(), Outcome: outcome, Tick: tick})
}

func (l *TraceLogger) write(entry TraceEntry) {
	if err := l.w.Write(entry); err != nil {
		l.mu.Lock()
		l.failed++
		first := l.failed == 1
		l.mu.Unlock()
		if first {
			l.log.Error("trace write failed", "err", err)
		}
	}
}

// Failed reports how many entries could not be written.
func (l *TraceLogger) Failed() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.failed
}

func (l *TraceLogger) Close() error { return l.w.Close() }

// ListTraceFiles returns the trace files under dir in chronological order.
func ListTraceFiles(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, tracePrefix+"-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}

// ReadTraceFile decodes every entry of one trace file in order.
func ReadTraceFile(path string, fn func(TraceEntry) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for sc.Scan() {
		var entry TraceEntry
		if err := json.Unmarshal(sc.Bytes(), &entry); err != nil {
			return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		if err := fn(entry); err != nil {
			return err
		}
	}
	return sc.Err()
}
