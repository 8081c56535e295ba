package observer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"cavewarden.ai/internal/observerproto"
	"cavewarden.ai/internal/sim/arena"
	"cavewarden.ai/internal/sim/htn/domaincfg"
	"cavewarden.ai/internal/sim/tuning"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestServer(t *testing.T, logger *log.Logger) (*arena.World, *httptest.Server) {
	t.Helper()
	d, err := domaincfg.Default()
	if err != nil {
		t.Fatalf("domain: %v", err)
	}
	cfg := tuning.Defaults()
	cfg.TickRateHz = 100
	w, err := arena.New(cfg, arena.Deps{Domain: d.Domain, Root: d.Root})
	if err != nil {
		t.Fatalf("arena: %v", err)
	}
	mux := http.NewServeMux()
	NewServer(w, "run-1", observerproto.DomainInfo{ID: d.Spec.ID, Root: d.Root, Digest: d.Digest}, logger).Routes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return w, srv
}

func TestBootstrap(t *testing.T) {
	_, srv := newTestServer(t, nil)
	resp, err := http.Get(srv.URL + "/debug/v1/bootstrap")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var b observerproto.BootstrapResponse
	if err := json.NewDecoder(resp.Body).Decode(&b); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b.RunID != "run-1" || b.ProtocolVersion != observerproto.Version || b.ArenaParams.TickRateHz != 100 {
		t.Fatalf("unexpected bootstrap: %+v", b)
	}
	if len(b.AgentIDs) != 2 || b.Domain.Digest == "" {
		t.Fatalf("unexpected bootstrap: %+v", b)
	}
}

func TestRejectsNonLoopback(t *testing.T) {
	s := &Server{}
	for _, h := range []http.HandlerFunc{s.BootstrapHandler(), s.WSHandler()} {
		req := httptest.NewRequest(http.MethodGet, "/debug/v1/bootstrap", nil)
		req.RemoteAddr = "10.1.2.3:5555"
		rec := httptest.NewRecorder()
		h(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("status %d, want 403", rec.Code)
		}
	}
}

func TestWebsocketStreamsTicks(t *testing.T) {
	logs := &lockedBuffer{}
	w, srv := newTestServer(t, log.New(logs, "[observer] ", 0))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, 0) }()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/debug/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	sub := observerproto.SubscribeMsg{Type: "SUBSCRIBE", ProtocolVersion: observerproto.Version, FocusAgentID: "warden-01"}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg observerproto.TickMsg
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != "TICK" || msg.Tick == 0 {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if len(msg.Agents) != 1 || msg.Agents[0].ID != "warden-01" {
		t.Fatalf("focus not applied: %+v", msg.Agents)
	}
	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(logs.String(), `observer joined: session=O1 focus="warden-01"`) {
		if time.Now().After(deadline) {
			t.Fatalf("join not logged: %q", logs.String())
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("world did not stop")
	}
}

func TestWebsocketRequiresSubscribe(t *testing.T) {
	_, srv := newTestServer(t, nil)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/debug/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"HELLO"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err = conn.ReadMessage()
	var ce *websocket.CloseError
	if err == nil {
		t.Fatalf("expected close")
	}
	if !errors.As(err, &ce) || ce.Code != websocket.ClosePolicyViolation {
		t.Fatalf("unexpected error: %v", err)
	}
}
