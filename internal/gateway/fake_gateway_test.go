package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/gatectl/internal/protocol"
	"github.com/danmuck/gatectl/internal/protocol/session"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const waitTimeout = 3 * time.Second

// fakeGateway accepts websocket clients and hands each server-side
// connection to the test.
type fakeGateway struct {
	srv   *httptest.Server
	conns chan *serverConn

	mu   sync.Mutex
	open []*websocket.Conn
}

func newFakeGateway(t *testing.T) *fakeGateway {
	t.Helper()
	fg := &fakeGateway{conns: make(chan *serverConn, 8)}
	fg.srv = httptest.NewServer(fg.handler(t))
	t.Cleanup(fg.close)
	return fg
}

func (fg *fakeGateway) close() {
	fg.mu.Lock()
	for _, ws := range fg.open {
		_ = ws.Close()
	}
	fg.mu.Unlock()
	fg.srv.Close()
}

func (fg *fakeGateway) handler(t *testing.T) http.Handler {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		fg.mu.Lock()
		fg.open = append(fg.open, ws)
		fg.mu.Unlock()
		fg.conns <- &serverConn{ws: ws}
	})
}

func (fg *fakeGateway) URL() string {
	return "ws" + strings.TrimPrefix(fg.srv.URL, "http")
}

func (fg *fakeGateway) accept(t *testing.T) *serverConn {
	t.Helper()
	select {
	case sc := <-fg.conns:
		return sc
	case <-time.After(waitTimeout):
		t.Fatalf("no client connection within %v", waitTimeout)
		return nil
	}
}

type serverConn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

type clientFrame struct {
	Op protocol.Opcode `json:"op"`
	D  json.RawMessage `json:"d"`
}

func (c *serverConn) send(t *testing.T, frame string) {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Fatalf("server send: %v", err)
	}
}

func (c *serverConn) hello(t *testing.T, intervalMS int) {
	t.Helper()
	c.send(t, `{"op":10,"d":{"heartbeat_interval":`+itoa(intervalMS)+`}}`)
}

func (c *serverConn) ready(t *testing.T, sessionID string, seq int) {
	t.Helper()
	c.send(t, `{"op":0,"s":`+itoa(seq)+`,"t":"READY","d":{"session_id":"`+sessionID+`","v":10}}`)
}

func (c *serverConn) dispatch(t *testing.T, name string, seq int, d string) {
	t.Helper()
	c.send(t, `{"op":0,"s":`+itoa(seq)+`,"t":"`+name+`","d":`+d+`}`)
}

// next reads one client frame, failing the test on timeout.
func (c *serverConn) next(t *testing.T) clientFrame {
	t.Helper()
	_ = c.ws.SetReadDeadline(time.Now().Add(waitTimeout))
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		t.Fatalf("server read: %v", err)
	}
	var f clientFrame
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("client frame %s: %v", data, err)
	}
	return f
}

// expect reads until a frame with op arrives, skipping heartbeats unless
// op is the heartbeat opcode.
func (c *serverConn) expect(t *testing.T, op protocol.Opcode) clientFrame {
	t.Helper()
	for {
		f := c.next(t)
		if f.Op == op {
			return f
		}
		if f.Op == protocol.OpHeartbeat {
			continue
		}
		t.Fatalf("expected op %v, got %v d=%s", op, f.Op, f.D)
	}
}

// expectClosed waits for the client side to close the socket.
func (c *serverConn) expectClosed(t *testing.T) {
	t.Helper()
	_ = c.ws.SetReadDeadline(time.Now().Add(waitTimeout))
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			return
		}
	}
}

func itoa(v int) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func testSessionConfig() session.Config {
	return session.Config{
		ConnectTimeout:         2 * time.Second,
		HandshakeTimeout:       2 * time.Second,
		WriteTimeout:           2 * time.Second,
		InvalidSessionCooldown: 100 * time.Millisecond,
		MaxMessageSize:         1 << 20,
		Backoff: session.BackoffConfig{
			InitialDelay: 10 * time.Millisecond,
			Multiplier:   1,
			MaxDelay:     10 * time.Millisecond,
		},
	}
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	logger := log.Logger
	return NewManager(ManagerConfig{
		Session:    testSessionConfig(),
		Properties: protocol.Properties{OS: "linux", Browser: "gatectl", Device: "gatectl"},
		Logger:     &logger,
	})
}

type runResult struct {
	done chan struct{}
	err  error
}

func startRun(t *testing.T, m *Manager, alias, url string) (*runResult, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	res := &runResult{done: make(chan struct{})}
	go func() {
		defer close(res.done)
		res.err = m.Run(ctx, alias, url)
	}()
	t.Cleanup(func() {
		cancel()
		<-res.done
	})
	return res, cancel
}

func (r *runResult) wait(t *testing.T) error {
	t.Helper()
	select {
	case <-r.done:
		return r.err
	case <-time.After(waitTimeout):
		t.Fatalf("supervisor did not return within %v", waitTimeout)
		return nil
	}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
