package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danmuck/gatectl/internal/gateway"
	"github.com/danmuck/gatectl/internal/protocol"
	"github.com/danmuck/gatectl/internal/testutil/testlog"
	"github.com/rs/zerolog/log"
)

func newTestServer(t *testing.T, token string) (*Server, *gateway.Manager) {
	t.Helper()
	cfg := gateway.DefaultManagerConfig()
	cfg.Properties = protocol.Properties{OS: "linux", Browser: "gatectl", Device: "gatectl"}
	m := gateway.NewManager(cfg)
	if _, err := m.Register(gateway.Registration{Alias: "alpha", Token: "tkn"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	return New(Config{Token: token}, m, log.Logger), m
}

func do(t *testing.T, s *Server, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	testlog.Start(t)
	s, _ := newTestServer(t, "admin")
	rr := do(t, s, http.MethodGet, "/health", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("health status got=%d", rr.Code)
	}
	var body map[string]any
	_ = json.Unmarshal(rr.Body.Bytes(), &body)
	if body["status"] != "ok" || body["sessions"] != float64(1) {
		t.Fatalf("health body got=%v", body)
	}
	if rr := do(t, s, http.MethodGet, "/metrics", "", ""); rr.Code != http.StatusOK {
		t.Fatalf("metrics status got=%d", rr.Code)
	}
}

func TestSessionsRequireToken(t *testing.T) {
	testlog.Start(t)
	s, _ := newTestServer(t, "admin")
	if rr := do(t, s, http.MethodGet, "/sessions", "", ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("missing token status got=%d", rr.Code)
	}
	if rr := do(t, s, http.MethodGet, "/sessions", "", "wrong"); rr.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token status got=%d", rr.Code)
	}
	rr := do(t, s, http.MethodGet, "/sessions", "", "admin")
	if rr.Code != http.StatusOK {
		t.Fatalf("list status got=%d body=%s", rr.Code, rr.Body.String())
	}
	var body struct {
		Sessions []gateway.Snapshot `json:"sessions"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Sessions) != 1 || body.Sessions[0].Alias != "alpha" {
		t.Fatalf("sessions got=%+v", body.Sessions)
	}
}

func TestSessionLookupAndReady(t *testing.T) {
	testlog.Start(t)
	s, _ := newTestServer(t, "")
	if rr := do(t, s, http.MethodGet, "/sessions/alpha", "", ""); rr.Code != http.StatusOK {
		t.Fatalf("snapshot status got=%d", rr.Code)
	}
	if rr := do(t, s, http.MethodGet, "/sessions/nobody", "", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown alias status got=%d", rr.Code)
	}
	if rr := do(t, s, http.MethodGet, "/sessions/alpha/ready", "", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("ready before identify status got=%d", rr.Code)
	}
}

func TestSendQueuesPayload(t *testing.T) {
	testlog.Start(t)
	s, m := newTestServer(t, "")
	rr := do(t, s, http.MethodPost, "/sessions/alpha/send", `{"op":3,"d":{"status":"idle"}}`, "")
	if rr.Code != http.StatusAccepted {
		t.Fatalf("send status got=%d body=%s", rr.Code, rr.Body.String())
	}
	snap, _ := m.Snapshot("alpha")
	if snap.QueueLen != 1 {
		t.Fatalf("queue len got=%d", snap.QueueLen)
	}
	rr = do(t, s, http.MethodGet, "/sessions/alpha/queue", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("queue status got=%d", rr.Code)
	}
	var queue struct {
		Pending []json.RawMessage `json:"pending"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &queue); err != nil {
		t.Fatalf("decode queue: %v", err)
	}
	if len(queue.Pending) != 1 || string(queue.Pending[0]) != `{"op":3,"d":{"status":"idle"}}` {
		t.Fatalf("queue got=%s", queue.Pending)
	}
	if rr := do(t, s, http.MethodGet, "/sessions/nobody/queue", "", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown alias queue status got=%d", rr.Code)
	}
	if rr := do(t, s, http.MethodPost, "/sessions/alpha/send", `{not json`, ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("invalid body status got=%d", rr.Code)
	}
	if rr := do(t, s, http.MethodPost, "/sessions/nobody/send", `{}`, ""); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown alias status got=%d", rr.Code)
	}
}

func TestRestartAndStop(t *testing.T) {
	testlog.Start(t)
	s, m := newTestServer(t, "")
	if rr := do(t, s, http.MethodPost, "/sessions/alpha/restart", `{"code":3}`, ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad code status got=%d", rr.Code)
	}
	if rr := do(t, s, http.MethodPost, "/sessions/alpha/restart", `{"code":7}`, ""); rr.Code != http.StatusAccepted {
		t.Fatalf("restart status got=%d body=%s", rr.Code, rr.Body.String())
	}
	snap, _ := m.Snapshot("alpha")
	if snap.Code != int(protocol.OpReconnect) || snap.Active {
		t.Fatalf("restart snapshot got=%+v", snap)
	}
	if rr := do(t, s, http.MethodPost, "/sessions/alpha/restart", "", ""); rr.Code != http.StatusAccepted {
		t.Fatalf("default restart status got=%d", rr.Code)
	}
	snap, _ = m.Snapshot("alpha")
	if snap.Code != int(protocol.OpInvalidSession) {
		t.Fatalf("default restart code got=%d", snap.Code)
	}

	if rr := do(t, s, http.MethodPost, "/sessions/alpha/stop", "", ""); rr.Code != http.StatusAccepted {
		t.Fatalf("stop status got=%d", rr.Code)
	}
	snap, _ = m.Snapshot("alpha")
	if snap.Code != int(protocol.OpStop) {
		t.Fatalf("stop code got=%d", snap.Code)
	}
	if rr := do(t, s, http.MethodPost, "/sessions/nobody/stop", "", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown alias stop status got=%d", rr.Code)
	}
}
