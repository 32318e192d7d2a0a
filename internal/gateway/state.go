package gateway

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"
	"time"

	"github.com/danmuck/gatectl/internal/protocol"
	"github.com/danmuck/gatectl/internal/protocol/session"
)

// State is the mutable per-alias session record. Every field is guarded by
// mu; the receive pump is the only writer of sequence and of pump-driven
// termination, the handshake the only writer of sessionID.
type State struct {
	mu sync.Mutex

	alias   string
	token   string
	intents int

	sessionID string
	resumeURL string
	sequence  int64
	hasSeq    bool
	ready     json.RawMessage

	heartbeatInterval time.Duration
	heartbeatJitter   time.Duration
	lastHeartbeat     time.Time
	lastAck           time.Time

	code   protocol.Opcode
	active bool

	connID string
	cancel context.CancelFunc

	outbox *session.Outbox
}

func newState(alias, token string, intents int) *State {
	return &State{
		alias:   alias,
		token:   token,
		intents: intents,
		code:    protocol.OpDispatch,
		active:  true,
		outbox:  session.NewOutbox(),
	}
}

func (s *State) Alias() string { return s.alias }

func (s *State) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// Sequence reports the last server sequence, or false before the first one.
func (s *State) Sequence() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sequence, s.hasSeq
}

func (s *State) sequencePtr() *int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasSeq {
		return nil
	}
	seq := s.sequence
	return &seq
}

func (s *State) setSequence(seq int64) {
	s.mu.Lock()
	s.sequence = seq
	s.hasSeq = true
	s.mu.Unlock()
}

func (s *State) Code() protocol.Opcode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.code
}

func (s *State) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// reactivate marks the session active for the next connection unless a
// stop was requested.
func (s *State) reactivate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.code == protocol.OpStop {
		s.active = false
		return false
	}
	s.active = true
	return true
}

// settle records a handshake outcome. A stop or restart that landed while
// the handshake was in flight wins and its code is returned instead.
func (s *State) settle(code protocol.Opcode) protocol.Opcode {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return s.code
	}
	s.code = code
	return code
}

// terminate records code, clears active and cancels the running pumps.
// Code and active always change together.
func (s *State) terminate(code protocol.Opcode) {
	s.mu.Lock()
	s.code = code
	s.active = false
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// terminateIfActive is terminate for pump-driven teardown: a code already
// set by a stop or restart request is never overwritten.
func (s *State) terminateIfActive(code protocol.Opcode) bool {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return false
	}
	s.code = code
	s.active = false
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return true
}

func (s *State) setHeartbeat(interval, jitter time.Duration) {
	s.mu.Lock()
	s.heartbeatInterval = interval
	s.heartbeatJitter = jitter
	s.mu.Unlock()
}

func (s *State) heartbeat() (interval, jitter time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heartbeatInterval, s.heartbeatJitter
}

func (s *State) markHeartbeat(at time.Time) {
	s.mu.Lock()
	s.lastHeartbeat = at
	s.mu.Unlock()
}

// markAck records an ack and returns the latency since the last heartbeat.
func (s *State) markAck(at time.Time) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAck = at
	if s.lastHeartbeat.IsZero() || at.Before(s.lastHeartbeat) {
		return 0, false
	}
	return at.Sub(s.lastHeartbeat), true
}

// beginIdentify clears the resumable identity ahead of a fresh identify.
func (s *State) beginIdentify() {
	s.mu.Lock()
	s.sessionID = ""
	s.resumeURL = ""
	s.sequence = 0
	s.hasSeq = false
	s.mu.Unlock()
}

func (s *State) setSession(id, resumeURL string, ready json.RawMessage) {
	s.mu.Lock()
	s.sessionID = id
	s.resumeURL = resumeURL
	s.ready = append(json.RawMessage(nil), ready...)
	s.mu.Unlock()
}

func (s *State) ReadyInfo() json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append(json.RawMessage(nil), s.ready...)
}

// attach records the teardown handle for the current connection: a socket
// close during the handshake, the pump cancel afterwards. If a stop or
// restart already landed the handle fires immediately.
func (s *State) attach(connID string, cancel context.CancelFunc) {
	s.mu.Lock()
	s.connID = connID
	s.cancel = cancel
	active := s.active
	s.mu.Unlock()
	if !active {
		cancel()
	}
}

func (s *State) detach() {
	s.mu.Lock()
	s.connID = ""
	s.cancel = nil
	s.mu.Unlock()
}

// resumeTarget is the URL the next connection should dial: the READY
// resume_gateway_url when a resume is pending, gatewayURL otherwise. The
// resume host inherits gatewayURL's query (version, encoding).
func (s *State) resumeTarget(gatewayURL string) string {
	s.mu.Lock()
	resumeURL := s.resumeURL
	resuming := s.code == protocol.OpReconnect && s.sessionID != ""
	s.mu.Unlock()
	if !resuming || resumeURL == "" {
		return gatewayURL
	}
	target, err := url.Parse(resumeURL)
	if err != nil || target.Host == "" {
		return gatewayURL
	}
	if base, err := url.Parse(gatewayURL); err == nil && target.RawQuery == "" {
		target.RawQuery = base.RawQuery
	}
	if target.Path == "" {
		target.Path = "/"
	}
	return target.String()
}

// dropResumeURL makes later resumes dial the configured gateway URL.
func (s *State) dropResumeURL() {
	s.mu.Lock()
	s.resumeURL = ""
	s.mu.Unlock()
}

func (s *State) resumeRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.code == protocol.OpReconnect && s.sessionID != ""
}

func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Alias:             s.alias,
		SessionID:         s.sessionID,
		HeartbeatInterval: s.heartbeatInterval.String(),
		HeartbeatJitter:   s.heartbeatJitter.String(),
		Code:              int(s.code),
		CodeName:          s.code.String(),
		Active:            s.active,
		Connected:         s.cancel != nil,
		ConnID:            s.connID,
		QueueLen:          s.outbox.Len(),
		LastHeartbeat:     s.lastHeartbeat,
		LastAck:           s.lastAck,
	}
	if s.hasSeq {
		seq := s.sequence
		snap.Sequence = &seq
	}
	return snap
}

// Snapshot is a point-in-time copy of a session for status reporting.
type Snapshot struct {
	Alias             string    `json:"alias"`
	SessionID         string    `json:"session_id,omitempty"`
	Sequence          *int64    `json:"sequence"`
	HeartbeatInterval string    `json:"heartbeat_interval"`
	HeartbeatJitter   string    `json:"heartbeat_jitter"`
	Code              int       `json:"code"`
	CodeName          string    `json:"code_name"`
	Active            bool      `json:"active"`
	Running           bool      `json:"running"`
	Connected         bool      `json:"connected"`
	ConnID            string    `json:"conn_id,omitempty"`
	QueueLen          int       `json:"queue_len"`
	Events            []string  `json:"events,omitempty"`
	LastHeartbeat     time.Time `json:"last_heartbeat,omitempty"`
	LastAck           time.Time `json:"last_ack,omitempty"`
}
