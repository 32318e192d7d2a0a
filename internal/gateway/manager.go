package gateway

import (
	"context"
	"encoding/json"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/gatectl/internal/observability"
	"github.com/danmuck/gatectl/internal/protocol"
	"github.com/danmuck/gatectl/internal/protocol/session"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ManagerConfig wires every session a Manager creates. Zero values select
// the defaults.
type ManagerConfig struct {
	Session    session.Config
	Properties protocol.Properties
	Dialer     Dialer
	Logger     *zerolog.Logger
}

func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{Session: session.DefaultConfig()}
}

// Registration describes one bot identity.
type Registration struct {
	Alias   string
	Token   string
	Intents int
	// DefaultParser applies to handlers registered without a parser.
	DefaultParser Parser
	// Instance is passed to every callback of this session.
	Instance any
	// Session overrides the manager-wide session config when non-nil.
	Session *session.Config
}

// Manager is the alias table and the thread-safe control surface.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	pending  map[string]*Handlers

	cfg    ManagerConfig
	logger zerolog.Logger
}

func NewManager(cfg ManagerConfig) *Manager {
	cfg.Session = cfg.Session.WithDefaults()
	if cfg.Properties == (protocol.Properties{}) {
		cfg.Properties = DefaultProperties(context.Background())
	}
	if cfg.Dialer == nil {
		cfg.Dialer = NewWebsocketDialer(cfg.Session)
	}
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &Manager{
		sessions: make(map[string]*Session),
		pending:  make(map[string]*Handlers),
		cfg:      cfg,
		logger:   observability.Component(logger, "gateway"),
	}
}

// Register creates the session for reg.Alias. Handlers added for the alias
// before registration are merged in.
func (m *Manager) Register(reg Registration) (*Session, error) {
	alias := strings.TrimSpace(reg.Alias)
	if alias == "" {
		return nil, ErrAliasRequired
	}
	if strings.TrimSpace(reg.Token) == "" {
		return nil, ErrTokenRequired
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[alias]; ok {
		return nil, ErrAliasExists
	}
	handlers, ok := m.pending[alias]
	if !ok {
		handlers = NewHandlers()
	}
	delete(m.pending, alias)

	cfg := m.cfg.Session
	dialer := m.cfg.Dialer
	if reg.Session != nil {
		cfg = reg.Session.WithDefaults()
		if _, ok := dialer.(*WebsocketDialer); ok {
			dialer = NewWebsocketDialer(cfg)
		}
	}
	logger := m.logger.With().Str("alias", alias).Logger()
	s := &Session{
		state:      newState(alias, reg.Token, reg.Intents),
		handlers:   handlers,
		dispatcher: newDispatcher(alias, handlers, reg.DefaultParser, reg.Instance, logger),
		cfg:        cfg,
		dialer:     dialer,
		props:      m.cfg.Properties,
		logger:     logger,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	m.sessions[alias] = s
	logger.Info().Int("intents", reg.Intents).Strs("events", handlers.Events()).Msg("session registered")
	return s, nil
}

// Handlers returns the routing table for alias, creating a pending one if
// the alias is not registered yet.
func (m *Manager) Handlers(alias string) *Handlers {
	alias = strings.TrimSpace(alias)
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[alias]; ok {
		return s.handlers
	}
	h, ok := m.pending[alias]
	if !ok {
		h = NewHandlers()
		m.pending[alias] = h
	}
	return h
}

func (m *Manager) AddEventHandler(alias, event string, cb Callback, parser Parser) error {
	return m.Handlers(alias).On(event, cb, parser)
}

func (m *Manager) AddFallbackHandler(alias string, cb Callback, parser Parser) error {
	return m.Handlers(alias).Fallback(cb, parser)
}

func (m *Manager) lookup(alias string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[strings.TrimSpace(alias)]
	if !ok {
		return nil, ErrUnknownAlias
	}
	return s, nil
}

// EnqueueSend queues payload for the alias's send pump. Pre-encoded JSON
// ([]byte, json.RawMessage, string) is validated and sent verbatim; other
// values are marshaled here, so encoding errors are returned to the caller.
func (m *Manager) EnqueueSend(alias string, payload any) error {
	s, err := m.lookup(alias)
	if err != nil {
		return err
	}
	data, err := encodePayload(payload)
	if err != nil {
		return err
	}
	s.state.outbox.Push(append([]byte(nil), data...))
	observability.SetQueueDepth(s.state.alias, s.state.outbox.Len())
	return nil
}

// RequestStop ends the session permanently.
func (m *Manager) RequestStop(alias string) error {
	s, err := m.lookup(alias)
	if err != nil {
		return err
	}
	s.logger.Info().Msg("stop requested")
	s.state.terminate(protocol.OpStop)
	return nil
}

// RequestRestart tears the connection down with code; the supervisor then
// acts on it (7 resumes, 9 re-identifies after the cooldown).
func (m *Manager) RequestRestart(alias string, code protocol.Opcode) error {
	s, err := m.lookup(alias)
	if err != nil {
		return err
	}
	s.logger.Info().Str("code", code.String()).Msg("restart requested")
	s.state.terminate(code)
	return nil
}

// Run blocks running the alias's supervisor until the session stops or ctx
// ends. A requested stop and ctx cancellation return nil.
func (m *Manager) Run(ctx context.Context, alias, gatewayURL string) error {
	s, err := m.lookup(alias)
	if err != nil {
		return err
	}
	if strings.TrimSpace(gatewayURL) == "" {
		return ErrGatewayURLRequired
	}
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.running.Store(false)
	s.logger.Info().Str("url", gatewayURL).Msg("session supervisor starting")
	return s.supervise(ctx, gatewayURL)
}

func (m *Manager) Snapshot(alias string) (Snapshot, error) {
	s, err := m.lookup(alias)
	if err != nil {
		return Snapshot{}, err
	}
	return s.snapshot(), nil
}

// Snapshots lists every session, sorted by alias.
func (m *Manager) Snapshots() []Snapshot {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	out := make([]Snapshot, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Alias < out[j].Alias })
	return out
}

// Pending lists the payloads still queued for alias, in send order.
func (m *Manager) Pending(alias string) ([]json.RawMessage, error) {
	s, err := m.lookup(alias)
	if err != nil {
		return nil, err
	}
	items := s.state.outbox.Snapshot()
	out := make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		data, err := encodePayload(item)
		if err != nil {
			continue
		}
		out = append(out, json.RawMessage(data))
	}
	return out, nil
}

func (m *Manager) ReadyInfo(alias string) (json.RawMessage, error) {
	s, err := m.lookup(alias)
	if err != nil {
		return nil, err
	}
	return s.state.ReadyInfo(), nil
}

func (s *Session) snapshot() Snapshot {
	snap := s.state.Snapshot()
	snap.Events = s.handlers.Events()
	snap.Running = s.running.Load()
	return snap
}
