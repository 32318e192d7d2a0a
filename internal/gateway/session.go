package gateway

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/danmuck/gatectl/internal/observability"
	"github.com/danmuck/gatectl/internal/protocol"
	"github.com/danmuck/gatectl/internal/protocol/session"
	"github.com/rs/zerolog"
)

// Session binds one alias's State to the wiring that drives it.
type Session struct {
	state      *State
	handlers   *Handlers
	dispatcher *dispatcher
	cfg        session.Config
	dialer     Dialer
	props      protocol.Properties
	logger     zerolog.Logger
	rng        *rand.Rand
	running    atomic.Bool
}

func (s *Session) State() *State { return s.state }

func (s *Session) Handlers() *Handlers { return s.handlers }

func (s *Session) sendHeartbeat(conn Conn) error {
	data, err := protocol.EncodeHeartbeat(s.state.sequencePtr())
	if err != nil {
		return err
	}
	s.state.markHeartbeat(time.Now())
	return s.write(conn, protocol.OpHeartbeat.String(), data)
}

func (s *Session) write(conn Conn, op string, data []byte) error {
	if err := conn.WriteFrame(data); err != nil {
		return err
	}
	observability.RecordFrame(s.state.alias, "out", op)
	return nil
}

// encodePayload accepts pre-encoded JSON ([]byte, json.RawMessage, string)
// verbatim and marshals anything else.
func encodePayload(payload any) ([]byte, error) {
	var data []byte
	switch v := payload.(type) {
	case nil:
		return nil, ErrNilPayload
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	case string:
		data = []byte(v)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		return encoded, nil
	}
	if !json.Valid(data) {
		return nil, ErrInvalidPayload
	}
	return data, nil
}

// payloadOp best-effort extracts the op of an outbound payload for metrics.
func payloadOp(data []byte) string {
	var envelope struct {
		Op *protocol.Opcode `json:"op"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil || envelope.Op == nil {
		return "unknown"
	}
	return envelope.Op.String()
}
