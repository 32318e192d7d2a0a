package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/danmuck/gatectl/internal/observability"
	"github.com/danmuck/gatectl/internal/protocol"
)

// heartbeatTiming converts a hello interval into the steady beat and the
// first-beat jitter. Whole seconds are used when the interval is at least
// one second; shorter intervals keep millisecond precision.
func heartbeatTiming(intervalMS int64, u float64) (interval, jitter time.Duration) {
	if intervalMS <= 0 {
		return 0, 0
	}
	if secs := intervalMS / 1000; secs > 0 {
		return time.Duration(secs) * time.Second,
			time.Duration(int64(float64(secs)*u)) * time.Second
	}
	interval = time.Duration(intervalMS) * time.Millisecond
	return interval, time.Duration(int64(float64(intervalMS)*u)) * time.Millisecond
}

// handshake runs hello then identify or resume and returns the new session
// code. A non-nil error means the transport failed before a reply; the
// session code is left untouched in that case.
func (s *Session) handshake(ctx context.Context, conn Conn) (protocol.Opcode, error) {
	st := s.state
	timeout := s.cfg.HandshakeTimeout

	raw, err := conn.ReadFrame(timeout)
	if err != nil {
		return st.Code(), fmt.Errorf("%w: await hello: %v", ErrHandshake, err)
	}
	first := protocol.Decode(raw)
	observability.RecordFrame(st.alias, "in", first.Op().String())
	hello, ok := first.(protocol.Hello)
	if !ok {
		s.logger.Error().Bytes("frame", truncate(raw)).Msg("first frame was not hello")
		return st.settle(protocol.OpMalformed), nil
	}
	interval, jitter := heartbeatTiming(hello.HeartbeatIntervalMS, s.rng.Float64())
	st.setHeartbeat(interval, jitter)

	resuming := st.resumeRequested()
	kind := "identify"
	var payload []byte
	if resuming {
		kind = "resume"
		payload, err = protocol.EncodeResume(protocol.Resume{
			Token:     st.token,
			SessionID: st.SessionID(),
			Seq:       st.sequencePtr(),
		})
	} else {
		st.beginIdentify()
		payload, err = protocol.EncodeIdentify(protocol.Identify{
			Token:      st.token,
			Properties: s.props,
			Intents:    st.intents,
		})
	}
	if err != nil {
		return st.Code(), fmt.Errorf("%w: encode %s: %v", ErrHandshake, kind, err)
	}
	op := protocol.OpIdentify
	if resuming {
		op = protocol.OpResume
	}
	if err := s.write(conn, op.String(), payload); err != nil {
		observability.RecordConnection(st.alias, kind, false)
		return st.Code(), fmt.Errorf("%w: send %s: %v", ErrHandshake, kind, err)
	}

	raw, err = conn.ReadFrame(timeout)
	if err != nil {
		observability.RecordConnection(st.alias, kind, false)
		return st.Code(), fmt.Errorf("%w: await %s reply: %v", ErrHandshake, kind, err)
	}
	reply := protocol.Decode(raw)
	observability.RecordFrame(st.alias, "in", reply.Op().String())
	if seq, ok := reply.Frame().Sequence(); ok {
		st.setSequence(seq)
	}

	code := reply.Op()
	if d, ok := reply.(protocol.Dispatch); ok {
		if !resuming {
			ready, err := protocol.DecodeReady(d.Data)
			if err != nil {
				s.logger.Error().Err(err).Msg("identify reply rejected")
				code = protocol.OpMalformed
			} else {
				st.setSession(ready.SessionID, ready.ResumeGatewayURL, d.Data)
			}
		}
		if code == protocol.OpDispatch {
			s.dispatcher.dispatch(ctx, d)
		}
	}
	if inv, ok := reply.(protocol.InvalidSession); ok {
		s.logger.Warn().Str("kind", kind).Bool("resumable", inv.Resumable).Msg("handshake rejected with invalid session")
	}
	code = st.settle(code)
	observability.RecordConnection(st.alias, kind, code != protocol.OpInvalidSession && code != protocol.OpMalformed)

	s.logger.Info().
		Str("kind", kind).
		Str("reply", code.String()).
		Str("session_id", st.SessionID()).
		Dur("heartbeat_interval", interval).
		Dur("heartbeat_jitter", jitter).
		Msg("handshake complete")
	return code, nil
}

func truncate(raw []byte) []byte {
	const limit = 256
	if len(raw) > limit {
		return raw[:limit]
	}
	return raw
}
