package gateway

import (
	"context"
	"time"

	"github.com/danmuck/gatectl/internal/observability"
	"github.com/danmuck/gatectl/internal/protocol"
)

// Every pump returns errPumpStopped so the errgroup cancels its siblings.

func (s *Session) heartbeatPump(ctx context.Context, conn Conn) error {
	interval, wait := s.state.heartbeat()
	if interval <= 0 {
		<-ctx.Done()
		return errPumpStopped
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	for s.state.Active() {
		select {
		case <-ctx.Done():
			return errPumpStopped
		case <-timer.C:
		}
		if !s.state.Active() {
			break
		}
		if err := s.sendHeartbeat(conn); err != nil {
			s.logger.Warn().Err(err).Msg("heartbeat send failed")
		}
		timer.Reset(interval)
	}
	return errPumpStopped
}

func (s *Session) receivePump(ctx context.Context, conn Conn) error {
	st := s.state
	for {
		raw, err := conn.ReadFrame(0)
		if err != nil {
			if ctx.Err() == nil && st.terminateIfActive(protocol.OpReconnect) {
				ev := s.logger.Warn().Err(err)
				if isCloseError(err) {
					ev = s.logger.Info().Err(err)
				}
				ev.Msg("gateway connection dropped, resuming")
			}
			return errPumpStopped
		}

		msg := protocol.Decode(raw)
		observability.RecordFrame(st.alias, "in", msg.Op().String())
		if seq, ok := msg.Frame().Sequence(); ok {
			st.setSequence(seq)
		}

		switch m := msg.(type) {
		case protocol.Dispatch:
			s.dispatcher.dispatch(ctx, m)
		case protocol.HeartbeatRequest:
			if err := s.sendHeartbeat(conn); err != nil {
				s.logger.Warn().Err(err).Msg("requested heartbeat send failed")
			}
		case protocol.HeartbeatAck:
			if latency, ok := st.markAck(time.Now()); ok {
				observability.RecordHeartbeatAck(st.alias, latency)
			}
		default:
			switch m := msg.(type) {
			case protocol.Malformed:
				s.logger.Error().Err(m.Err).Bytes("frame", truncate(raw)).Msg("malformed frame")
			case protocol.InvalidSession:
				s.logger.Warn().Bool("resumable", m.Resumable).Msg("invalid session")
			}
			if st.terminateIfActive(msg.Op()) {
				s.logger.Info().Str("op", msg.Op().String()).Msg("server ended connection")
			}
			return errPumpStopped
		}

		if !st.Active() {
			return errPumpStopped
		}
	}
}

func (s *Session) sendPump(ctx context.Context, conn Conn) error {
	st := s.state
	for st.Active() {
		item, err := st.outbox.Pop(ctx)
		if err != nil {
			return errPumpStopped
		}
		observability.SetQueueDepth(st.alias, st.outbox.Len())
		if ctx.Err() != nil {
			st.outbox.PushFront(item)
			return errPumpStopped
		}
		data, err := encodePayload(item)
		if err != nil {
			s.logger.Error().Err(err).Msg("dropping unencodable payload")
			continue
		}
		if err := s.write(conn, payloadOp(data), data); err != nil {
			s.logger.Warn().Err(err).Msg("dropping payload after send failure")
			continue
		}
	}
	return errPumpStopped
}
