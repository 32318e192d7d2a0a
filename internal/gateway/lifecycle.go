package gateway

import (
	"context"
	"errors"

	"github.com/danmuck/gatectl/internal/observability"
	"github.com/danmuck/gatectl/internal/protocol"
	"golang.org/x/sync/errgroup"
)

// runConnection owns one socket from dial to close. It returns an error
// only for transport failures before steady state; every other outcome is
// reported through the session code.
func (s *Session) runConnection(ctx context.Context, gatewayURL string) error {
	conn, err := s.dialer.Dial(ctx, gatewayURL)
	if err != nil {
		return err
	}
	defer conn.Close()
	stopClose := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stopClose()

	logger := s.logger.With().Str("conn_id", conn.ID()).Logger()

	// A stop or restart during the handshake closes the socket so a pending
	// read returns; the pump cancel replaces this handle below.
	s.state.attach(conn.ID(), func() { _ = conn.Close() })
	defer s.state.detach()

	code, err := s.handshake(ctx, conn)
	if err != nil {
		if !s.state.Active() {
			logger.Info().Str("code", s.state.Code().String()).Msg("handshake interrupted by request")
			return nil
		}
		return err
	}
	switch code {
	case protocol.OpStop:
		return nil
	case protocol.OpInvalidSession:
		logger.Warn().Msg("invalid session, closing before pumps")
		observability.RecordConnectionEnd(s.state.alias, code.String())
		return nil
	case protocol.OpMalformed:
		logger.Error().Msg("malformed handshake reply, closing before pumps")
		observability.RecordConnectionEnd(s.state.alias, code.String())
		return nil
	}

	group, groupCtx := errgroup.WithContext(ctx)
	pumpCtx, cancel := context.WithCancel(groupCtx)
	defer cancel()
	stopPumpClose := context.AfterFunc(pumpCtx, func() { _ = conn.Close() })
	defer stopPumpClose()

	s.state.attach(conn.ID(), cancel)

	group.Go(func() error { return s.heartbeatPump(pumpCtx, conn) })
	group.Go(func() error { return s.receivePump(pumpCtx, conn) })
	group.Go(func() error { return s.sendPump(pumpCtx, conn) })

	err = group.Wait()
	final := s.state.Code()
	logger.Info().Str("code", final.String()).Msg("connection closed")
	observability.RecordConnectionEnd(s.state.alias, final.String())
	if errors.Is(err, errPumpStopped) {
		return nil
	}
	return err
}
