package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danmuck/gatectl/internal/protocol"
	"github.com/danmuck/gatectl/internal/protocol/session"
)

// supervise reconnects until the session code says stop or ctx ends.
//
//	9 (invalid session) -> cooldown, then identify
//	7 (reconnect)       -> reconnect now, resume (on resume_gateway_url
//	                       when READY named one)
//	anything else       -> stop
//
// Transport failures before steady state retry with backoff and leave the
// code untouched, so a pending resume stays a resume.
func (s *Session) supervise(ctx context.Context, gatewayURL string) error {
	st := s.state
	attempt := 0
	for {
		if ctx.Err() != nil {
			return nil
		}
		if !st.reactivate() {
			s.logger.Info().Msg("session stopped")
			return nil
		}

		target := st.resumeTarget(gatewayURL)
		err := s.runConnection(ctx, target)
		if ctx.Err() != nil {
			return nil
		}
		code := st.Code()
		if code == protocol.OpStop {
			s.logger.Info().Msg("session stopped")
			return nil
		}

		if err != nil {
			attempt++
			s.logger.Warn().Err(err).Int("attempt", attempt).Str("url", target).Msg("gateway connect failed")
			if target != gatewayURL {
				st.dropResumeURL()
			}
			if s.cfg.MaxConnectAttempts > 0 && attempt >= s.cfg.MaxConnectAttempts {
				return fmt.Errorf("%w: attempts=%d: %v", ErrConnectExhausted, attempt, err)
			}
			if err := s.sleep(ctx, session.NextBackoffDelay(s.cfg.Backoff, attempt, s.rng)); err != nil {
				return nil
			}
			continue
		}
		attempt = 0

		switch code {
		case protocol.OpInvalidSession:
			s.logger.Warn().Dur("cooldown", s.cfg.InvalidSessionCooldown).Msg("invalid session, re-identifying after cooldown")
			if err := s.sleep(ctx, s.cfg.InvalidSessionCooldown); err != nil {
				return nil
			}
		case protocol.OpReconnect:
			s.logger.Info().Msg("reconnecting to resume")
		default:
			s.logger.Warn().Str("code", code.String()).Msg("session terminated")
			return fmt.Errorf("%w: code=%d (%s)", ErrSessionTerminated, int(code), code)
		}
	}
}

func (s *Session) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsTerminated reports whether err is a permanent session end other than a
// requested stop.
func IsTerminated(err error) bool {
	return errors.Is(err, ErrSessionTerminated)
}
