package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danmuck/gatectl/internal/admin"
	"github.com/danmuck/gatectl/internal/config"
	"github.com/danmuck/gatectl/internal/events"
	"github.com/danmuck/gatectl/internal/gateway"
	"github.com/danmuck/gatectl/internal/observability"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func runCmd() *cobra.Command {
	var (
		path    string
		aliases []string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect every configured bot and supervise its session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runGateway(ctx, path, aliases)
		},
	}
	cmd.Flags().StringVarP(&path, "config", "c", "gatectl.toml", "Config file")
	cmd.Flags().StringSliceVarP(&aliases, "alias", "a", nil, "Only run these bot aliases")
	return cmd
}

func runGateway(ctx context.Context, path string, aliases []string) error {
	logger := observability.InitLogger("gatectl")

	f, err := config.Load(path)
	if err != nil {
		return err
	}
	if lvl, ok := f.LogLevel(); ok {
		zerolog.SetGlobalLevel(lvl)
	}
	sessionCfg, err := f.SessionConfig()
	if err != nil {
		return err
	}
	regs, err := f.Registrations(aliases...)
	if err != nil {
		return err
	}
	if len(regs) == 0 {
		return errors.New("no bots selected")
	}

	gatewayURL, err := resolveGatewayURL(ctx, f, regs[0].Token, logger)
	if err != nil {
		return err
	}

	manager := gateway.NewManager(gateway.ManagerConfig{
		Session:    sessionCfg,
		Properties: gateway.DefaultProperties(ctx),
		Logger:     &logger,
	})
	for _, reg := range regs {
		reg.DefaultParser = events.Parse
		if err := installLoggingHandlers(manager.Handlers(reg.Alias), logger.With().Str("alias", reg.Alias).Logger()); err != nil {
			return err
		}
		if _, err := manager.Register(reg); err != nil {
			return fmt.Errorf("register %q: %w", reg.Alias, err)
		}
	}

	return superviseAll(ctx, manager, regs, gatewayURL, f, logger)
}

// superviseAll runs every session plus the optional admin server. Sessions
// end independently; the admin server shuts down once all of them have.
func superviseAll(ctx context.Context, manager *gateway.Manager, regs []gateway.Registration, gatewayURL string, f config.File, logger zerolog.Logger) error {
	adminCfg, adminEnabled, err := f.AdminServerConfig()
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	var bots errgroup.Group
	for _, reg := range regs {
		alias := reg.Alias
		bots.Go(func() error {
			if err := manager.Run(ctx, alias, gatewayURL); err != nil {
				msg := "session failed"
				if gateway.IsTerminated(err) {
					msg = "session terminated by gateway"
				}
				logger.Error().Err(err).Str("alias", alias).Msg(msg)
				return fmt.Errorf("session %q: %w", alias, err)
			}
			logger.Info().Str("alias", alias).Msg("session ended")
			return nil
		})
	}
	g.Go(func() error {
		defer cancel()
		return bots.Wait()
	})
	if adminEnabled {
		srv := admin.New(adminCfg, manager, observability.Component(logger, "admin"))
		g.Go(func() error { return srv.Serve(gctx) })
	}
	return g.Wait()
}

func resolveGatewayURL(ctx context.Context, f config.File, token string, logger zerolog.Logger) (string, error) {
	if f.GatewayURL != "" {
		return f.GatewayURL, nil
	}
	client := resty.New().SetTimeout(10 * time.Second)
	url, err := gateway.NewDiscovery(client, f.APIBase, f.APIVersion).URL(ctx, token)
	if err != nil {
		return "", err
	}
	logger.Info().Str("url", url).Msg("gateway url discovered")
	return url, nil
}

// installLoggingHandlers logs the payloads events.Parse produces.
func installLoggingHandlers(h *gateway.Handlers, logger zerolog.Logger) error {
	err := h.On(events.MessageCreate, func(_ context.Context, _ any, payload any) error {
		msg, ok := payload.(*events.Message)
		if !ok {
			return fmt.Errorf("unexpected payload %T", payload)
		}
		logger.Info().
			Str("event", msg.Name).
			Str("channel", msg.ChannelID).
			Str("author", msg.Author.UniqueName()).
			Bool("dm", msg.IsDM()).
			Str("content", msg.Content).
			Msg("message")
		return nil
	}, nil)
	if err != nil {
		return err
	}
	err = h.On(events.PresenceUpdate, func(_ context.Context, _ any, payload any) error {
		p, ok := payload.(*events.Presence)
		if !ok {
			return fmt.Errorf("unexpected payload %T", payload)
		}
		logger.Debug().
			Str("event", p.Name).
			Str("user", p.User.ID).
			Str("status", p.Status).
			Int("activities", len(p.Activities)).
			Msg("presence")
		return nil
	}, nil)
	if err != nil {
		return err
	}
	return h.Fallback(func(_ context.Context, _ any, payload any) error {
		if ev, ok := payload.(*events.Event); ok {
			logger.Debug().Str("event", ev.Name).Bool("guild", ev.GuildRelated).Msg("dispatch")
		}
		return nil
	}, nil)
}
