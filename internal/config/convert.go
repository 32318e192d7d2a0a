package config

import (
	"fmt"
	"strings"

	"github.com/danmuck/gatectl/internal/admin"
	"github.com/danmuck/gatectl/internal/gateway"
	"github.com/danmuck/gatectl/internal/logging"
	"github.com/danmuck/gatectl/internal/protocol/session"
	"github.com/rs/zerolog"
)

func (f File) SessionConfig() (session.Config, error) {
	return f.Session.toSession()
}

// Registrations resolves bot tokens into gateway registrations. A non-empty
// only restricts the result to those aliases; naming an unknown alias is an
// error.
func (f File) Registrations(only ...string) ([]gateway.Registration, error) {
	want := make(map[string]bool, len(only))
	for _, alias := range only {
		if alias = strings.TrimSpace(alias); alias != "" {
			want[alias] = false
		}
	}

	regs := make([]gateway.Registration, 0, len(f.Bots))
	for _, bot := range f.Bots {
		if len(want) > 0 {
			if _, ok := want[bot.Alias]; !ok {
				continue
			}
			want[bot.Alias] = true
		}
		token, err := bot.ResolveToken()
		if err != nil {
			return nil, fmt.Errorf("bot %q: %w", bot.Alias, err)
		}
		regs = append(regs, gateway.Registration{
			Alias:   bot.Alias,
			Token:   token,
			Intents: bot.Intents,
		})
	}
	for alias, found := range want {
		if !found {
			return nil, fmt.Errorf("%w: %q", gateway.ErrUnknownAlias, alias)
		}
	}
	return regs, nil
}

// AdminServerConfig reports ok=false when no admin address is configured.
func (f File) AdminServerConfig() (admin.Config, bool, error) {
	addr := strings.TrimSpace(f.Admin.Addr)
	if addr == "" {
		return admin.Config{}, false, nil
	}
	token, err := f.Admin.ResolveToken()
	if err != nil {
		return admin.Config{}, false, fmt.Errorf("admin: %w", err)
	}
	return admin.Config{
		Addr:        addr,
		Token:       token,
		CORSOrigins: f.Admin.CORSOrigins,
	}, true, nil
}

func (f File) LogLevel() (zerolog.Level, bool) {
	return logging.ParseLevel(f.Log.Level)
}
