package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/gatectl/internal/gateway"
	"github.com/danmuck/gatectl/internal/logging"
	"github.com/danmuck/gatectl/internal/protocol/session"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// File is the on-disk configuration for one gatectl process.
type File struct {
	// GatewayURL skips REST discovery when set.
	GatewayURL string        `toml:"gateway_url,omitempty" yaml:"gateway_url,omitempty"`
	APIBase    string        `toml:"api_base,omitempty" yaml:"api_base,omitempty"`
	APIVersion int           `toml:"api_version,omitempty" yaml:"api_version,omitempty"`
	Log        LogConfig     `toml:"log" yaml:"log"`
	Session    SessionConfig `toml:"session" yaml:"session"`
	Admin      AdminConfig   `toml:"admin" yaml:"admin"`
	Bots       []BotConfig   `toml:"bots" yaml:"bots"`
}

type LogConfig struct {
	Level string `toml:"level,omitempty" yaml:"level,omitempty"`
}

// SessionConfig mirrors session.Config with durations as strings. Empty
// strings keep the defaults; "0s" is a real value.
type SessionConfig struct {
	ConnectTimeout         string        `toml:"connect_timeout,omitempty" yaml:"connect_timeout,omitempty"`
	HandshakeTimeout       string        `toml:"handshake_timeout,omitempty" yaml:"handshake_timeout,omitempty"`
	WriteTimeout           string        `toml:"write_timeout,omitempty" yaml:"write_timeout,omitempty"`
	InvalidSessionCooldown string        `toml:"invalid_session_cooldown,omitempty" yaml:"invalid_session_cooldown,omitempty"`
	MaxMessageSize         int64         `toml:"max_message_size,omitempty" yaml:"max_message_size,omitempty"`
	MaxConnectAttempts     int           `toml:"max_connect_attempts,omitempty" yaml:"max_connect_attempts,omitempty"`
	SecurityMode           string        `toml:"security_mode,omitempty" yaml:"security_mode,omitempty"`
	Backoff                BackoffConfig `toml:"backoff" yaml:"backoff"`
	TLS                    TLSConfig     `toml:"tls" yaml:"tls"`
}

type BackoffConfig struct {
	Initial    string  `toml:"initial,omitempty" yaml:"initial,omitempty"`
	Max        string  `toml:"max,omitempty" yaml:"max,omitempty"`
	Multiplier float64 `toml:"multiplier,omitempty" yaml:"multiplier,omitempty"`
	Jitter     *bool   `toml:"jitter,omitempty" yaml:"jitter,omitempty"`
}

type TLSConfig struct {
	CAFile             string `toml:"ca_file,omitempty" yaml:"ca_file,omitempty"`
	CertFile           string `toml:"cert_file,omitempty" yaml:"cert_file,omitempty"`
	KeyFile            string `toml:"key_file,omitempty" yaml:"key_file,omitempty"`
	ServerName         string `toml:"server_name,omitempty" yaml:"server_name,omitempty"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify,omitempty" yaml:"insecure_skip_verify,omitempty"`
}

// AdminConfig enables the HTTP control surface when Addr is set.
type AdminConfig struct {
	Addr        string   `toml:"addr,omitempty" yaml:"addr,omitempty"`
	Token       string   `toml:"token,omitempty" yaml:"token,omitempty"`
	TokenEnv    string   `toml:"token_env,omitempty" yaml:"token_env,omitempty"`
	CORSOrigins []string `toml:"cors_origins,omitempty" yaml:"cors_origins,omitempty"`
}

type BotConfig struct {
	Alias    string `toml:"alias" yaml:"alias"`
	Token    string `toml:"token,omitempty" yaml:"token,omitempty"`
	TokenEnv string `toml:"token_env,omitempty" yaml:"token_env,omitempty"`
	Intents  int    `toml:"intents,omitempty" yaml:"intents,omitempty"`
}

// Load reads path as TOML, or YAML for .yaml/.yml, fills defaults and
// validates the result.
func Load(path string) (File, error) {
	var f File
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return File{}, fmt.Errorf("config load failed (%s): %w", path, err)
		}
		if err := yaml.Unmarshal(data, &f); err != nil {
			return File{}, fmt.Errorf("config parse failed (%s): %w", path, err)
		}
	default:
		meta, err := toml.DecodeFile(path, &f)
		if err != nil {
			return File{}, fmt.Errorf("config parse failed (%s): %w", path, err)
		}
		for _, key := range meta.Undecoded() {
			log.Warn().Str("path", path).Str("key", key.String()).Msg("unknown config key ignored")
		}
	}
	f.applyDefaults()
	if err := Validate(f); err != nil {
		return File{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return f, nil
}

func (f *File) applyDefaults() {
	f.GatewayURL = strings.TrimSpace(f.GatewayURL)
	if strings.TrimSpace(f.APIBase) == "" {
		f.APIBase = gateway.DefaultAPIBase
	}
	if f.APIVersion == 0 {
		f.APIVersion = gateway.DefaultAPIVersion
	}
	for i := range f.Bots {
		f.Bots[i].Alias = strings.TrimSpace(f.Bots[i].Alias)
	}
}

func Validate(f File) error {
	if f.APIVersion < 0 {
		return fmt.Errorf("api_version must be positive")
	}
	if f.Log.Level != "" {
		if _, ok := logging.ParseLevel(f.Log.Level); !ok {
			return fmt.Errorf("unknown log level %q", f.Log.Level)
		}
	}
	cfg, err := f.Session.toSession()
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}
	if f.GatewayURL != "" {
		if err := cfg.ValidateClientTransport(f.GatewayURL); err != nil {
			return fmt.Errorf("gateway_url: %w", err)
		}
	}
	if len(f.Bots) == 0 {
		return fmt.Errorf("at least one [[bots]] entry is required")
	}
	seen := make(map[string]struct{}, len(f.Bots))
	for i, bot := range f.Bots {
		if err := ValidateBot(bot); err != nil {
			return fmt.Errorf("bots[%d] invalid: %w", i, err)
		}
		if _, ok := seen[bot.Alias]; ok {
			return fmt.Errorf("bots[%d] invalid: duplicate alias %q", i, bot.Alias)
		}
		seen[bot.Alias] = struct{}{}
	}
	return nil
}

func ValidateBot(bot BotConfig) error {
	if strings.TrimSpace(bot.Alias) == "" {
		return fmt.Errorf("alias is required")
	}
	if strings.TrimSpace(bot.Token) == "" && strings.TrimSpace(bot.TokenEnv) == "" {
		return fmt.Errorf("token or token_env is required")
	}
	if bot.Intents < 0 {
		return fmt.Errorf("intents must not be negative")
	}
	return nil
}

// ResolveToken prefers the literal token and falls back to token_env.
func (b BotConfig) ResolveToken() (string, error) {
	return resolveSecret(b.Token, b.TokenEnv)
}

func (a AdminConfig) ResolveToken() (string, error) {
	if strings.TrimSpace(a.Token) == "" && strings.TrimSpace(a.TokenEnv) == "" {
		return "", nil
	}
	return resolveSecret(a.Token, a.TokenEnv)
}

func resolveSecret(literal, env string) (string, error) {
	if v := strings.TrimSpace(literal); v != "" {
		return v, nil
	}
	env = strings.TrimSpace(env)
	if env == "" {
		return "", fmt.Errorf("no token configured")
	}
	v := strings.TrimSpace(os.Getenv(env))
	if v == "" {
		return "", fmt.Errorf("environment variable %s is empty", env)
	}
	return v, nil
}

func (s SessionConfig) toSession() (session.Config, error) {
	cfg := session.DefaultConfig()
	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"connect_timeout", s.ConnectTimeout, &cfg.ConnectTimeout},
		{"handshake_timeout", s.HandshakeTimeout, &cfg.HandshakeTimeout},
		{"write_timeout", s.WriteTimeout, &cfg.WriteTimeout},
		{"invalid_session_cooldown", s.InvalidSessionCooldown, &cfg.InvalidSessionCooldown},
		{"backoff.initial", s.Backoff.Initial, &cfg.Backoff.InitialDelay},
		{"backoff.max", s.Backoff.Max, &cfg.Backoff.MaxDelay},
	}
	for _, d := range durations {
		if strings.TrimSpace(d.raw) == "" {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return session.Config{}, fmt.Errorf("parse %s: %w", d.key, err)
		}
		if v < 0 {
			return session.Config{}, fmt.Errorf("%s must not be negative", d.key)
		}
		*d.dst = v
	}
	if s.MaxMessageSize < 0 {
		return session.Config{}, fmt.Errorf("max_message_size must not be negative")
	}
	if s.MaxMessageSize > 0 {
		cfg.MaxMessageSize = s.MaxMessageSize
	}
	if s.MaxConnectAttempts < 0 {
		return session.Config{}, fmt.Errorf("max_connect_attempts must not be negative")
	}
	cfg.MaxConnectAttempts = s.MaxConnectAttempts
	if s.Backoff.Multiplier != 0 {
		if s.Backoff.Multiplier < 1 {
			return session.Config{}, fmt.Errorf("backoff.multiplier must be at least 1")
		}
		cfg.Backoff.Multiplier = s.Backoff.Multiplier
	}
	if s.Backoff.Jitter != nil {
		cfg.Backoff.Jitter = *s.Backoff.Jitter
	}
	if mode := strings.TrimSpace(s.SecurityMode); mode != "" {
		cfg.SecurityMode = session.SecurityMode(strings.ToLower(mode))
	}
	cfg.TLS = session.TLSConfig{
		CAFile:             strings.TrimSpace(s.TLS.CAFile),
		CertFile:           strings.TrimSpace(s.TLS.CertFile),
		KeyFile:            strings.TrimSpace(s.TLS.KeyFile),
		ServerName:         strings.TrimSpace(s.TLS.ServerName),
		InsecureSkipVerify: s.TLS.InsecureSkipVerify,
	}
	if err := cfg.ValidateSecurity(); err != nil {
		return session.Config{}, err
	}
	return cfg, nil
}
