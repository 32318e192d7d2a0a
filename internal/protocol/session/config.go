package session

import "time"

// BackoffConfig defines retry backoff behavior between failed dials.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// Config defines per-session transport and reconnect tuning.
type Config struct {
	ConnectTimeout time.Duration
	// HandshakeTimeout bounds each awaited handshake reply. Zero waits forever.
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	// InvalidSessionCooldown is slept before re-identifying after opcode 9.
	InvalidSessionCooldown time.Duration
	MaxMessageSize         int64
	// MaxConnectAttempts caps consecutive dial failures. Zero is unlimited.
	MaxConnectAttempts int
	Backoff            BackoffConfig
	SecurityMode       SecurityMode
	TLS                TLSConfig
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout:         10 * time.Second,
		HandshakeTimeout:       30 * time.Second,
		WriteTimeout:           10 * time.Second,
		InvalidSessionCooldown: 7 * time.Second,
		MaxMessageSize:         10_000_000,
		Backoff: BackoffConfig{
			InitialDelay: time.Second,
			Multiplier:   2.0,
			MaxDelay:     time.Minute,
			Jitter:       true,
		},
		SecurityMode: SecurityModeDevelopment,
	}
}

// WithDefaults fills zero-valued fields from DefaultConfig. Fields where
// zero is meaningful (HandshakeTimeout, MaxConnectAttempts,
// InvalidSessionCooldown) are only defaulted when negative.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.HandshakeTimeout < 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.InvalidSessionCooldown < 0 {
		c.InvalidSessionCooldown = def.InvalidSessionCooldown
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = def.MaxMessageSize
	}
	if c.MaxConnectAttempts < 0 {
		c.MaxConnectAttempts = 0
	}
	if c.Backoff.InitialDelay <= 0 && c.Backoff.MaxDelay <= 0 && c.Backoff.Multiplier == 0 {
		c.Backoff = def.Backoff
	}
	c.SecurityMode = NormalizeSecurityMode(c.SecurityMode)
	return c
}
