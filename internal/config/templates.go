package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const templateHeader = "# gatectl configuration\n# Set token or token_env per bot; gateway_url skips REST discovery.\n\n"

// Default is the starting point written by `gatectl config init`.
func Default() File {
	jitter := true
	return File{
		APIVersion: 10,
		Log:        LogConfig{Level: "info"},
		Session: SessionConfig{
			ConnectTimeout:         "10s",
			HandshakeTimeout:       "30s",
			WriteTimeout:           "10s",
			InvalidSessionCooldown: "7s",
			MaxMessageSize:         10_000_000,
			SecurityMode:           "production",
			Backoff: BackoffConfig{
				Initial:    "1s",
				Max:        "1m",
				Multiplier: 2,
				Jitter:     &jitter,
			},
		},
		Admin: AdminConfig{
			Addr:        "127.0.0.1:7070",
			TokenEnv:    "GATECTL_ADMIN_TOKEN",
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Bots: []BotConfig{
			{Alias: "main", TokenEnv: "GATECTL_BOT_TOKEN", Intents: 33281},
		},
	}
}

// Template renders Default in the format implied by kind ("toml" or "yaml").
func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "toml":
		out, err := toml.Marshal(Default())
		if err != nil {
			return "", err
		}
		return templateHeader + string(out), nil
	case "yaml", "yml":
		out, err := yaml.Marshal(Default())
		if err != nil {
			return "", err
		}
		return templateHeader + string(out), nil
	default:
		return "", fmt.Errorf("unknown config format: %s", kind)
	}
}

func WriteTemplate(path string, overwrite bool) error {
	kind := "toml"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		kind = "yaml"
	}
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}
