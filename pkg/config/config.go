// Package config loads client configuration from a YAML/JSON file and the
// process environment.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vango-go/agents-lite/pkg/api"
	"github.com/vango-go/agents-lite/pkg/signaling"
)

// Environment variable names.
const (
	EnvConfig         = "AGENTS_CONFIG"
	EnvAPIURL         = "AGENTS_API_URL"
	EnvWebSocketURL   = "AGENTS_WS_URL"
	EnvClientKey      = "AGENTS_CLIENT_KEY"
	EnvExternalID     = "AGENTS_EXTERNAL_ID"
	EnvAPIKey         = "AGENTS_API_KEY"
	EnvBearerToken    = "AGENTS_BEARER_TOKEN"
	EnvAgentID        = "AGENTS_AGENT_ID"
	EnvRequestTimeout = "AGENTS_REQUEST_TIMEOUT"
	EnvConnectTimeout = "AGENTS_CONNECT_TIMEOUT"
	EnvLogLevel       = "AGENTS_LOG_LEVEL"
)

// Config holds client configuration.
type Config struct {
	APIURL       string `json:"api_url" yaml:"api_url"`
	WebSocketURL string `json:"ws_url" yaml:"ws_url"`
	AgentID      string `json:"agent_id" yaml:"agent_id"`

	// Credentials. The first non-empty of BearerToken, ClientKey and
	// APIKey ("user:password") is used.
	BearerToken string `json:"bearer_token" yaml:"bearer_token"`
	ClientKey   string `json:"client_key" yaml:"client_key"`
	ExternalID  string `json:"external_id" yaml:"external_id"`
	APIKey      string `json:"api_key" yaml:"api_key"`

	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout"`
	ConnectTimeout time.Duration `json:"connect_timeout" yaml:"connect_timeout"`

	// ICEServers are extra STUN/TURN URLs appended to those returned by the
	// streams API.
	ICEServers []string `json:"ice_servers" yaml:"ice_servers"`

	LogLevel  string `json:"log_level" yaml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() *Config {
	return &Config{
		APIURL:         api.DefaultBaseURL,
		WebSocketURL:   signaling.DefaultURL,
		RequestTimeout: 2 * time.Minute,
		ConnectTimeout: 30 * time.Second,
		LogLevel:       "info",
		LogFormat:      "text",
	}
}

// LoadConfig loads configuration from a YAML or JSON file and overlays the
// environment. If path is empty, it attempts to read AGENTS_CONFIG; if still
// empty, defaults plus environment are returned.
func LoadConfig(path string, getenv func(string) string) (*Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if path == "" {
		path = strings.TrimSpace(getenv(EnvConfig))
	}

	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := decode(path, data, cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch filepath.Ext(path) {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse json config: %w", err)
		}
		return nil
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse yaml config: %w", err)
		}
		return nil
	}
	if err := yaml.Unmarshal(data, cfg); err == nil {
		return nil
	}
	if err := json.Unmarshal(data, cfg); err == nil {
		return nil
	}
	return fmt.Errorf("unsupported config format: %s", filepath.Ext(path))
}

// ApplyEnv overrides fields with non-empty environment values.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if getenv == nil {
		getenv = os.Getenv
	}
	setIfPresent := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	setIfPresent(&c.APIURL, EnvAPIURL)
	setIfPresent(&c.WebSocketURL, EnvWebSocketURL)
	setIfPresent(&c.AgentID, EnvAgentID)
	setIfPresent(&c.BearerToken, EnvBearerToken)
	setIfPresent(&c.ClientKey, EnvClientKey)
	setIfPresent(&c.ExternalID, EnvExternalID)
	setIfPresent(&c.APIKey, EnvAPIKey)
	setIfPresent(&c.LogLevel, EnvLogLevel)

	var err error
	if c.RequestTimeout, err = envDurationOr(getenv, EnvRequestTimeout, c.RequestTimeout); err != nil {
		return err
	}
	if c.ConnectTimeout, err = envDurationOr(getenv, EnvConnectTimeout, c.ConnectTimeout); err != nil {
		return err
	}
	return nil
}

func envDurationOr(getenv func(string) string, key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(getenv(key))
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive duration", key, raw)
	}
	return d, nil
}

// Auth builds REST credentials from the configured secrets.
func (c *Config) Auth() (api.Auth, error) {
	switch {
	case c.BearerToken != "":
		return api.BearerAuth(c.BearerToken), nil
	case c.ClientKey != "":
		return api.ClientKeyAuth(c.ClientKey, c.ExternalID), nil
	case c.APIKey != "":
		user, pass, ok := strings.Cut(c.APIKey, ":")
		if !ok {
			return api.Auth{}, fmt.Errorf("%s must have the form user:password", EnvAPIKey)
		}
		return api.BasicAuth(user, pass), nil
	}
	return api.Auth{}, fmt.Errorf("missing credentials (set %s, %s or %s)", EnvBearerToken, EnvClientKey, EnvAPIKey)
}

// Level parses LogLevel, defaulting to info.
func (c *Config) Level() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
