package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"

	defaultPort = 2333
	defaultEnv  = "development"

	defaultHeartbeatSeconds     = 30
	defaultEventHistorySize     = 10000
	defaultNotificationsPerUser = 50
	defaultIdleSweepSeconds     = 60
)

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port           int           `yaml:"port"`
	Env            string        `yaml:"env"` // "development" | "production"
	RedisURL       string        `yaml:"redis_url"`
	JWTSecret      string        `yaml:"jwt_secret"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	Gateway        GatewayConfig `yaml:"gateway"`
}

// GatewayConfig tunes the realtime gateway.
type GatewayConfig struct {
	HeartbeatSeconds     int `yaml:"heartbeat_seconds"`
	EventHistorySize     int `yaml:"event_history_size"`
	NotificationsPerUser int `yaml:"notifications_per_user"`
	// IdleTimeoutSeconds > 0 enables the idle-session sweep: sessions with no
	// activity for this long are disconnected by the server.
	IdleTimeoutSeconds int `yaml:"idle_timeout_seconds"`
	IdleSweepSeconds   int `yaml:"idle_sweep_seconds"`
}

// Load reads the YAML config at path. A missing file yields defaults so the
// server can boot with zero configuration.
func Load(path string) (*AppConfig, error) {
	cfg := &AppConfig{}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *AppConfig) applyDefaults() {
	if c.Port <= 0 {
		c.Port = defaultPort
	}
	if c.Env == "" {
		c.Env = defaultEnv
	}
	if c.Gateway.HeartbeatSeconds <= 0 {
		c.Gateway.HeartbeatSeconds = defaultHeartbeatSeconds
	}
	if c.Gateway.EventHistorySize <= 0 {
		c.Gateway.EventHistorySize = defaultEventHistorySize
	}
	if c.Gateway.NotificationsPerUser <= 0 {
		c.Gateway.NotificationsPerUser = defaultNotificationsPerUser
	}
	if c.Gateway.IdleSweepSeconds <= 0 {
		c.Gateway.IdleSweepSeconds = defaultIdleSweepSeconds
	}
}

// IsDev reports whether the app runs in development mode.
func (c *AppConfig) IsDev() bool { return c.Env != "production" }

// HeartbeatInterval returns the per-connection heartbeat period.
func (c *AppConfig) HeartbeatInterval() time.Duration {
	return time.Duration(c.Gateway.HeartbeatSeconds) * time.Second
}

// IdleTimeout returns the idle-session threshold, zero when the sweep is disabled.
func (c *AppConfig) IdleTimeout() time.Duration {
	return time.Duration(c.Gateway.IdleTimeoutSeconds) * time.Second
}

// IdleSweepInterval returns how often the idle sweep runs.
func (c *AppConfig) IdleSweepInterval() time.Duration {
	return time.Duration(c.Gateway.IdleSweepSeconds) * time.Second
}
