// Package config loads the gateway's single YAML configuration file.
// A handful of secrets can be overridden from the environment so deployments
// keep them out of the file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Inference InferenceConfig `yaml:"inference"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	// Host and Port are shared by REST, the WebSocket frame endpoint and the
	// UDP frame listener.
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// WSPath is the upgrade endpoint for the frame stream, e.g. "/ws".
	WSPath string `yaml:"ws_path"`

	// IdleTimeoutSeconds is the per-connection read deadline, refreshed on
	// every inbound message.
	IdleTimeoutSeconds int `yaml:"idle_timeout_seconds"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type AuthConfig struct {
	// Secret signs bearer tokens. GATEWAY_JWT_SECRET overrides it.
	Secret string `yaml:"secret"`
}

type InferenceConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	PoolSize      int    `yaml:"pool_size"`
	AllowDegraded bool   `yaml:"allow_degraded"`
}

type LogConfig struct {
	Dir string `yaml:"dir"`
}

// Load reads and validates the config file at path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg := &Config{}
	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if secret := os.Getenv("GATEWAY_JWT_SECRET"); secret != "" {
		cfg.Auth.Secret = secret
	}
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.WSPath == "" {
		c.Server.WSPath = "/ws"
	}
	if c.Server.IdleTimeoutSeconds <= 0 {
		c.Server.IdleTimeoutSeconds = 30
	}
	if c.Database.Path == "" {
		c.Database.Path = "gateway.db"
	}
	if c.Log.Dir == "" {
		c.Log.Dir = "logs"
	}
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Auth.Secret == "" {
		return fmt.Errorf("auth secret required (config auth.secret or GATEWAY_JWT_SECRET)")
	}
	if c.Inference.Host == "" || c.Inference.Port <= 0 {
		return fmt.Errorf("inference host and port required")
	}
	return nil
}

// ListenAddr is the host:port shared by the HTTP and UDP listeners.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// InferenceTarget is the downstream gRPC address.
func (c *Config) InferenceTarget() string {
	return fmt.Sprintf("%s:%d", c.Inference.Host, c.Inference.Port)
}
