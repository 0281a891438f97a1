// Package config loads the hub's runtime configuration from an optional YAML
// file and environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Hub      HubConfig      `yaml:"hub"`
	Database DatabaseConfig `yaml:"database"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            string        `yaml:"port"`
	GinMode         string        `yaml:"gin_mode"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

// HubConfig holds collaboration hub settings.
type HubConfig struct {
	// DefaultProjectID is used when a handshake carries no project ID.
	// Empty means such handshakes are refused.
	DefaultProjectID     string        `yaml:"default_project_id"`
	MailboxSize          int           `yaml:"mailbox_size"`
	MaxMessageSize       int64         `yaml:"max_message_size"`
	WriteWait            time.Duration `yaml:"write_wait"`
	PongWait             time.Duration `yaml:"pong_wait"`
	TrustIdentityHeaders bool          `yaml:"trust_identity_headers"`
}

// DatabaseConfig holds the audit log settings. An empty Path disables it.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand ${VAR} environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	return &cfg, nil
}

// LoadWithDefaults loads config and applies default values.
func LoadWithDefaults(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// FromEnv builds the configuration used by the server binary. When CONFIG_PATH
// is set the YAML file is loaded first; environment variables then override
// individual fields.
func FromEnv() (*Config, error) {
	cfg := &Config{}
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		loaded, err := LoadWithDefaults(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg.applyDefaults()
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.GinMode = getEnv("GIN_MODE", c.Server.GinMode)
	c.Database.Path = getEnv("DB_PATH", c.Database.Path)
	c.Hub.DefaultProjectID = getEnv("DEFAULT_PROJECT_ID", c.Hub.DefaultProjectID)

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		c.Server.AllowedOrigins = parseOrigins(origins)
	}
	if v := os.Getenv("TRUST_IDENTITY_HEADERS"); v != "" {
		if trust, err := strconv.ParseBool(v); err == nil {
			c.Hub.TrustIdentityHeaders = trust
		}
	}
}

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}
