package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	yaml := `
server:
  port: "9000"
  gin_mode: debug
  shutdown_timeout: 5s
  allowed_origins:
    - http://localhost:5173
hub:
  default_project_id: "1"
  mailbox_size: 64
  write_wait: 2s
database:
  path: /tmp/collab.db
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != "9000" {
		t.Errorf("Server.Port = %q, want %q", cfg.Server.Port, "9000")
	}
	if cfg.Server.ShutdownTimeout != 5*time.Second {
		t.Errorf("Server.ShutdownTimeout = %v, want 5s", cfg.Server.ShutdownTimeout)
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "http://localhost:5173" {
		t.Errorf("Server.AllowedOrigins = %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Hub.DefaultProjectID != "1" {
		t.Errorf("Hub.DefaultProjectID = %q, want %q", cfg.Hub.DefaultProjectID, "1")
	}
	if cfg.Hub.MailboxSize != 64 {
		t.Errorf("Hub.MailboxSize = %d, want 64", cfg.Hub.MailboxSize)
	}
	if cfg.Database.Path != "/tmp/collab.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_COLLAB_DB", "/var/lib/collab.db")

	path := writeTempFile(t, `
database:
  path: ${TEST_COLLAB_DB}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Database.Path != "/var/lib/collab.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/var/lib/collab.db")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeTempFile(t, "server: [unclosed")
	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid yaml")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	path := writeTempFile(t, "server:\n  port: \"8081\"\n")

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Server.Port != "8081" {
		t.Errorf("Server.Port = %q, want %q", cfg.Server.Port, "8081")
	}
	if cfg.Server.GinMode != DefaultGinMode {
		t.Errorf("Server.GinMode = %q, want %q", cfg.Server.GinMode, DefaultGinMode)
	}
	if cfg.Hub.MailboxSize != DefaultMailboxSize {
		t.Errorf("Hub.MailboxSize = %d, want %d", cfg.Hub.MailboxSize, DefaultMailboxSize)
	}
	if cfg.Hub.PongWait != DefaultPongWait {
		t.Errorf("Hub.PongWait = %v, want %v", cfg.Hub.PongWait, DefaultPongWait)
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "*" {
		t.Errorf("Server.AllowedOrigins = %v, want [*]", cfg.Server.AllowedOrigins)
	}
	if cfg.Hub.DefaultProjectID != "" {
		t.Errorf("Hub.DefaultProjectID = %q, want empty", cfg.Hub.DefaultProjectID)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = "http" }, "server.port"},
		{"port out of range", func(c *Config) { c.Server.Port = "70000" }, "server.port"},
		{"bad gin mode", func(c *Config) { c.Server.GinMode = "loud" }, "server.gin_mode"},
		{"negative mailbox", func(c *Config) { c.Hub.MailboxSize = -1 }, "hub.mailbox_size"},
		{"negative message size", func(c *Config) { c.Hub.MaxMessageSize = -1 }, "hub.max_message_size"},
		{"negative write wait", func(c *Config) { c.Hub.WriteWait = -time.Second }, "hub.write_wait"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.applyDefaults()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestFromEnv(t *testing.T) {
	path := writeTempFile(t, "server:\n  port: \"9000\"\nhub:\n  mailbox_size: 32\n")
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("PORT", "9100")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("TRUST_IDENTITY_HEADERS", "true")
	t.Setenv("DEFAULT_PROJECT_ID", "")
	t.Setenv("DB_PATH", "")
	t.Setenv("GIN_MODE", "")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv failed: %v", err)
	}

	if cfg.Server.Port != "9100" {
		t.Errorf("Server.Port = %q, want env override %q", cfg.Server.Port, "9100")
	}
	if cfg.Hub.MailboxSize != 32 {
		t.Errorf("Hub.MailboxSize = %d, want 32 from file", cfg.Hub.MailboxSize)
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "http://b.test" {
		t.Errorf("Server.AllowedOrigins = %v", cfg.Server.AllowedOrigins)
	}
	if !cfg.Hub.TrustIdentityHeaders {
		t.Error("expected TrustIdentityHeaders from env")
	}
}

func TestFromEnvWithoutFile(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("PORT", "")
	t.Setenv("GIN_MODE", "")
	t.Setenv("DB_PATH", "")
	t.Setenv("DEFAULT_PROJECT_ID", "1")
	t.Setenv("ALLOWED_ORIGINS", "")
	t.Setenv("TRUST_IDENTITY_HEADERS", "")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv failed: %v", err)
	}
	if cfg.Server.Port != DefaultPort || cfg.Hub.MailboxSize != DefaultMailboxSize {
		t.Errorf("expected defaults, got port %q mailbox %d", cfg.Server.Port, cfg.Hub.MailboxSize)
	}
	if cfg.Hub.DefaultProjectID != "1" {
		t.Errorf("Hub.DefaultProjectID = %q, want 1", cfg.Hub.DefaultProjectID)
	}
}
