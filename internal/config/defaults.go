package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultPort            = "8080"
	DefaultGinMode         = "release"
	DefaultShutdownTimeout = 10 * time.Second
	DefaultMailboxSize     = 256
	DefaultMaxMessageSize  = 512 * 1024
	DefaultWriteWait       = 10 * time.Second
	DefaultPongWait        = 60 * time.Second
)

// DefaultAllowedOrigins accepts every origin.
var DefaultAllowedOrigins = []string{"*"}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = DefaultPort
	}
	if c.Server.GinMode == "" {
		c.Server.GinMode = DefaultGinMode
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = append([]string(nil), DefaultAllowedOrigins...)
	}

	if c.Hub.MailboxSize == 0 {
		c.Hub.MailboxSize = DefaultMailboxSize
	}
	if c.Hub.MaxMessageSize == 0 {
		c.Hub.MaxMessageSize = DefaultMaxMessageSize
	}
	if c.Hub.WriteWait == 0 {
		c.Hub.WriteWait = DefaultWriteWait
	}
	if c.Hub.PongWait == 0 {
		c.Hub.PongWait = DefaultPongWait
	}
}
