package config

import (
	"errors"
	"fmt"
	"strconv"
)

// Validate checks that all values are usable.
func (c *Config) Validate() error {
	port, err := strconv.Atoi(c.Server.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %q", c.Server.Port)
	}

	switch c.Server.GinMode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("server.gin_mode must be debug, release or test, got %q", c.Server.GinMode)
	}

	if c.Server.ShutdownTimeout < 0 {
		return errors.New("server.shutdown_timeout must be >= 0")
	}

	if c.Hub.MailboxSize < 1 {
		return errors.New("hub.mailbox_size must be >= 1")
	}
	if c.Hub.MaxMessageSize < 1 {
		return errors.New("hub.max_message_size must be >= 1")
	}
	if c.Hub.WriteWait <= 0 {
		return errors.New("hub.write_wait must be > 0")
	}
	if c.Hub.PongWait <= 0 {
		return errors.New("hub.pong_wait must be > 0")
	}

	return nil
}
