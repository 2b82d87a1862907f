package supervisor

import (
	"errors"
	"time"
)

// Config holds the supervisor's timing knobs.
type Config struct {
	ScanTimeout      time.Duration `yaml:"scan_timeout"`
	DiscoveryBackoff time.Duration `yaml:"discovery_backoff"`
	ReconnectBackoff time.Duration `yaml:"reconnect_backoff"`
	ConnectTimeout   time.Duration `yaml:"connect_timeout"`
	// MaxListen is reported when a session starts streaming. Sessions are not
	// ended when it elapses.
	MaxListen    time.Duration `yaml:"max_listen"`
	NotifyBuffer int           `yaml:"notify_buffer"`
}

func (c *Config) ApplyDefaults() {
	if c.ScanTimeout == 0 {
		c.ScanTimeout = 5 * time.Second
	}
	if c.DiscoveryBackoff == 0 {
		c.DiscoveryBackoff = 5 * time.Second
	}
	if c.ReconnectBackoff == 0 {
		c.ReconnectBackoff = 5 * time.Second
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 15 * time.Second
	}
	if c.MaxListen == 0 {
		c.MaxListen = 24 * time.Hour
	}
	if c.NotifyBuffer == 0 {
		c.NotifyBuffer = 64
	}
}

func (c *Config) Validate() error {
	if c.ScanTimeout <= 0 {
		return errors.New("scan_timeout must be positive")
	}
	if c.DiscoveryBackoff < 0 || c.ReconnectBackoff < 0 {
		return errors.New("backoff intervals must not be negative")
	}
	if c.ConnectTimeout <= 0 {
		return errors.New("connect_timeout must be positive")
	}
	if c.MaxListen < 0 {
		return errors.New("max_listen must not be negative")
	}
	if c.NotifyBuffer < 0 {
		return errors.New("notify_buffer must not be negative")
	}
	return nil
}
