package config

import (
	"fmt"
	"time"

	"github.com/vovakirdan/iconchat-server/internal/proto"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	AdminAddr         string        `mapstructure:"admin_addr" yaml:"admin_addr"`
	BufferSize        int           `mapstructure:"buffer_size" yaml:"buffer_size"`
	Framing           string        `mapstructure:"framing" yaml:"framing"`
	HandshakeTimeout  time.Duration `mapstructure:"handshake_timeout" yaml:"handshake_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	OutboundQueue     int           `mapstructure:"outbound_queue" yaml:"outbound_queue"`
	DefaultIcon       string        `mapstructure:"default_icon" yaml:"default_icon"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
}

// Default returns configuration matching the reference chat server.
func Default() Config {
	return Config{
		Addr:              ":50000",
		BufferSize:        4096,
		Framing:           proto.FramingLine,
		HandshakeTimeout:  500 * time.Millisecond,
		WriteTimeout:      5 * time.Second,
		DefaultIcon:       "😎",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.AdminAddr != "" {
		c.AdminAddr = other.AdminAddr
	}
	if other.BufferSize != 0 {
		c.BufferSize = other.BufferSize
	}
	if other.Framing != "" {
		c.Framing = other.Framing
	}
	if other.HandshakeTimeout != 0 {
		c.HandshakeTimeout = other.HandshakeTimeout
	}
	if other.WriteTimeout != 0 {
		c.WriteTimeout = other.WriteTimeout
	}
	if other.OutboundQueue != 0 {
		c.OutboundQueue = other.OutboundQueue
	}
	if other.DefaultIcon != "" {
		c.DefaultIcon = other.DefaultIcon
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
}

// Validate reports the first configuration value the server cannot run with.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr is required")
	}
	if c.BufferSize <= 0 {
		return fmt.Errorf("buffer_size must be positive, got %d", c.BufferSize)
	}
	if c.Framing != proto.FramingRaw && c.Framing != proto.FramingLine {
		return fmt.Errorf("framing must be %q or %q, got %q", proto.FramingRaw, proto.FramingLine, c.Framing)
	}
	if c.HandshakeTimeout < 0 || c.WriteTimeout < 0 || c.OutboundQueue < 0 {
		return fmt.Errorf("timeouts and outbound_queue must not be negative")
	}
	if c.DefaultIcon == "" {
		return fmt.Errorf("default_icon is required")
	}
	return nil
}
