// Package config holds the settings shared by the server, the formatter
// and the client tool.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

type Config struct {
	// Server address; the server listens on Port on all interfaces.
	Host string `json:"host"`
	Port int    `json:"port"`

	// Disk image served by the server and written by mkfs.
	Image string `json:"image"`

	// Client wait for one reply.
	TimeoutMs int `json:"timeout_ms"`

	// util.DPrintf threshold.
	Debug uint64 `json:"debug"`

	// Image geometry used by mkfs.
	NumInodes uint64 `json:"num_inodes"`
	NumData   uint64 `json:"num_data"`
}

func Default() Config {
	return Config{
		Host:      "localhost",
		Port:      10000,
		TimeoutMs: 5000,
		Debug:     0,
		NumInodes: 32,
		NumData:   32,
	}
}

// Load reads a JSON config on top of the defaults. An empty path returns
// the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port out of range: %d", c.Port)
	}
	if c.TimeoutMs <= 0 {
		return fmt.Errorf("timeout_ms must be positive, got %d", c.TimeoutMs)
	}
	if c.NumInodes == 0 || c.NumInodes > 1<<31-1 {
		return fmt.Errorf("num_inodes out of range: %d", c.NumInodes)
	}
	if c.NumData == 0 || c.NumData > 1<<31-1 {
		return fmt.Errorf("num_data out of range: %d", c.NumData)
	}
	return nil
}

func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}
