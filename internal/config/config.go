package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the collaboration server configuration
type Config struct {
	Port         int    `json:"port"`
	LogLevel     string `json:"log_level"` // debug, info, warn, error, none
	LogPath      string `json:"log_path,omitempty"`
	HistoryLimit int    `json:"history_limit"`  // retained chat messages per room
	ReplayCount  int    `json:"replay_count"`   // messages replayed on join
	MaxMessage   int64  `json:"max_message"`    // max inbound frame size in bytes
	SendQueue    int    `json:"send_queue"`     // per-connection outbound buffer

	HeartbeatSeconds int `json:"heartbeat_seconds"` // transport ping period
	SweepSeconds     int `json:"sweep_seconds"`     // stale-connection sweep period
	StaleSeconds     int `json:"stale_seconds"`     // lastSeen age before eviction
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Port:             8080,
		LogLevel:         "info",
		HistoryLimit:     1000,
		ReplayCount:      50,
		MaxMessage:       8192,
		SendQueue:        256,
		HeartbeatSeconds: 30,
		SweepSeconds:     300,
		StaleSeconds:     300,
	}
}

// Load reads configuration from an optional JSON file, then applies
// environment overrides. A .env file in the working directory is loaded
// first if present.
func Load(path string) (*Config, error) {
	// A missing .env is not an error
	_ = godotenv.Load()

	config := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnv overrides config fields from the environment
func applyEnv(c *Config) {
	if v := os.Getenv("COLLAB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
	// The original deployment used WS_PORT; honored for compatibility
	if v := os.Getenv("WS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
	if v := os.Getenv("COLLAB_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("COLLAB_LOG_PATH"); v != "" {
		c.LogPath = v
	}
	if v := os.Getenv("COLLAB_HISTORY_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.HistoryLimit = n
		}
	}
}

// Validate checks the configuration for values the server cannot run with
func (c *Config) Validate() error {
	// Port 0 selects an ephemeral port
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("history_limit must be positive, got %d", c.HistoryLimit)
	}
	if c.ReplayCount < 0 {
		return fmt.Errorf("replay_count must not be negative, got %d", c.ReplayCount)
	}
	if c.SendQueue <= 0 {
		return fmt.Errorf("send_queue must be positive, got %d", c.SendQueue)
	}
	if c.HeartbeatSeconds <= 0 || c.SweepSeconds <= 0 || c.StaleSeconds <= 0 {
		return fmt.Errorf("heartbeat, sweep and stale intervals must be positive")
	}
	return nil
}

// HeartbeatInterval returns the transport ping period
func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatSeconds) * time.Second
}

// SweepInterval returns the stale-connection sweep period
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepSeconds) * time.Second
}

// StaleThreshold returns the lastSeen age past which a dead connection is evicted
func (c *Config) StaleThreshold() time.Duration {
	return time.Duration(c.StaleSeconds) * time.Second
}

// Save writes the configuration to a JSON file
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
