// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config handles configuration loading, validation and hot reload
// for pidscope.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config is the complete pidscope configuration
type Config struct {
	Serial    SerialConfig    `toml:"serial" yaml:"serial"`
	WebSocket WebSocketConfig `toml:"websocket" yaml:"websocket"`
	Monitor   MonitorConfig   `toml:"monitor" yaml:"monitor"`
	Recording RecordingConfig `toml:"recording" yaml:"recording"`
	Logging   LoggingConfig   `toml:"logging" yaml:"logging"`
}

// SerialConfig selects and opens the controller's serial port
type SerialConfig struct {
	Port       string `toml:"port" yaml:"port"`
	Baud       int    `toml:"baud" yaml:"baud"`
	AutoDetect bool   `toml:"auto_detect" yaml:"auto_detect"`
	// USB IDs preferred by auto-detection, as hex strings
	VID string `toml:"vid" yaml:"vid"`
	PID string `toml:"pid" yaml:"pid"`
}

// WebSocketConfig reaches a controller bridged over WebSocket
type WebSocketConfig struct {
	URL                string `toml:"url" yaml:"url"`
	Username           string `toml:"username" yaml:"username"`
	Password           string `toml:"password" yaml:"password"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify" yaml:"insecure_skip_verify"`
}

// MonitorConfig tunes the live monitor
type MonitorConfig struct {
	PollMs        int     `toml:"poll_ms" yaml:"poll_ms"`
	RedrawMs      int     `toml:"redraw_ms" yaml:"redraw_ms"`
	WindowSeconds float64 `toml:"window_seconds" yaml:"window_seconds"`
	SSEPercent    bool    `toml:"sse_percent" yaml:"sse_percent"`
	QueueSize     int     `toml:"queue_size" yaml:"queue_size"`
	LogRX         bool    `toml:"log_rx" yaml:"log_rx"`
}

// RecordingConfig controls where captures and recordings are written
type RecordingConfig struct {
	Directory  string `toml:"directory" yaml:"directory"`
	SQLitePath string `toml:"sqlite_path" yaml:"sqlite_path"`
}

// LoggingConfig controls diagnostic logging
type LoggingConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
	File   string `toml:"file" yaml:"file"`
}

// PollInterval returns the monitor's queue drain cadence
func (m MonitorConfig) PollInterval() time.Duration {
	return time.Duration(m.PollMs) * time.Millisecond
}

// RedrawInterval returns the response window redraw cadence
func (m MonitorConfig) RedrawInterval() time.Duration {
	return time.Duration(m.RedrawMs) * time.Millisecond
}

// DefaultConfig returns the built-in configuration
func DefaultConfig() *Config {
	return &Config{
		Serial: SerialConfig{
			Baud:       115200,
			AutoDetect: true,
			VID:        "0483",
			PID:        "5740",
		},
		Monitor: MonitorConfig{
			PollMs:        100,
			RedrawMs:      100,
			WindowSeconds: 5.0,
			QueueSize:     256,
			LogRX:         true,
		},
		Recording: RecordingConfig{
			Directory: ".",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Dir returns the per-user pidscope configuration directory
func Dir() string {
	if v := os.Getenv("PIDSCOPE_CONFIG_DIR"); v != "" {
		return v
	}
	base, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "pidscope")
}

// SupportedFormats lists the accepted configuration file names
func SupportedFormats() []string {
	return []string{"config.toml", "config.yaml", "config.yml"}
}

// FindConfigFile returns the first existing configuration file, checking
// the working directory before the user configuration directory.
func FindConfigFile() string {
	candidates := []string{"pidscope.toml", "pidscope.yaml", "pidscope.yml"}
	for _, name := range SupportedFormats() {
		candidates = append(candidates, filepath.Join(Dir(), name))
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// ApplyEnvOverrides applies PIDSCOPE_* environment variables
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("PIDSCOPE_PORT"); v != "" {
		c.Serial.Port = v
		c.Serial.AutoDetect = false
	}
	if v := os.Getenv("PIDSCOPE_BAUD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Serial.Baud = n
		}
	}
	if v := os.Getenv("PIDSCOPE_URL"); v != "" {
		c.WebSocket.URL = v
	}
	if v := os.Getenv("PIDSCOPE_USERNAME"); v != "" {
		c.WebSocket.Username = v
	}
	// Passwords come from the environment so they stay out of config files
	if v := os.Getenv("PIDSCOPE_PASSWORD"); v != "" {
		c.WebSocket.Password = v
	}
	if v := os.Getenv("PIDSCOPE_SSE_PERCENT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Monitor.SSEPercent = b
		}
	}
	if v := os.Getenv("PIDSCOPE_SQLITE"); v != "" {
		c.Recording.SQLitePath = v
	}
	if v := os.Getenv("PIDSCOPE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("PIDSCOPE_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
}

// Clone returns a copy of the configuration
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String summarizes the connection settings
func (c *Config) String() string {
	if c.WebSocket.URL != "" {
		return fmt.Sprintf("websocket %s", c.WebSocket.URL)
	}
	if c.Serial.Port == "" {
		return fmt.Sprintf("serial auto @ %d baud", c.Serial.Baud)
	}
	return fmt.Sprintf("serial %s @ %d baud", c.Serial.Port, c.Serial.Baud)
}
