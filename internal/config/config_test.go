// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Serial.Baud != 115200 {
		t.Errorf("expected baud 115200, got %d", cfg.Serial.Baud)
	}
	if cfg.Monitor.PollInterval() != 100*time.Millisecond {
		t.Errorf("expected 100ms poll, got %v", cfg.Monitor.PollInterval())
	}
	if cfg.Monitor.RedrawInterval() != 100*time.Millisecond {
		t.Errorf("expected 100ms redraw, got %v", cfg.Monitor.RedrawInterval())
	}
	if !cfg.Serial.AutoDetect {
		t.Error("auto-detect should default on")
	}
}

func TestLoadNonexistent(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Serial.Baud != DefaultConfig().Serial.Baud {
		t.Error("missing file should yield defaults")
	}

	cfg, err = Load("")
	if err != nil || cfg == nil {
		t.Fatalf("empty path should yield defaults: %v", err)
	}
}

func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[serial]
port = "/dev/ttyUSB1"
baud = 230400
auto_detect = false

[monitor]
poll_ms = 50
sse_percent = true

[logging]
level = "debug"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Serial.Port != "/dev/ttyUSB1" || cfg.Serial.Baud != 230400 || cfg.Serial.AutoDetect {
		t.Errorf("serial not loaded: %+v", cfg.Serial)
	}
	if cfg.Monitor.PollMs != 50 || !cfg.Monitor.SSEPercent {
		t.Errorf("monitor not loaded: %+v", cfg.Monitor)
	}
	// Unset keys keep their defaults
	if cfg.Monitor.RedrawMs != 100 {
		t.Errorf("expected default redraw_ms, got %d", cfg.Monitor.RedrawMs)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected debug level, got %q", cfg.Logging.Level)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
websocket:
  url: wss://bench.local/ws
  username: admin
  insecure_skip_verify: true
monitor:
  window_seconds: 2.5
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.WebSocket.URL != "wss://bench.local/ws" || cfg.WebSocket.Username != "admin" || !cfg.WebSocket.InsecureSkipVerify {
		t.Errorf("websocket not loaded: %+v", cfg.WebSocket)
	}
	if cfg.Monitor.WindowSeconds != 2.5 {
		t.Errorf("expected window 2.5, got %v", cfg.Monitor.WindowSeconds)
	}
	if !strings.HasPrefix(cfg.String(), "websocket") {
		t.Errorf("unexpected summary %q", cfg.String())
	}
}

func TestLoadInvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[serial\nport = "), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid TOML")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PIDSCOPE_PORT", "/dev/ttyACM3")
	t.Setenv("PIDSCOPE_BAUD", "57600")
	t.Setenv("PIDSCOPE_PASSWORD", "hunter2")
	t.Setenv("PIDSCOPE_LOG_LEVEL", "warn")
	t.Setenv("PIDSCOPE_SSE_PERCENT", "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Serial.Port != "/dev/ttyACM3" || cfg.Serial.AutoDetect {
		t.Errorf("port override not applied: %+v", cfg.Serial)
	}
	if cfg.Serial.Baud != 57600 {
		t.Errorf("baud override not applied: %d", cfg.Serial.Baud)
	}
	if cfg.WebSocket.Password != "hunter2" {
		t.Error("password override not applied")
	}
	if !cfg.Monitor.SSEPercent {
		t.Error("sse percent override not applied")
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("log level override not applied: %q", cfg.Logging.Level)
	}
	if cfg.String() != "serial /dev/ttyACM3 @ 57600 baud" {
		t.Errorf("unexpected summary %q", cfg.String())
	}
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Serial.Baud = 1234
	cfg.Serial.VID = "xyz"
	cfg.WebSocket.URL = "http://example.com"
	cfg.Monitor.PollMs = 0
	cfg.Logging.Level = "loud"

	err := cfg.Validate()
	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if len(verrs) != 5 {
		t.Errorf("expected 5 errors, got %d: %v", len(verrs), err)
	}
	for _, field := range []string{"serial.baud", "serial.vid", "websocket.url", "monitor.poll_ms", "logging.level"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("missing error for %s", field)
		}
	}
}

func TestFindConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PIDSCOPE_CONFIG_DIR", dir)
	t.Chdir(t.TempDir())

	if got := FindConfigFile(); got != "" {
		t.Errorf("expected no config, got %q", got)
	}

	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}
	if got := FindConfigFile(); got != path {
		t.Errorf("expected %q, got %q", path, got)
	}
}

func TestLoaderWatchReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[monitor]\npoll_ms = 100\n"), 0644); err != nil {
		t.Fatal(err)
	}

	l := NewLoader(path)
	defer l.Close()
	if _, err := l.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	changed := make(chan *Config, 1)
	l.OnChange(func(c *Config) {
		select {
		case changed <- c:
		default:
		}
	})
	if err := l.Watch(); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	if err := os.WriteFile(path, []byte("[monitor]\npoll_ms = 250\n"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case c := <-changed:
		if c.Monitor.PollMs != 250 {
			t.Errorf("expected reloaded poll_ms 250, got %d", c.Monitor.PollMs)
		}
		if l.Config().Monitor.PollMs != 250 {
			t.Error("loader config not updated")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestLoaderReloadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(""), 0644); err != nil {
		t.Fatal(err)
	}
	l := NewLoader(path)
	defer l.Close()
	if _, err := l.Load(); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, []byte("[serial]\nbaud = 7\n"), 0644); err != nil {
		t.Fatal(err)
	}
	l.reload()

	select {
	case err := <-l.Errors():
		if !strings.Contains(err.Error(), "serial.baud") {
			t.Errorf("unexpected error: %v", err)
		}
	default:
		t.Fatal("expected reload error")
	}
	if l.Config().Serial.Baud != 115200 {
		t.Error("invalid reload must keep previous config")
	}
}

func TestWatchWithoutPath(t *testing.T) {
	l := NewLoader("")
	defer l.Close()
	if err := l.Watch(); err == nil {
		t.Error("expected error watching empty path")
	}
}
