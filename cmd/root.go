// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/Thermoquad/pidscope/internal/config"
	"github.com/Thermoquad/pidscope/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	// Serial connection flags
	portName   string
	baudRate   int
	autoDetect bool

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Settings flags
	configPath string
	envFile    string
	logLevel   string
	logFile    string
)

// settings is the effective configuration after file, environment and flags
var (
	settings   = config.DefaultConfig()
	logger     = slog.Default()
	logCloser  io.Closer
	loadedPath string
)

var rootCmd = &cobra.Command{
	Use:   "pidscope",
	Short: "PID Controller Telemetry Analyzer",
	Long: `pidscope - A CLI tool for monitoring PID controller telemetry and measuring
step response quality.

The controller streams line-delimited text: target/actual pairs, timestamped
sample batches (B,...), gain reports (PID=...) and autotune status (TUNE=...).
pidscope decodes the stream and derives overshoot, settling time, rise time
and steady-state error, both live and over a captured response window.

Connection modes:
  Serial:    --port /dev/ttyACM0 [--baud 115200]
  Auto:      --auto (pick the controller by USB VID/PID)
  WebSocket: --url ws://host/path [--username user]

Settings are read from pidscope.toml / pidscope.yaml in the working directory
or the user config directory, then PIDSCOPE_* environment variables (a .env
file is loaded first), then flags.

For WebSocket authentication, the password is read from the PIDSCOPE_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:           "0.3.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadSettings,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			logCloser.Close()
		}
	},
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")
	rootCmd.PersistentFlags().BoolVar(&autoDetect, "auto", false, "Auto-detect the controller's serial port")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Settings flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (TOML or YAML)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file loaded before PIDSCOPE_* overrides")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to file instead of stderr")
}

// loadSettings resolves configuration for every subcommand
func loadSettings(cmd *cobra.Command, args []string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	path := configPath
	if path == "" {
		path = config.FindConfigFile()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	loadedPath = path

	applyFlagOverrides(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	settings = cfg

	l, closer, err := logging.Setup(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File, os.Stderr)
	if err != nil {
		return err
	}
	logger, logCloser = l, closer
	if loadedPath != "" {
		logger.Debug("configuration loaded", "path", loadedPath)
	}
	return nil
}

// applyFlagOverrides copies explicitly set flags over file and env values
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Serial.Port = portName
		cfg.Serial.AutoDetect = false
	}
	if flags.Changed("baud") {
		cfg.Serial.Baud = baudRate
	}
	if flags.Changed("auto") {
		cfg.Serial.AutoDetect = autoDetect
	}
	if flags.Changed("url") {
		cfg.WebSocket.URL = wsURL
	}
	if flags.Changed("username") {
		cfg.WebSocket.Username = wsUsername
	}
	if flags.Changed("no-ssl-verify") {
		cfg.WebSocket.InsecureSkipVerify = wsNoSSLVerify
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = logLevel
	}
	if flags.Changed("log-file") {
		cfg.Logging.File = logFile
	}
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// quietLogs stops stderr logging while a full-screen TUI owns the terminal.
// A configured log file keeps receiving entries.
func quietLogs() error {
	if settings.Logging.File != "" {
		return nil
	}
	l, closer, err := logging.Setup(settings.Logging.Level, settings.Logging.Format, "", io.Discard)
	if err != nil {
		return err
	}
	logger, logCloser = l, closer
	return nil
}
