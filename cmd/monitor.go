// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Thermoquad/pidscope/internal/config"
	"github.com/Thermoquad/pidscope/pkg/response"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	monitorWindowSeconds float64
	monitorSSEPercent    bool
	monitorExportDir     string
	monitorNoWatch       bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Interactive TUI for live step response analysis",
	Long: `Monitor a PID controller's telemetry via an interactive terminal UI.

The monitor plots the live target/actual stream, tracks each target step
(overshoot, settling time, steady-state error) and lets you capture a
response window for detailed analysis between two cursors.

Features:
  - Live sparkline of target and actual with RX rate
  - Step tracking with settling band and steady-state error
  - Response window capture with pause, cursors A/B and markers
  - Windowed metrics: settling, 10-90% rise, peak, %OS, SSE
  - Export of the window as CSV, CBOR capture and PNG chart
  - Live recording to CSV or SQLite (--record, --sqlite)
  - Automatic reconnection on connection loss
  - Config file hot reload (SSE mode, default window length)

Keys:
  w / W      open window (default length / untimed)
  d          set window length      c  close window
  space      pause / resume         s  save window
  a / b      place cursor A / B at a typed time
  A / B      arm cursor A / B for mouse clicks
  m          add marker at a typed time
  M / x      remove last marker / clear markers
  up/down    select marker          left/right  move selected marker
  t          start a step episode toward a typed target
  %          toggle SSE percent     r  reset
  q          quit

With the window paused or finished, click the plot to drop markers or place
the armed cursor; drag to move them; right-click removes the last marker.

Supports both serial and WebSocket connections.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().Float64Var(&monitorWindowSeconds, "window", 0, "Default response window length in seconds (config: monitor.window_seconds)")
	monitorCmd.Flags().BoolVar(&monitorSSEPercent, "sse-percent", false, "Report steady-state error as percent of target")
	monitorCmd.Flags().StringVar(&monitorExportDir, "export-dir", "", "Directory for saved windows (config: recording.directory)")
	monitorCmd.Flags().BoolVar(&monitorNoWatch, "no-watch", false, "Do not reload the config file when it changes")
	addRecordFlags(monitorCmd)
}

// connectionManager handles connection lifecycle and reconnection
type connectionManager struct {
	conn     Connection
	connInfo string
	cfg      *config.Config
	queue    *response.TextQueue
	mu       sync.RWMutex
	p        *tea.Program
	ctx      context.Context
}

func (cm *connectionManager) getConn() Connection {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.conn
}

func (cm *connectionManager) setConn(conn Connection, connInfo string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.conn = conn
	cm.connInfo = connInfo
}

// Messages from the connection manager
type connectionLostMsg struct {
	err error
}

type reconnectedMsg struct {
	connInfo string
}

type configChangedMsg struct {
	cfg *config.Config
}

type configErrorMsg struct {
	err error
}

// monitorOptions resolves flag overrides for the monitor
func monitorOptions(cmd *cobra.Command) (windowSeconds float64, ssePercent bool, exportDir string) {
	windowSeconds = settings.Monitor.WindowSeconds
	if cmd.Flags().Changed("window") {
		windowSeconds = monitorWindowSeconds
	}
	ssePercent = settings.Monitor.SSEPercent
	if cmd.Flags().Changed("sse-percent") {
		ssePercent = monitorSSEPercent
	}
	exportDir = settings.Recording.Directory
	if monitorExportDir != "" {
		exportDir = monitorExportDir
	}
	return windowSeconds, ssePercent, exportDir
}

func runMonitor(cmd *cobra.Command, args []string) error {
	windowSeconds, ssePercent, exportDir := monitorOptions(cmd)
	if windowSeconds <= 0 {
		return fmt.Errorf("--window must be positive")
	}

	conn, connInfo, err := OpenConnection(settings)
	if err != nil {
		return err
	}

	recorder, closeRecorder, err := openRecorder(connInfo)
	if err != nil {
		conn.Close()
		return err
	}
	defer closeRecorder()

	if err := quietLogs(); err != nil {
		conn.Close()
		return err
	}

	pipeline := response.NewPipeline(response.Options{
		Logger:     logger,
		QueueSize:  settings.Monitor.QueueSize,
		SSEPercent: ssePercent,
	})
	if recorder != nil {
		pipeline.SetRecorder(recorder)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cm := &connectionManager{
		conn:     conn,
		connInfo: connInfo,
		cfg:      settings,
		queue:    pipeline.Queue(),
		ctx:      ctx,
	}

	m := newMonitorModel(monitorSetup{
		connInfo:      connInfo,
		pipeline:      pipeline,
		poll:          settings.Monitor.PollInterval(),
		redraw:        settings.Monitor.RedrawInterval(),
		windowSeconds: windowSeconds,
		exportDir:     exportDir,
		logRX:         settings.Monitor.LogRX,
	})

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	cm.p = p

	if loadedPath != "" && !monitorNoWatch {
		loader := watchConfig(ctx, loadedPath, p)
		if loader != nil {
			defer loader.Close()
		}
	}

	logger.Info("monitor started", "connection", connInfo)
	go cm.readerLoop()

	_, runErr := p.Run()
	cancel()
	if c := cm.getConn(); c != nil {
		c.Close()
	}
	if runErr != nil {
		return fmt.Errorf("TUI error: %w", runErr)
	}
	return nil
}

// watchConfig forwards config file changes into the TUI
func watchConfig(ctx context.Context, path string, p *tea.Program) *config.Loader {
	loader := config.NewLoader(path)
	loader.OnChange(func(cfg *config.Config) {
		p.Send(configChangedMsg{cfg: cfg})
	})
	if err := loader.Watch(); err != nil {
		logger.Warn("config watch disabled", "path", path, "error", err)
		return nil
	}
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-loader.Errors():
				p.Send(configErrorMsg{err: err})
			}
		}
	}()
	return loader
}

// readerLoop handles reading from connection with automatic reconnection
func (cm *connectionManager) readerLoop() {
	for {
		conn := cm.getConn()
		if conn == nil {
			return
		}

		err := pumpText(cm.ctx, conn, cm.queue)
		if cm.ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return
		}

		logger.Warn("connection lost", "error", err)
		cm.p.Send(connectionLostMsg{err: err})

		if !cm.reconnect() {
			return
		}
	}
}

// reconnect attempts to reconnect with exponential backoff
// Returns false if shutdown was requested during reconnection
func (cm *connectionManager) reconnect() bool {
	if conn := cm.getConn(); conn != nil {
		conn.Close()
	}

	backoff := 1 * time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-cm.ctx.Done():
			return false
		case <-time.After(backoff):
		}

		conn, connInfo, err := OpenConnection(cm.cfg)
		if err == nil {
			cm.setConn(conn, connInfo)
			logger.Info("reconnected", "connection", connInfo)
			cm.p.Send(reconnectedMsg{connInfo: connInfo})
			return true
		}
		logger.Debug("reconnect failed", "error", err, "retry_in", backoff)

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
