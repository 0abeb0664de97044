// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/Thermoquad/pidscope/pkg/pidlink"
	"github.com/Thermoquad/pidscope/pkg/response"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	showAll       bool
	statsInterval int
	useTUI        bool
)

var lineStatsCmd = &cobra.Command{
	Use:   "line_stats",
	Short: "Track malformed lines and telemetry rates",
	Long: `Track malformed telemetry, short sample batches and stream rates with statistics.

This command decodes each line and detects:
  - Malformed lines (bad PID reports, unparseable pairs)
  - Short sample batches (fewer pairs than announced)
  - Unrecognized lines
  - Statistics and trends (line rate, sample rate, error rate)

By default, only problems are displayed. Use --show-all to display every line.

In text mode, problems are printed as they happen and statistics summaries are
printed at a configurable interval.`,
	RunE: runLineStats,
}

func init() {
	rootCmd.AddCommand(lineStatsCmd)
	lineStatsCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all lines (not just errors)")
	lineStatsCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	lineStatsCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
}

// lineProblem describes a line worth flagging, or "" for a clean line
func lineProblem(line pidlink.DecodedLine) string {
	switch ev := line.Event.(type) {
	case pidlink.Unrecognized:
		if ev.Err != nil {
			return ev.Err.Error()
		}
		return "unrecognized line"
	case pidlink.SampleBatch:
		if ev.Err != nil {
			return ev.Err.Error()
		}
	}
	return ""
}

func runLineStats(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection(settings)
	if err != nil {
		return err
	}
	defer conn.Close()

	if useTUI {
		if err := quietLogs(); err != nil {
			return err
		}
	}

	pipeline := response.NewPipeline(response.Options{
		Logger:    logger,
		QueueSize: settings.Monitor.QueueSize,
	})

	if useTUI {
		return runStatsTUI(conn, connInfo, pipeline)
	}
	return runStatsText(conn, connInfo, pipeline)
}

// runStatsTUI runs line statistics in TUI mode
func runStatsTUI(conn Connection, connInfo string, pipeline *response.Pipeline) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := newStatsModel(connInfo, pipeline, settings.Monitor.PollInterval(), showAll)
	p := tea.NewProgram(m, tea.WithAltScreen())

	go func() {
		err := pumpText(ctx, conn, pipeline.Queue())
		p.Send(linkClosedMsg{err: err})
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// runStatsText runs line statistics in text mode
func runStatsText(conn Connection, connInfo string, pipeline *response.Pipeline) error {
	fmt.Printf("pidscope - Line Statistics\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All lines\n")
	} else {
		fmt.Printf("Mode: Errors only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	readErr := make(chan error, 1)
	go func() {
		readErr <- pumpText(ctx, conn, pipeline.Queue())
	}()

	pollTicker := time.NewTicker(settings.Monitor.PollInterval())
	defer pollTicker.Stop()
	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	synchronized := false
	printLines := func() {
		for _, line := range pipeline.Drain() {
			if !synchronized && isTelemetry(line.Event) {
				synchronized = true
				fmt.Printf("[SYNC] First telemetry line received\n\n")
			}
			if problem := lineProblem(line); problem != "" {
				timestamp := time.Now().Format("15:04:05.000")
				fmt.Printf("[%s] %s %s\n", timestamp, errorColor("BAD LINE:"), problem)
				fmt.Printf("  %q\n\n", line.Raw)
			} else if showAll {
				printLine(os.Stdout, line, true, true)
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			printLines()
			fmt.Println()
			fmt.Print(pipeline.Statistics().String())
			return nil

		case err := <-readErr:
			printLines()
			if !errors.Is(err, context.Canceled) {
				logger.Info("connection closed", "error", err)
			}
			fmt.Println()
			fmt.Print(pipeline.Statistics().String())
			return nil

		case <-pollTicker.C:
			printLines()

		case <-statsTicker.C:
			fmt.Println()
			fmt.Print(pipeline.Statistics().String())
			fmt.Println()
		}
	}
}

// isTelemetry reports whether an event carries target/actual samples
func isTelemetry(ev pidlink.Event) bool {
	switch e := ev.(type) {
	case pidlink.RawPair:
		return true
	case pidlink.SampleBatch:
		return len(e.Pairs) > 0
	}
	return false
}

// Messages
type pollMsg time.Time
type linkClosedMsg struct {
	err error
}

// statsModel is the line statistics TUI
type statsModel struct {
	connInfo     string
	pipeline     *response.Pipeline
	poll         time.Duration
	showAll      bool
	log          *eventLog
	synchronized bool
	linkClosed   bool
	deviceMs     float64
	hasDeviceMs  bool
	width        int
	height       int
	quitting     bool
}

func newStatsModel(connInfo string, pipeline *response.Pipeline, poll time.Duration, showAll bool) statsModel {
	return statsModel{
		connInfo: connInfo,
		pipeline: pipeline,
		poll:     poll,
		showAll:  showAll,
		log:      newEventLog(100),
		width:    80,
		height:   24,
	}
}

func pollCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return pollMsg(t)
	})
}

func (m statsModel) Init() tea.Cmd {
	return pollCmd(m.poll)
}

func (m statsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			m.pipeline.Statistics().Reset()
			m.log.add("Statistics reset", false)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case pollMsg:
		m.ingest(m.pipeline.Drain())
		return m, pollCmd(m.poll)

	case linkClosedMsg:
		m.ingest(m.pipeline.Drain())
		m.linkClosed = true
		m.log.addf(true, "Connection closed: %v", msg.err)
	}

	return m, nil
}

// ingest logs decoded lines into the event log
func (m *statsModel) ingest(lines []pidlink.DecodedLine) {
	for _, line := range lines {
		if !m.synchronized && isTelemetry(line.Event) {
			m.synchronized = true
			m.log.add("First telemetry line received", false)
		}

		if batch, ok := line.Event.(pidlink.SampleBatch); ok && len(batch.Pairs) > 0 {
			m.deviceMs = batch.DeviceTimeMs(len(batch.Pairs) - 1)
			m.hasDeviceMs = true
		}

		if problem := lineProblem(line); problem != "" {
			m.log.addf(true, "%s: %q", problem, line.Raw)
			continue
		}

		switch ev := line.Event.(type) {
		case pidlink.StatusReport, pidlink.TuneStatus:
			m.log.add(pidlink.FormatEvent(ev), false)
		default:
			if m.showAll && !line.Duplicate {
				m.log.add(line.Raw, false)
			}
		}
	}
}

func (m statsModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	stats := m.pipeline.Statistics()
	stats.CalculateRates()

	var s strings.Builder
	s.WriteString(titleStyle.Render("PIDSCOPE - LINE STATISTICS"))
	s.WriteString("\n")
	mode := "Errors only"
	if m.showAll {
		mode = "All lines"
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Mode: %s | 'r' reset | 'q' quit", m.connInfo, mode)))
	s.WriteString("\n\n")

	switch {
	case m.linkClosed:
		s.WriteString(errorStyle.Render("✗ Connection closed"))
	case !m.synchronized:
		s.WriteString(warningStyle.Render("⏳ Waiting for telemetry..."))
	default:
		s.WriteString(valueStyle.Render("✓ Receiving telemetry"))
	}
	s.WriteString("\n\n")

	var errorPercent float64
	if stats.TotalLines > 0 {
		errorPercent = float64(stats.Errors()) * 100.0 / float64(stats.TotalLines)
	}

	content := strings.Builder{}
	content.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		labelStyle.Render("Lines:"), valueStyle.Render(fmt.Sprintf("%d", stats.TotalLines)),
		labelStyle.Render("Samples:"), valueStyle.Render(fmt.Sprintf("%d", stats.Samples)),
		labelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d (%.1f%%)", stats.Errors(), errorPercent)),
	))
	content.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s   %s %s\n",
		labelStyle.Render("Pairs:"), valueStyle.Render(fmt.Sprintf("%d", stats.RawPairs)),
		labelStyle.Render("Batches:"), valueStyle.Render(fmt.Sprintf("%d", stats.Batches)),
		labelStyle.Render("PID:"), valueStyle.Render(fmt.Sprintf("%d", stats.StatusReports)),
		labelStyle.Render("TUNE:"), valueStyle.Render(fmt.Sprintf("%d", stats.TuneReports)),
	))
	if stats.Errors() > 0 || stats.Unrecognized > 0 {
		content.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
			labelStyle.Render("Malformed:"), errorStyle.Render(fmt.Sprintf("%d", stats.MalformedLine)),
			labelStyle.Render("Short Batches:"), errorStyle.Render(fmt.Sprintf("%d", stats.ShortBatches)),
			labelStyle.Render("Unrecognized:"), warningStyle.Render(fmt.Sprintf("%d", stats.Unrecognized)),
		))
	}
	rx := m.pipeline.Timeline().RxRate()
	content.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s",
		labelStyle.Render("Line Rate:"), valueStyle.Render(fmt.Sprintf("%.1f lines/s", stats.LineRate)),
		labelStyle.Render("RX:"), valueStyle.Render(fmt.Sprintf("%.1f Hz (Nyquist %.1f Hz)", rx, rx/2)),
		labelStyle.Render("Error Rate:"), func() string {
			if stats.ErrorRate > 0 {
				return errorStyle.Render(fmt.Sprintf("%.1f err/s", stats.ErrorRate))
			}
			return valueStyle.Render(fmt.Sprintf("%.1f err/s", stats.ErrorRate))
		}(),
	))
	s.WriteString(boxStyle.Render(content.String()))
	s.WriteString("\n\n")

	if status := m.controllerStatus(); status != "" {
		s.WriteString(labelStyle.Render("Controller:"))
		s.WriteString("\n")
		s.WriteString(boxStyle.Render(status))
		s.WriteString("\n\n")
	}

	s.WriteString(labelStyle.Render("Recent Events:"))
	s.WriteString("\n")
	logHeight := m.height - 18
	if logHeight < 5 {
		logHeight = 5
	}
	s.WriteString(boxStyle.Width(m.width - 4).Render(m.log.render(logHeight)))

	return s.String()
}

// controllerStatus renders the latest gains, tune state and device uptime
func (m statsModel) controllerStatus() string {
	var lines []string
	if pid, ok := m.pipeline.PIDStatus(); ok {
		lines = append(lines, fmt.Sprintf("%s %s", labelStyle.Render("Gains:"),
			valueStyle.Render(fmt.Sprintf("P=%g I=%g D=%g", pid.P, pid.I, pid.D))))
	}
	if tune, ok := m.pipeline.TuneStatus(); ok {
		lines = append(lines, fmt.Sprintf("%s %s", labelStyle.Render("Autotune:"),
			valueStyle.Render(pidlink.FormatEvent(tune))))
	}
	if m.hasDeviceMs && m.deviceMs >= 0 {
		lines = append(lines, fmt.Sprintf("%s %s", labelStyle.Render("Device Time:"),
			valueStyle.Render(formatUptime(uint64(m.deviceMs)))))
	}
	return strings.Join(lines, "\n")
}
