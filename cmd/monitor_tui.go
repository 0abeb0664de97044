// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Thermoquad/pidscope/pkg/pidlink"
	"github.com/Thermoquad/pidscope/pkg/response"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const (
	plotHeight         = 10
	markerPanelWidth   = 34
	minPlotWidth       = 20
	maxMonitorLogLines = 100
)

// promptKind identifies what the text input is collecting
type promptKind int

const (
	promptNone promptKind = iota
	promptCursorA
	promptCursorB
	promptMarker
	promptDuration
	promptStep
)

func (k promptKind) label() string {
	switch k {
	case promptCursorA:
		return "Cursor A at (s, empty clears):"
	case promptCursorB:
		return "Cursor B at (s, empty clears):"
	case promptMarker:
		return "Marker at (s):"
	case promptDuration:
		return "Window length (s):"
	case promptStep:
		return "Step target:"
	}
	return ""
}

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// markerItem shows one marker in the marker list
type markerItem struct {
	index  int
	marker response.Marker
}

func (i markerItem) Title() string       { return fmt.Sprintf("M%d", i.index+1) }
func (i markerItem) Description() string { return i.marker.Label() }
func (i markerItem) FilterValue() string { return i.Title() }

// monitorSetup carries the monitor's startup settings
type monitorSetup struct {
	connInfo      string
	pipeline      *response.Pipeline
	poll          time.Duration
	redraw        time.Duration
	windowSeconds float64
	exportDir     string
	logRX         bool
	now           func() time.Time
}

// monitorModel is the Bubble Tea model for the monitor TUI
type monitorModel struct {
	connInfo      string
	pipeline      *response.Pipeline
	poll          time.Duration
	redraw        time.Duration
	windowSeconds float64
	exportDir     string
	logRX         bool
	now           func() time.Time

	log *eventLog

	// Prompt
	input  textinput.Model
	prompt promptKind

	// Window view, refreshed at the redraw cadence or on edits
	windowPoints  []response.WindowPoint
	windowMetrics response.WindowMetrics
	markerList    list.Model
	dragging      bool

	// UI state
	width          int
	height         int
	receiving      bool
	connectionLost bool
	quitting       bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

// redrawMsg refreshes the response window if gen is still current
type redrawMsg struct {
	gen uint64
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func newMonitorModel(setup monitorSetup) monitorModel {
	ti := textinput.New()
	ti.CharLimit = 16
	ti.Width = 12

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	markers := list.New([]list.Item{}, delegate, markerPanelWidth-4, plotHeight+2)
	markers.Title = "Markers"
	markers.SetShowStatusBar(false)
	markers.SetShowHelp(false)
	markers.SetFilteringEnabled(false)

	now := setup.now
	if now == nil {
		now = time.Now
	}

	return monitorModel{
		connInfo:      setup.connInfo,
		pipeline:      setup.pipeline,
		poll:          setup.poll,
		redraw:        setup.redraw,
		windowSeconds: setup.windowSeconds,
		exportDir:     setup.exportDir,
		logRX:         setup.logRX,
		now:           now,
		log:           newEventLog(maxMonitorLogLines),
		input:         ti,
		markerList:    markers,
		windowMetrics: response.WindowMetrics{Status: response.StatusCursorsIncomplete},
		width:         100,
		height:        40,
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m monitorModel) Init() tea.Cmd {
	return pollCmd(m.poll)
}

func redrawCmd(d time.Duration, gen uint64) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return redrawMsg{gen: gen}
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.prompt != promptNone {
			return m.handlePromptKey(msg)
		}
		return m.handleKeyMsg(msg)

	case tea.MouseMsg:
		return m.handleMouseMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case pollMsg:
		m.drain()
		return m, pollCmd(m.poll)

	case redrawMsg:
		if !m.pipeline.Window().ShouldRedraw(msg.gen) {
			return m, nil
		}
		m.refreshWindow()
		return m, redrawCmd(m.redraw, msg.gen)

	case connectionLostMsg:
		m.drain()
		m.pipeline.Disconnected()
		m.connectionLost = true
		m.log.addf(true, "Connection lost (%v) - reconnecting...", msg.err)

	case reconnectedMsg:
		m.connectionLost = false
		m.connInfo = msg.connInfo
		m.log.addf(false, "Reconnected: %s", msg.connInfo)

	case configChangedMsg:
		m.pipeline.SetSSEPercent(msg.cfg.Monitor.SSEPercent)
		m.windowSeconds = msg.cfg.Monitor.WindowSeconds
		m.logRX = msg.cfg.Monitor.LogRX
		m.refreshWindow()
		m.log.add("Configuration reloaded", false)

	case configErrorMsg:
		m.log.addf(true, "Configuration error: %v", msg.err)
	}

	return m, nil
}

// drain runs queued text through the pipeline and logs what it decoded
func (m *monitorModel) drain() {
	w := m.pipeline.Window()
	wasActive := w.IsActive()

	for _, line := range m.pipeline.Drain() {
		m.logLine(line)
	}
	w.Expire()

	if wasActive && !w.IsActive() {
		m.refreshWindow()
		m.log.addf(false, "Window capture complete (%d samples)", w.Len())
	}
}

func (m *monitorModel) logLine(line pidlink.DecodedLine) {
	if !m.receiving && isTelemetry(line.Event) {
		m.receiving = true
		m.log.add("Receiving telemetry", false)
	}
	if problem := lineProblem(line); problem != "" {
		m.log.addf(true, "%s: %q", problem, line.Raw)
		return
	}
	switch ev := line.Event.(type) {
	case pidlink.StatusReport, pidlink.TuneStatus:
		m.log.add(pidlink.FormatEvent(ev), false)
	default:
		if m.logRX && !line.Duplicate {
			m.log.add("RX: "+line.Raw, false)
		}
	}
}

// refreshWindow recomputes the window view from the analyzer
func (m *monitorModel) refreshWindow() {
	w := m.pipeline.Window()
	m.windowPoints = w.Points()
	m.windowMetrics = w.Metrics(m.pipeline.SSEPercent())

	markers := w.Markers()
	items := make([]list.Item, len(markers))
	for i, mk := range markers {
		items[i] = markerItem{index: i, marker: mk}
	}
	m.markerList.SetItems(items)
}

func (m monitorModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	w := m.pipeline.Window()

	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "w":
		return m.openWindow(&m.windowSeconds)

	case "W":
		return m.openWindow(nil)

	case "c":
		if w.IsOpen() {
			m.pipeline.CloseWindow()
			m.refreshWindow()
			m.log.add("Window closed", false)
		}

	case " ":
		if !w.IsOpen() {
			return m, nil
		}
		if w.IsPaused() {
			gen := w.Resume()
			m.log.add("Window resumed", false)
			return m, redrawCmd(m.redraw, gen)
		}
		w.Pause()
		m.refreshWindow()
		m.log.add("Window paused", false)

	case "a":
		return m.startPrompt(promptCursorA)
	case "b":
		return m.startPrompt(promptCursorB)
	case "m":
		return m.startPrompt(promptMarker)
	case "d":
		return m.startPrompt(promptDuration)
	case "t":
		return m.startPrompt(promptStep)

	case "A":
		w.ToggleActiveCursor(response.CursorA)
	case "B":
		w.ToggleActiveCursor(response.CursorB)

	case "M":
		if w.RemoveLastMarker() {
			m.refreshWindow()
		}

	case "x":
		w.ClearMarkers()
		m.refreshWindow()

	case "up", "k":
		m.markerList.CursorUp()
	case "down", "j":
		m.markerList.CursorDown()

	case "left", "h":
		m.nudgeMarker(-1)
	case "right", "l":
		m.nudgeMarker(1)

	case "%":
		m.pipeline.SetSSEPercent(!m.pipeline.SSEPercent())
		m.refreshWindow()
		mode := "absolute"
		if m.pipeline.SSEPercent() {
			mode = "percent"
		}
		m.log.addf(false, "SSE mode: %s", mode)

	case "s":
		m.saveWindow()

	case "r":
		m.pipeline.Reset()
		m.refreshWindow()
		m.receiving = false
		m.log.add("Reset", false)
	}

	return m, nil
}

func (m monitorModel) openWindow(duration *float64) (tea.Model, tea.Cmd) {
	m.pipeline.OpenWindow(duration)
	m.refreshWindow()
	if duration != nil {
		m.log.addf(false, "Window opened (%.1f s)", *duration)
		logger.Info("response window opened", "seconds", *duration)
	} else {
		m.log.add("Window opened (untimed)", false)
		logger.Info("response window opened", "seconds", "untimed")
	}
	return m, redrawCmd(m.redraw, m.pipeline.Window().Generation())
}

func (m monitorModel) startPrompt(kind promptKind) (tea.Model, tea.Cmd) {
	m.prompt = kind
	m.input.SetValue("")
	m.input.Prompt = kind.label() + " "
	return m, m.input.Focus()
}

func (m monitorModel) handlePromptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.prompt = promptNone
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		kind, value := m.prompt, m.input.Value()
		m.prompt = promptNone
		m.input.Blur()
		if err := m.applyPrompt(kind, value); err != nil {
			m.log.add(err.Error(), true)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// parseSeconds parses a typed number
func parseSeconds(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	return v, nil
}

var (
	errNoWindow   = errors.New("no response window open (press w)")
	errLiveMarker = errors.New("pause the window (space) to place markers")
)

func (m *monitorModel) applyPrompt(kind promptKind, value string) error {
	w := m.pipeline.Window()

	if kind == promptStep {
		target, err := parseSeconds(value)
		if err != nil {
			return err
		}
		m.pipeline.StartStep(target)
		m.log.addf(false, "Step armed toward %g", target)
		return nil
	}

	if kind == promptDuration {
		d, err := parseSeconds(value)
		if err != nil {
			return err
		}
		if d <= 0 {
			return fmt.Errorf("window length must be positive")
		}
		if w.IsOpen() {
			w.SetDuration(d)
			m.log.addf(false, "Window length set to %.1f s", d)
		} else {
			m.windowSeconds = d
			m.log.addf(false, "Default window length set to %.1f s", d)
		}
		return nil
	}

	if !w.IsOpen() {
		return errNoWindow
	}

	switch kind {
	case promptCursorA, promptCursorB:
		which := response.CursorA
		if kind == promptCursorB {
			which = response.CursorB
		}
		if strings.TrimSpace(value) == "" {
			w.ClearCursor(which)
		} else {
			t, err := parseSeconds(value)
			if err != nil {
				return err
			}
			w.SetCursor(which, t)
		}

	case promptMarker:
		t, err := parseSeconds(value)
		if err != nil {
			return err
		}
		if w.IsActive() && !w.IsPaused() {
			return errLiveMarker
		}
		mk, ok := w.AddMarker(t)
		if !ok {
			return fmt.Errorf("no samples to mark")
		}
		m.log.add("Marker "+mk.Label(), false)
	}

	m.refreshWindow()
	return nil
}

// neighborTime returns the time of the sample next to t in direction dir
func neighborTime(points []response.WindowPoint, t float64, dir int) float64 {
	if len(points) == 0 {
		return t
	}
	best := 0
	for i := range points {
		if math.Abs(points[i].T-t) < math.Abs(points[best].T-t) {
			best = i
		}
	}
	next := max(0, min(best+dir, len(points)-1))
	return points[next].T
}

func (m *monitorModel) nudgeMarker(dir int) {
	w := m.pipeline.Window()
	markers := w.Markers()
	idx := m.markerList.Index()
	if idx < 0 || idx >= len(markers) {
		return
	}
	if w.MoveMarker(idx, neighborTime(m.windowPoints, markers[idx].T, dir)) {
		m.refreshWindow()
		m.markerList.Select(idx)
	}
}

func (m *monitorModel) saveWindow() {
	w := m.pipeline.Window()
	if !w.IsOpen() {
		m.log.add(errNoWindow.Error(), true)
		return
	}
	now := m.now()
	paths, err := exportWindow(exportBaseName(m.exportDir, now), w, m.connInfo, m.pipeline.SSEPercent(), allExportFormats, now)
	for _, p := range paths {
		m.log.addf(false, "Saved %s", p)
	}
	if err != nil {
		m.log.add(err.Error(), true)
	}
}

//////////////////////////////////////////////////////////////
// Mouse
//////////////////////////////////////////////////////////////

// plotGeometry locates the window plot on screen
func (m monitorModel) plotGeometry() (top, left int, g plotGrid, ok bool) {
	if !m.pipeline.Window().IsOpen() {
		return 0, 0, plotGrid{}, false
	}
	g, ok = newPlotGrid(m.windowPoints, m.plotWidth(), plotHeight)
	if !ok {
		return 0, 0, plotGrid{}, false
	}
	// Box border row, then the plot; border and padding columns on the left
	return lipgloss.Height(m.renderTop()) + 1, 2, g, true
}

func (m monitorModel) handleMouseMsg(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	top, left, g, ok := m.plotGeometry()
	if !ok {
		return m, nil
	}
	w := m.pipeline.Window()
	inPlot := msg.Y >= top && msg.Y < top+g.height && msg.X >= left && msg.X < left+g.width
	t := g.timeAt(msg.X - left)

	switch msg.Action {
	case tea.MouseActionPress:
		if !inPlot {
			return m, nil
		}
		switch msg.Button {
		case tea.MouseButtonLeft:
			switch w.Click(t, g.span()) {
			case response.ClickDragMarker, response.ClickDragCursor:
				m.dragging = true
			case response.ClickAddedMarker:
				m.log.add("Marker added", false)
			}
			m.refreshWindow()
		case tea.MouseButtonRight:
			if w.SecondaryClick() == response.ClickRemovedMarker {
				m.refreshWindow()
			}
		}

	case tea.MouseActionMotion:
		if m.dragging && w.Drag(t) {
			m.refreshWindow()
		}

	case tea.MouseActionRelease:
		if m.dragging {
			w.Release()
			m.dragging = false
			m.refreshWindow()
		}
	}
	return m, nil
}

//////////////////////////////////////////////////////////////
// View
//////////////////////////////////////////////////////////////

func (m monitorModel) plotWidth() int {
	return max(minPlotWidth, m.width-markerPanelWidth-8)
}

// renderTop draws everything above the response window box
func (m monitorModel) renderTop() string {
	snap := m.pipeline.Snapshot()

	var s strings.Builder
	s.WriteString(titleStyle.Render("PIDSCOPE - STEP RESPONSE MONITOR"))
	s.WriteString("\n")
	sse := "abs"
	if m.pipeline.SSEPercent() {
		sse = "%"
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | RX: %.1f Hz (Nyquist %.1f Hz) | SSE: %s | 'q' quit",
		m.connInfo, snap.RxRate, snap.RxRate/2, sse)))
	s.WriteString("\n\n")

	switch {
	case m.connectionLost:
		s.WriteString(errorStyle.Render("✗ Connection lost - reconnecting..."))
	case !m.receiving:
		s.WriteString(warningStyle.Render("⏳ Waiting for telemetry..."))
	default:
		s.WriteString(valueStyle.Render("✓ Receiving telemetry"))
	}
	s.WriteString("\n")

	s.WriteString(boxStyle.Width(m.width - 4).Render(m.renderLive(snap)))
	s.WriteString("\n")
	s.WriteString(labelStyle.Render("Response Window: "))
	s.WriteString(m.windowState(snap))
	return s.String()
}

func (m monitorModel) renderLive(snap response.Snapshot) string {
	var c strings.Builder
	if snap.HasLast {
		c.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
			labelStyle.Render("Target:"), targetStyle.Render(fmt.Sprintf("%.3f", snap.Last.Target)),
			labelStyle.Render("Actual:"), valueStyle.Render(fmt.Sprintf("%.3f", snap.Last.Actual)),
			labelStyle.Render("Error:"), valueStyle.Render(fmt.Sprintf("%.3f", snap.Last.Target-snap.Last.Actual)),
		))
	} else {
		c.WriteString(headerStyle.Render("(no samples yet)") + "\n")
	}

	width := max(10, m.width-10)
	lo, hi := valueRange(snap.Series.Targets, snap.Series.Actuals)
	c.WriteString(valueStyle.Render(sparkline(snap.Series.Actuals, width, lo, hi)) + "\n")
	c.WriteString(targetStyle.Render(sparkline(snap.Series.Targets, width, lo, hi)) + "\n")
	c.WriteString(headerStyle.Render(fmt.Sprintf("range %.3f .. %.3f", lo, hi)) + "\n")

	c.WriteString(labelStyle.Render(snap.Step.String()))

	if pid, ok := m.pipeline.PIDStatus(); ok {
		c.WriteString(fmt.Sprintf("\n%s %s", labelStyle.Render("Gains:"),
			valueStyle.Render(fmt.Sprintf("P=%g I=%g D=%g", pid.P, pid.I, pid.D))))
	}
	if tune, ok := m.pipeline.TuneStatus(); ok {
		c.WriteString(fmt.Sprintf("\n%s %s", labelStyle.Render("Autotune:"),
			valueStyle.Render(pidlink.FormatEvent(tune))))
	}
	return c.String()
}

func (m monitorModel) windowState(snap response.Snapshot) string {
	w := m.pipeline.Window()
	switch {
	case !snap.WindowOpen:
		return headerStyle.Render("closed ('w' open)")
	case snap.WindowPaused:
		return warningStyle.Render(fmt.Sprintf("paused, %d samples", snap.WindowLen))
	case snap.WindowActive:
		if d, ok := w.Duration(); ok {
			return valueStyle.Render(fmt.Sprintf("capturing %.1f s, %d samples", d, snap.WindowLen))
		}
		return valueStyle.Render(fmt.Sprintf("capturing, %d samples", snap.WindowLen))
	default:
		return headerStyle.Render(fmt.Sprintf("complete, %d samples", snap.WindowLen))
	}
}

func (m monitorModel) renderWindow() string {
	w := m.pipeline.Window()
	a, b := w.Cursors()

	var c strings.Builder
	c.WriteString(renderWindowPlot(m.windowPoints, a, b, w.Markers(), m.plotWidth(), plotHeight))
	c.WriteString("\n")

	cursor := func(p *float64) string {
		if p == nil {
			return "--"
		}
		return fmt.Sprintf("%.3fs", *p)
	}
	c.WriteString(headerStyle.Render(fmt.Sprintf("A: %s  B: %s  armed: %s",
		cursor(a), cursor(b), w.ActiveCursor())))
	c.WriteString("\n")
	if m.windowMetrics.Ready() {
		c.WriteString(valueStyle.Render(m.windowMetrics.String()))
	} else {
		c.WriteString(warningStyle.Render(m.windowMetrics.String()))
	}

	plot := boxStyle.Render(c.String())
	markers := boxStyle.Width(markerPanelWidth).Render(m.markerList.View())
	return lipgloss.JoinHorizontal(lipgloss.Top, plot, markers)
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder
	s.WriteString(m.renderTop())
	s.WriteString("\n")
	if m.pipeline.Window().IsOpen() {
		s.WriteString(m.renderWindow())
		s.WriteString("\n")
	}

	if m.prompt != promptNone {
		s.WriteString(m.input.View())
		s.WriteString("\n")
	}

	s.WriteString(labelStyle.Render("Recent Events:"))
	s.WriteString("\n")
	used := lipgloss.Height(s.String())
	logHeight := max(3, m.height-used-3)
	s.WriteString(boxStyle.Width(m.width - 4).Render(m.log.render(logHeight)))

	return s.String()
}
