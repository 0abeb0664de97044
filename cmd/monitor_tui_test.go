// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"os"
	"testing"
	"time"

	"github.com/Thermoquad/pidscope/pkg/response"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMonitor(t *testing.T) monitorModel {
	t.Helper()
	return newMonitorModel(monitorSetup{
		connInfo:      "test",
		pipeline:      response.NewPipeline(response.Options{}),
		poll:          time.Millisecond,
		redraw:        time.Millisecond,
		windowSeconds: 60,
		exportDir:     t.TempDir(),
		now:           func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) },
	})
}

func update(m monitorModel, msg tea.Msg) monitorModel {
	next, _ := m.Update(msg)
	return next.(monitorModel)
}

func feed(m monitorModel, text string) monitorModel {
	m.pipeline.Queue().TryPush(text)
	return update(m, pollMsg(time.Now()))
}

func press(m monitorModel, keys string) monitorModel {
	for _, r := range keys {
		if r == ' ' {
			m = update(m, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
			continue
		}
		m = update(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

func enter(m monitorModel) monitorModel {
	return update(m, tea.KeyMsg{Type: tea.KeyEnter})
}

func TestMonitorWindowWorkflow(t *testing.T) {
	m := newTestMonitor(t)
	m = feed(m, "B,1000,20,1,0,0\n")
	assert.True(t, m.receiving)

	m = press(m, "W")
	w := m.pipeline.Window()
	require.True(t, w.IsOpen())
	_, timed := w.Duration()
	assert.False(t, timed)

	m = feed(m, "B,1020,20,5,10,2,10,6,10,9,10,10,10,10\n")
	assert.Equal(t, 5, w.Len())

	m = press(m, " ")
	assert.True(t, w.IsPaused())
	m = feed(m, "B,1120,20,1,10,10\n")
	assert.Equal(t, 5, w.Len(), "paused window must not grow")

	m = press(m, "a0")
	m = enter(m)
	m = press(m, "b1")
	m = enter(m)
	require.True(t, m.windowMetrics.Ready(), m.windowMetrics.String())
	assert.Equal(t, 5, m.windowMetrics.Samples)

	m = press(m, "m0.061")
	m = enter(m)
	require.Len(t, w.Markers(), 1)
	assert.InDelta(t, 0.06, w.Markers()[0].T, 1e-9)

	m = update(m, tea.KeyMsg{Type: tea.KeyRight})
	assert.InDelta(t, 0.08, w.Markers()[0].T, 1e-9)

	m = press(m, "s")
	base := exportBaseName(m.exportDir, m.now())
	for _, ext := range allExportFormats {
		_, err := os.Stat(base + "." + ext)
		assert.NoError(t, err, ext)
	}

	m = press(m, "M")
	assert.Empty(t, w.Markers())

	m = press(m, "c")
	assert.False(t, w.IsOpen())
	assert.Contains(t, m.View(), "closed")
}

func TestMonitorTimedWindowCompletes(t *testing.T) {
	m := newTestMonitor(t)
	m = feed(m, "B,0,100,1,5,0\n")
	m.windowSeconds = 0.25
	m = press(m, "w")

	m = feed(m, "B,100,100,4,5,1,5,2,5,3,5,4\n")
	w := m.pipeline.Window()
	assert.False(t, w.IsActive())
	assert.Equal(t, 2, w.Len())
	assert.Contains(t, m.View(), "complete")
}

func TestMonitorRedrawGeneration(t *testing.T) {
	m := newTestMonitor(t)
	m = press(m, "W")
	gen := m.pipeline.Window().Generation()

	_, cmd := m.Update(redrawMsg{gen: gen})
	assert.NotNil(t, cmd)

	m = press(m, " ")
	_, cmd = m.Update(redrawMsg{gen: gen})
	assert.Nil(t, cmd, "pause cancels the pending redraw")

	m = press(m, " ")
	_, cmd = m.Update(redrawMsg{gen: m.pipeline.Window().Generation()})
	assert.NotNil(t, cmd)
}

func TestMonitorPromptErrors(t *testing.T) {
	m := newTestMonitor(t)

	m = press(m, "a1")
	m = enter(m)
	assert.Equal(t, promptNone, m.prompt)
	require.NotEmpty(t, m.log.entries)
	last := m.log.entries[len(m.log.entries)-1]
	assert.True(t, last.isError)
	assert.Equal(t, errNoWindow.Error(), last.message)

	m = press(m, "dabc")
	m = enter(m)
	assert.True(t, m.log.entries[len(m.log.entries)-1].isError)
	assert.Equal(t, 60.0, m.windowSeconds)

	m = press(m, "d5")
	m = enter(m)
	assert.Equal(t, 5.0, m.windowSeconds)

	m = press(m, "t")
	m = update(m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, promptNone, m.prompt)
}

func TestMonitorMarkerPromptNeedsPause(t *testing.T) {
	m := newTestMonitor(t)
	m = feed(m, "B,0,20,1,10,0\n")
	m = press(m, "W")
	m = feed(m, "B,20,20,3,10,1,10,5,10,9\n")
	w := m.pipeline.Window()
	require.True(t, w.IsActive())

	m = press(m, "m0.02")
	m = enter(m)
	assert.Empty(t, w.Markers())
	last := m.log.entries[len(m.log.entries)-1]
	assert.True(t, last.isError)
	assert.Equal(t, errLiveMarker.Error(), last.message)

	m = press(m, " ")
	m = press(m, "m0.02")
	m = enter(m)
	assert.Len(t, w.Markers(), 1)
}

func TestMonitorStepPrompt(t *testing.T) {
	m := newTestMonitor(t)
	m = feed(m, "0,0\n")
	m = press(m, "t50")
	m = enter(m)
	assert.Equal(t, response.StepArmed, m.pipeline.Tracker().State())
}

func TestMonitorToggleSSEPercent(t *testing.T) {
	m := newTestMonitor(t)
	require.False(t, m.pipeline.SSEPercent())
	m = press(m, "%")
	assert.True(t, m.pipeline.SSEPercent())
}

func TestMonitorConnectionLost(t *testing.T) {
	m := newTestMonitor(t)
	m = feed(m, "12.0,")
	m = update(m, connectionLostMsg{err: os.ErrClosed})
	assert.True(t, m.connectionLost)
	assert.Contains(t, m.View(), "Connection lost")

	// The partial line was discarded with the old link
	m = feed(m, "5.0,6.0\n")
	last, ok := m.pipeline.Timeline().Last()
	require.True(t, ok)
	assert.Equal(t, 5.0, last.Target)

	m = update(m, reconnectedMsg{connInfo: "again"})
	assert.False(t, m.connectionLost)
	assert.Equal(t, "again", m.connInfo)
}

func TestParseSeconds(t *testing.T) {
	v, err := parseSeconds(" 1.5 ")
	require.NoError(t, err)
	assert.Equal(t, 1.5, v)

	for _, bad := range []string{"", "x", "NaN", "Inf"} {
		_, err := parseSeconds(bad)
		assert.Error(t, err, bad)
	}
}

func TestNeighborTime(t *testing.T) {
	points := []response.WindowPoint{{T: 0}, {T: 1}, {T: 2}}
	assert.Equal(t, 2.0, neighborTime(points, 1.1, 1))
	assert.Equal(t, 0.0, neighborTime(points, 1.1, -1))
	assert.Equal(t, 0.0, neighborTime(points, 0, -1))
	assert.Equal(t, 2.0, neighborTime(points, 2, 1))
	assert.Equal(t, 3.0, neighborTime(nil, 3, 1))
}
