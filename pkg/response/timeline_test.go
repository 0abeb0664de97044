// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package response

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimelineSynthesizedIndex(t *testing.T) {
	tl := NewTimeline(newFakeClock().Now)

	s0 := tl.Ingest(1, 2, nil)
	s1 := tl.Ingest(1, 3, nil)
	s2 := tl.Ingest(1, 4, nil)

	assert.Equal(t, 0.0, s0.Elapsed)
	assert.InDelta(t, 1/NominalRateHz, s1.Elapsed, 1e-12)
	assert.InDelta(t, 2/NominalRateHz, s2.Elapsed, 1e-12)
	assert.Equal(t, 3, tl.Len())
}

func TestTimelineDeviceTime(t *testing.T) {
	clock := newFakeClock()
	tl := NewTimeline(clock.Now)

	s := tl.Ingest(5, 6, ms(1500))
	assert.Equal(t, 1.5, s.Elapsed)
	assert.Equal(t, wallSeconds(clock.Now()), s.WallTime)
}

func TestTimelineWraparoundResetsIndex(t *testing.T) {
	tl := NewTimeline(newFakeClock().Now)

	tl.Ingest(0, 0, nil)
	tl.Ingest(0, 0, nil)
	tl.Ingest(0, 0, ms(5000))

	// Device clock goes backwards: sample keeps its own time
	s := tl.Ingest(0, 0, ms(1000))
	assert.Equal(t, 1.0, s.Elapsed)
	assert.Equal(t, uint64(1), tl.Wraparounds())

	// Index fallback restarts at zero
	s = tl.Ingest(0, 0, nil)
	assert.Equal(t, 0.0, s.Elapsed)
}

func TestTimelinePlotCapacity(t *testing.T) {
	tl := NewTimeline(newFakeClock().Now)
	for i := 0; i < PlotCapacity+10; i++ {
		tl.Ingest(float64(i), 0, nil)
	}
	assert.Equal(t, PlotCapacity, tl.Len())

	series := tl.Snapshot()
	require.Equal(t, PlotCapacity, series.Len())
	assert.InDelta(t, 10/NominalRateHz, series.Times[0], 1e-12)
	assert.Equal(t, 10.0, series.Targets[0])
	assert.Equal(t, float64(PlotCapacity+9), series.Targets[PlotCapacity-1])
}

func TestTimelineHistoryAgesOut(t *testing.T) {
	tl := NewTimeline(newFakeClock().Now)
	for i := 0; i <= 12; i++ {
		tl.Ingest(0, float64(i), ms(float64(i*1000)))
	}
	// Cutoff is 12 - 10 = 2, entries at 2..12 survive
	assert.Equal(t, 11, tl.History().Len())

	tl.ResetHistory()
	assert.Equal(t, 0, tl.History().Len())
	assert.Equal(t, 13, tl.Len())
}

func TestTimelineRxRate(t *testing.T) {
	tl := NewTimeline(newFakeClock().Now)
	assert.Equal(t, NominalRateHz, tl.RxRate())

	for i := 0; i < 100; i++ {
		tl.Ingest(0, 0, ms(float64(i*10)))
	}
	assert.InDelta(t, 100.0, tl.RxRate(), 1e-6)
}

func TestTimelineReset(t *testing.T) {
	tl := NewTimeline(nil)
	tl.Ingest(0, 0, ms(100))
	tl.Reset()

	assert.Equal(t, 0, tl.Len())
	_, ok := tl.LastElapsed()
	assert.False(t, ok)
	assert.Equal(t, 0.0, tl.Ingest(0, 0, nil).Elapsed)
}
