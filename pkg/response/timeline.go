// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package response

import "time"

const (
	// NominalRateHz is the assumed sample rate when no device time is supplied
	NominalRateHz = 50.0
	// PlotCapacity bounds the plotting buffer
	PlotCapacity = 300
	// HistorySeconds bounds the averaging buffer by age
	HistorySeconds = 10.0
	// rxRateMinSpan is the shortest sample span used for the rate estimate
	rxRateMinSpan = 0.5
)

// Series is a column-oriented copy of the plotting buffer
type Series struct {
	Times   []float64
	Targets []float64
	Actuals []float64
}

// Len returns the number of points in the series
func (s Series) Len() int { return len(s.Times) }

// Timeline owns the rolling plot buffer and the time-bounded history buffer,
// and resolves each sample's timestamp.
type Timeline struct {
	plot    *Ring[Sample]
	history *History
	clock   Clock

	index          int
	haveDevice     bool
	lastDeviceTime float64
	wraparounds    uint64
}

// NewTimeline creates an empty timeline. A nil clock uses time.Now.
func NewTimeline(clock Clock) *Timeline {
	if clock == nil {
		clock = time.Now
	}
	return &Timeline{
		plot:    NewRing[Sample](PlotCapacity),
		history: NewHistory(),
		clock:   clock,
	}
}

// Stamp resolves the timestamp for a new observation without storing it.
//
// With no device time the synthesized index advances by one. A device time
// earlier than the previous one is treated as a wraparound and restarts the
// synthesized index at zero; the sample keeps its own device timestamp.
func (tl *Timeline) Stamp(target, actual float64, deviceTimeMs *float64) Sample {
	var elapsed float64
	if deviceTimeMs == nil {
		elapsed = float64(tl.index) / NominalRateHz
		tl.index++
	} else {
		elapsed = *deviceTimeMs / 1000.0
		if tl.haveDevice && elapsed < tl.lastDeviceTime {
			tl.index = 0
			tl.wraparounds++
		}
		tl.haveDevice = true
		tl.lastDeviceTime = elapsed
	}
	return Sample{
		Elapsed:  elapsed,
		Target:   target,
		Actual:   actual,
		WallTime: wallSeconds(tl.clock()),
	}
}

// Append stores a stamped sample in both buffers and ages out old history
func (tl *Timeline) Append(s Sample) {
	tl.plot.Push(s)
	tl.history.Append(s.Elapsed, s.Actual)
	tl.history.Trim(s.Elapsed - HistorySeconds)
}

// Ingest stamps and appends in one step
func (tl *Timeline) Ingest(target, actual float64, deviceTimeMs *float64) Sample {
	s := tl.Stamp(target, actual, deviceTimeMs)
	tl.Append(s)
	return s
}

// History returns the averaging buffer
func (tl *Timeline) History() *History { return tl.history }

// ResetHistory empties the averaging buffer, keeping the plot
func (tl *Timeline) ResetHistory() { tl.history.Reset() }

// Len returns the number of samples in the plot buffer
func (tl *Timeline) Len() int { return tl.plot.Len() }

// Last returns the newest sample
func (tl *Timeline) Last() (Sample, bool) { return tl.plot.Last() }

// LastElapsed returns the newest sample's elapsed time, if any
func (tl *Timeline) LastElapsed() (float64, bool) {
	s, ok := tl.plot.Last()
	return s.Elapsed, ok
}

// Wraparounds returns how many device clock resets were observed
func (tl *Timeline) Wraparounds() uint64 { return tl.wraparounds }

// Samples copies the plot buffer, oldest first
func (tl *Timeline) Samples() []Sample { return tl.plot.Slice() }

// Snapshot copies the plot buffer into columns
func (tl *Timeline) Snapshot() Series {
	n := tl.plot.Len()
	s := Series{
		Times:   make([]float64, n),
		Targets: make([]float64, n),
		Actuals: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		p := tl.plot.At(i)
		s.Times[i] = p.Elapsed
		s.Targets[i] = p.Target
		s.Actuals[i] = p.Actual
	}
	return s
}

// RxRate estimates the received sample rate from the plot buffer. It falls
// back to the nominal rate until enough span has accumulated.
func (tl *Timeline) RxRate() float64 {
	n := tl.plot.Len()
	if n < 2 {
		return NominalRateHz
	}
	span := tl.plot.At(n-1).Elapsed - tl.plot.At(0).Elapsed
	if span < rxRateMinSpan {
		return NominalRateHz
	}
	return float64(n-1) / span
}

// Reset clears both buffers and the timebase state
func (tl *Timeline) Reset() {
	tl.plot.Reset()
	tl.history.Reset()
	tl.index = 0
	tl.haveDevice = false
	tl.lastDeviceTime = 0
	tl.wraparounds = 0
}
