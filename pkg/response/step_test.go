// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package response

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stepRig drives a timeline and tracker the same way the pipeline does
type stepRig struct {
	tl *Timeline
	st *StepTracker
}

func newStepRig() *stepRig {
	return &stepRig{tl: NewTimeline(newFakeClock().Now), st: NewStepTracker()}
}

func (r *stepRig) feed(target, actual float64, timeMs int) Sample {
	s := r.tl.Stamp(target, actual, ms(float64(timeMs)))
	if r.st.ObserveTarget(s) {
		r.tl.ResetHistory()
	}
	r.tl.Append(s)
	r.st.Update(s, r.tl.History())
	return s
}

func TestStepDetectionAtFirstChange(t *testing.T) {
	r := newStepRig()
	targets := []float64{0, 0, 0, 10, 10, 10}
	for i, target := range targets {
		r.feed(target, 0, i*100)
		if i < 3 {
			assert.Equal(t, StepIdle, r.st.State())
		}
	}

	ep, ok := r.st.Episode()
	require.True(t, ok)
	require.NotNil(t, ep.PrevTarget)
	require.NotNil(t, ep.StartTime)
	assert.Equal(t, 0.0, *ep.PrevTarget)
	assert.Equal(t, 0.3, *ep.StartTime)
	assert.Equal(t, 10.0, ep.Target)
}

func TestStepIgnoresSubToleranceChange(t *testing.T) {
	r := newStepRig()
	r.feed(5, 0, 0)
	r.feed(5+1e-9, 0, 100)
	assert.Equal(t, StepIdle, r.st.State())
}

// settleProfile feeds a 0 -> 10 step at t=0.1 s with 100 ms samples.
// Actual is out of band before inBandMs and in band (9.9) afterwards,
// except at glitchMs when that is non-zero.
func settleProfile(r *stepRig, inBandMs, glitchMs, endMs int) {
	r.feed(0, 0, 0)
	for tms := 100; tms <= endMs; tms += 100 {
		actual := 5.0
		if tms >= inBandMs && tms != glitchMs {
			actual = 9.9
		}
		r.feed(10, actual, tms)
	}
}

func TestStepSettlingTime(t *testing.T) {
	r := newStepRig()
	settleProfile(r, 1000, 0, 2900)
	assert.Equal(t, StepSettling, r.st.State())

	r.feed(10, 9.9, 3000)
	assert.Equal(t, StepSettled, r.st.State())

	ep, _ := r.st.Episode()
	v, ok := ep.SettlingTime()
	require.True(t, ok)
	assert.InDelta(t, 2.9, v, 1e-9)
	assert.Equal(t, "2.90", r.st.Metrics(false).SettlingTime)
}

func TestStepOutOfBandResetsSettleClock(t *testing.T) {
	r := newStepRig()
	// In band from 1.0 s, isolated excursion at 2.9 s
	settleProfile(r, 1000, 2900, 4900)
	assert.Equal(t, StepSettling, r.st.State())

	r.feed(10, 9.9, 5000)
	assert.Equal(t, StepSettled, r.st.State())

	ep, _ := r.st.Episode()
	v, ok := ep.SettlingTime()
	require.True(t, ok)
	assert.InDelta(t, 4.9, v, 1e-9)
}

func TestStepSteadyStateError(t *testing.T) {
	r := newStepRig()
	settleProfile(r, 1000, 0, 4900)
	assert.Equal(t, Unavailable, r.st.Metrics(false).SSE)

	// Settled at 3.0 s, SSE available two seconds later
	r.feed(10, 9.9, 5000)
	assert.Equal(t, "0.1000", r.st.Metrics(false).SSE)
	assert.Equal(t, "1.00", r.st.Metrics(true).SSE)
}

func TestStepSSEPercentWithZeroTarget(t *testing.T) {
	r := newStepRig()
	r.feed(10, 10, 0)
	for tms := 100; tms <= 5000; tms += 100 {
		r.feed(0, 0.005, tms)
	}
	m := r.st.Metrics(true)
	assert.Equal(t, StepSettled, m.State)
	assert.Equal(t, Unavailable, m.SSE)
	assert.Equal(t, "-0.0050", r.st.Metrics(false).SSE)
}

func TestStepOvershootRunningMax(t *testing.T) {
	r := newStepRig()
	r.feed(0, 0, 0)
	r.feed(10, 0, 100)
	assert.Equal(t, "0.00", r.st.Metrics(false).Overshoot)

	r.feed(10, 12, 200)
	assert.Equal(t, "20.00", r.st.Metrics(false).Overshoot)

	// Running max never decreases
	r.feed(10, 11, 300)
	assert.Equal(t, "20.00", r.st.Metrics(false).Overshoot)
}

func TestStepOvershootDownward(t *testing.T) {
	r := newStepRig()
	r.feed(10, 10, 0)
	r.feed(0, 5, 100)
	r.feed(0, -1, 200)
	assert.Equal(t, "10.00", r.st.Metrics(false).Overshoot)
}

func TestStepNewChangeDiscardsEpisode(t *testing.T) {
	r := newStepRig()
	settleProfile(r, 200, 0, 3000)
	require.Equal(t, StepSettled, r.st.State())

	r.feed(20, 9.9, 3100)
	assert.Equal(t, StepArmed, r.st.State())
	ep, _ := r.st.Episode()
	assert.Equal(t, 10.0, *ep.PrevTarget)
	assert.Nil(t, ep.SettledTime)
	assert.Equal(t, Unavailable, r.st.Metrics(false).SettlingTime)
	// History restarted with the new step
	assert.Equal(t, 1, r.tl.History().Len())
}

func TestStepExplicitStartAlignsToNextSample(t *testing.T) {
	st := NewStepTracker()
	st.Start(5)
	assert.Equal(t, StepArmed, st.State())
	ep, _ := st.Episode()
	assert.Nil(t, ep.StartTime)

	st.ObserveTarget(Sample{Elapsed: 1.25, Target: 5})
	st.Update(Sample{Elapsed: 1.25, Target: 5, Actual: 6}, nil)

	ep, _ = st.Episode()
	require.NotNil(t, ep.StartTime)
	assert.Equal(t, 1.25, *ep.StartTime)
	assert.Nil(t, ep.PrevTarget)
	// Step measured from zero: 1 over a 5 unit step
	assert.Equal(t, "20.00", st.Metrics(false).Overshoot)
}

func TestStepMetricsIdle(t *testing.T) {
	m := NewStepTracker().Metrics(false)
	assert.Equal(t, StepIdle, m.State)
	assert.Equal(t, Unavailable, m.SettlingTime)
	assert.Equal(t, Unavailable, m.Overshoot)
	assert.Equal(t, Unavailable, m.SSE)
	assert.Contains(t, m.String(), "Step idle")
}

func TestSettleBand(t *testing.T) {
	assert.InDelta(t, 0.2, SettleBand(10), 1e-12)
	assert.InDelta(t, 0.2, SettleBand(-10), 1e-12)
	assert.Equal(t, 0.01, SettleBand(0.1))
}
