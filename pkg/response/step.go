// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package response

import (
	"fmt"
	"math"
)

const (
	// TargetChangeTolerance is the smallest target delta treated as a new step
	TargetChangeTolerance = 1e-6
	// SettleHoldSeconds is how long actual must stay in band to count as settled
	SettleHoldSeconds = 2.0
	// SSEAverageSeconds is the trailing span averaged for steady-state error
	SSEAverageSeconds = 2.0
	bandFraction      = 0.02
	bandFloor         = 0.01
)

// StepState is the lifecycle position of the live step episode
type StepState int

const (
	StepIdle StepState = iota
	StepArmed
	StepSettling
	StepSettled
)

func (s StepState) String() string {
	switch s {
	case StepIdle:
		return "idle"
	case StepArmed:
		return "armed"
	case StepSettling:
		return "settling"
	case StepSettled:
		return "settled"
	default:
		return fmt.Sprintf("StepState(%d)", int(s))
	}
}

// SettleBand returns the half-width of the settling band around target
func SettleBand(target float64) float64 {
	return math.Max(math.Abs(target)*bandFraction, bandFloor)
}

// stepGeometry returns the direction sign and magnitude of a step. With no
// previous target the step is measured from zero.
func stepGeometry(target float64, prev *float64) (direction, size float64) {
	from := 0.0
	if prev != nil {
		from = *prev
	}
	direction = 1.0
	if target < from {
		direction = -1.0
	}
	return direction, math.Abs(target - from)
}

// Episode is the state of one step response
type Episode struct {
	Target       float64
	PrevTarget   *float64
	StartTime    *float64
	SettleStart  *float64
	SettledTime  *float64
	OvershootMax float64
	SSE          *float64
}

// SettlingTime returns settled time minus start time once settled
func (e *Episode) SettlingTime() (float64, bool) {
	if e.SettledTime == nil || e.StartTime == nil {
		return 0, false
	}
	return *e.SettledTime - *e.StartTime, true
}

// OvershootPercent returns the running overshoot as a percentage of the step
func (e *Episode) OvershootPercent() (float64, bool) {
	_, size := stepGeometry(e.Target, e.PrevTarget)
	if size <= 0 {
		return 0, false
	}
	return e.OvershootMax / size * 100.0, true
}

// StepTracker follows target changes and computes live step metrics for
// exactly one episode at a time. A new target change discards the
// in-progress episode.
type StepTracker struct {
	haveTarget bool
	lastTarget float64
	episode    *Episode
}

// NewStepTracker creates an idle tracker
func NewStepTracker() *StepTracker {
	return &StepTracker{}
}

// ObserveTarget runs step detection for a new sample and reports whether a
// new episode started. The first target seen only primes the detector.
func (st *StepTracker) ObserveTarget(s Sample) bool {
	started := false
	if !st.haveTarget {
		st.haveTarget = true
	} else {
		if math.Abs(s.Target-st.lastTarget) > TargetChangeTolerance {
			prev := st.lastTarget
			start := s.Elapsed
			st.episode = &Episode{
				Target:     s.Target,
				PrevTarget: &prev,
				StartTime:  &start,
			}
			started = true
		}
	}
	st.lastTarget = s.Target

	// Episodes started explicitly align to the first sample that follows
	if st.episode != nil && st.episode.StartTime == nil {
		start := s.Elapsed
		st.episode.StartTime = &start
	}
	return started
}

// Start begins an episode toward target with no previous target. Its start
// time is taken from the next observed sample.
func (st *StepTracker) Start(target float64) {
	st.episode = &Episode{Target: target}
}

// Update advances overshoot, settling and steady-state error for the live
// episode using sample s and the averaging history.
func (st *StepTracker) Update(s Sample, history *History) {
	e := st.episode
	if e == nil || e.StartTime == nil {
		return
	}
	now := s.Elapsed

	direction, _ := stepGeometry(e.Target, e.PrevTarget)
	if over := direction * (s.Actual - e.Target); over > e.OvershootMax {
		e.OvershootMax = over
	}

	if math.Abs(s.Actual-e.Target) <= SettleBand(e.Target) {
		if e.SettleStart == nil {
			t := now
			e.SettleStart = &t
		} else if now-*e.SettleStart >= SettleHoldSeconds && e.SettledTime == nil {
			t := now
			e.SettledTime = &t
		}
	} else {
		e.SettleStart = nil
	}

	if e.SettledTime != nil && now-*e.SettledTime >= SSEAverageSeconds && history != nil {
		if avg, ok := history.Average(now-SSEAverageSeconds, now); ok {
			sse := e.Target - avg
			e.SSE = &sse
		}
	}
}

// State reports where the live episode is in its lifecycle
func (st *StepTracker) State() StepState {
	e := st.episode
	switch {
	case e == nil:
		return StepIdle
	case e.SettledTime != nil:
		return StepSettled
	case e.SettleStart != nil:
		return StepSettling
	default:
		return StepArmed
	}
}

// Episode returns a copy of the live episode
func (st *StepTracker) Episode() (Episode, bool) {
	if st.episode == nil {
		return Episode{}, false
	}
	return *st.episode, true
}

// Reset forgets the live episode and the last observed target
func (st *StepTracker) Reset() {
	st.haveTarget = false
	st.lastTarget = 0
	st.episode = nil
}

// StepMetrics is the display form of the live episode
type StepMetrics struct {
	State        StepState
	SettlingTime string
	Overshoot    string
	SSE          string
	SSEPercent   bool
}

func (m StepMetrics) String() string {
	sseUnit := ""
	if m.SSEPercent && m.SSE != Unavailable {
		sseUnit = "%"
	}
	return fmt.Sprintf("Step %s | Settling: %s s | Overshoot: %s %% | SSE: %s%s",
		m.State, m.SettlingTime, m.Overshoot, m.SSE, sseUnit)
}

// Metrics formats the live episode for display
func (st *StepTracker) Metrics(ssePercent bool) StepMetrics {
	m := StepMetrics{
		State:        st.State(),
		SettlingTime: Unavailable,
		Overshoot:    Unavailable,
		SSE:          Unavailable,
		SSEPercent:   ssePercent,
	}
	e := st.episode
	if e == nil {
		return m
	}
	if v, ok := e.SettlingTime(); ok {
		m.SettlingTime = fmt.Sprintf("%.2f", v)
	}
	if v, ok := e.OvershootPercent(); ok {
		m.Overshoot = fmt.Sprintf("%.2f", v)
	}
	if e.SSE != nil {
		m.SSE = formatSSE(*e.SSE, e.Target, ssePercent, "%.2f")
	}
	return m
}

// formatSSE renders a steady-state error absolutely or as a percentage of
// target. Percentage mode has no value for a zero target.
func formatSSE(sse, target float64, percent bool, percentFormat string) string {
	if !percent {
		return fmt.Sprintf("%.4f", sse)
	}
	if target == 0 {
		return Unavailable
	}
	return fmt.Sprintf(percentFormat, sse/target*100.0)
}
