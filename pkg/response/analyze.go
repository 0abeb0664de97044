// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package response

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// Placeholder texts reported instead of metrics
const (
	StatusCursorsIncomplete = "Cursors: set A and B"
	StatusInvalidRange      = "Cursors: invalid range"
	StatusNoData            = "Cursors: no data"
)

const (
	prevTargetLookback = 0.2
	riseLowFraction    = 0.1
	riseHighFraction   = 0.9
	sseTailFraction    = 0.2
	sseTailFloor       = 0.1
)

// Metric is an optional numeric result
type Metric struct {
	Value float64
	OK    bool
}

func some(v float64) Metric { return Metric{Value: v, OK: true} }

// WindowMetrics is the result of analyzing a cursor range. When Status is
// non-empty the range could not be analyzed and only Status is meaningful.
type WindowMetrics struct {
	Status string

	TStart     float64
	TEnd       float64
	Target     float64
	PrevTarget float64
	Samples    int

	Settling   Metric
	Rise       Metric
	Peak       Metric
	PeakOffset float64
	Overshoot  Metric
	SSE        Metric
	SSEPercent bool
}

// Ready reports whether metrics were computed
func (m WindowMetrics) Ready() bool { return m.Status == "" }

// String renders the metrics line shown under the window plot
func (m WindowMetrics) String() string {
	if !m.Ready() {
		return m.Status
	}
	settle := Unavailable
	if m.Settling.OK {
		settle = fmt.Sprintf("%.3fs", m.Settling.Value)
	}
	rise := Unavailable
	if m.Rise.OK {
		rise = fmt.Sprintf("%.3fs", m.Rise.Value)
	}
	peak := Unavailable
	if m.Peak.OK {
		peak = fmt.Sprintf("%.3f @ %.3fs", m.Peak.Value, m.PeakOffset)
	}
	overshoot := Unavailable
	if m.Overshoot.OK {
		overshoot = fmt.Sprintf("%.2f%%", m.Overshoot.Value)
	}
	sse := Unavailable
	if m.SSE.OK {
		if m.SSEPercent && m.Target != 0 {
			sse = fmt.Sprintf("%.2f%%", m.SSE.Value/m.Target*100.0)
		} else {
			sse = fmt.Sprintf("%.4f", m.SSE.Value)
		}
	}
	return fmt.Sprintf("Settling: %s | Rise: %s | Peak: %s | %%OS: %s | SSE: %s",
		settle, rise, peak, overshoot, sse)
}

// AnalyzeRange computes response metrics over the points between two
// cursor times. Cursor order does not matter. points must be in time order.
func AnalyzeRange(points []WindowPoint, a, b float64, ssePercent bool) WindowMetrics {
	tStart, tEnd := math.Min(a, b), math.Max(a, b)
	if tEnd <= tStart {
		return WindowMetrics{Status: StatusInvalidRange}
	}

	var times, targets, actuals, prevTargets []float64
	for _, p := range points {
		if p.T >= tStart && p.T <= tEnd {
			times = append(times, p.T)
			targets = append(targets, p.Target)
			actuals = append(actuals, p.Actual)
		} else if p.T >= tStart-prevTargetLookback && p.T < tStart {
			prevTargets = append(prevTargets, p.Target)
		}
	}
	if len(times) == 0 {
		return WindowMetrics{Status: StatusNoData}
	}

	target := Median(targets)
	prev := target
	if len(prevTargets) > 0 {
		prev = Median(prevTargets)
	}

	m := WindowMetrics{
		TStart:     tStart,
		TEnd:       tEnd,
		Target:     target,
		PrevTarget: prev,
		Samples:    len(times),
		SSEPercent: ssePercent,
	}

	direction := 1.0
	if target < prev {
		direction = -1.0
	}
	stepSize := math.Abs(target - prev)

	if stepSize > 0 {
		over := 0.0
		for _, v := range actuals {
			over = math.Max(over, direction*(v-target))
		}
		m.Overshoot = some(over / stepSize * 100.0)
		m.Rise = riseTime(times, actuals, prev, target, direction)
	}

	peakIdx := 0
	for i, v := range actuals {
		if v > actuals[peakIdx] {
			peakIdx = i
		}
	}
	m.Peak = some(actuals[peakIdx])
	m.PeakOffset = times[peakIdx] - tStart

	m.Settling = settlingTime(times, actuals, target, tStart)

	tail := math.Max((tEnd-tStart)*sseTailFraction, sseTailFloor)
	sseStart := math.Max(tStart, tEnd-tail)
	var tailActuals []float64
	for i, t := range times {
		if t >= sseStart && t <= tEnd {
			tailActuals = append(tailActuals, actuals[i])
		}
	}
	if len(tailActuals) > 0 {
		m.SSE = some(target - stat.Mean(tailActuals, nil))
	}
	return m
}

// riseTime measures the 10% to 90% crossing interval in the step direction
func riseTime(times, actuals []float64, prev, target, direction float64) Metric {
	lo := prev + riseLowFraction*(target-prev)
	hi := prev + riseHighFraction*(target-prev)
	crossed := func(v, level float64) bool {
		if direction > 0 {
			return v >= level
		}
		return v <= level
	}
	tLo, tHi := math.NaN(), math.NaN()
	for i, v := range actuals {
		if math.IsNaN(tLo) && crossed(v, lo) {
			tLo = times[i]
		}
		if math.IsNaN(tHi) && crossed(v, hi) {
			tHi = times[i]
		}
		if !math.IsNaN(tLo) && !math.IsNaN(tHi) {
			break
		}
	}
	if math.IsNaN(tLo) || math.IsNaN(tHi) || tHi < tLo {
		return Metric{}
	}
	return some(tHi - tLo)
}

// settlingTime finds the earliest sample after which every remaining sample
// stays inside the band, measured from tStart.
func settlingTime(times, actuals []float64, target, tStart float64) Metric {
	band := SettleBand(target)
	first := len(actuals)
	for i := len(actuals) - 1; i >= 0; i-- {
		if math.Abs(actuals[i]-target) > band {
			break
		}
		first = i
	}
	if first == len(actuals) {
		return Metric{}
	}
	return some(times[first] - tStart)
}

// Median returns the middle value of xs, averaging the two middle values
// for an even count. xs is not modified.
func Median(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	s := slices.Clone(xs)
	slices.Sort(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return stat.Mean(s[mid-1:mid+1], nil)
}
