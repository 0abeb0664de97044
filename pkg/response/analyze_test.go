// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package response

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// stepPoints is a 0 -> 10 step at t=0.2 s that peaks at 11 and settles
func stepPoints() []WindowPoint {
	return []WindowPoint{
		{T: 0.0, Target: 0, Actual: 0},
		{T: 0.1, Target: 0, Actual: 0},
		{T: 0.2, Target: 10, Actual: 0},
		{T: 0.3, Target: 10, Actual: 2},
		{T: 0.4, Target: 10, Actual: 9.5},
		{T: 0.5, Target: 10, Actual: 11},
		{T: 0.6, Target: 10, Actual: 10.5},
		{T: 0.7, Target: 10, Actual: 10.1},
		{T: 0.8, Target: 10, Actual: 10},
		{T: 0.9, Target: 10, Actual: 10},
		{T: 1.0, Target: 10, Actual: 10},
	}
}

func TestAnalyzeRangeStep(t *testing.T) {
	m := AnalyzeRange(stepPoints(), 0.2, 1.0, false)

	assert.True(t, m.Ready())
	assert.Equal(t, 10.0, m.Target)
	assert.Equal(t, 0.0, m.PrevTarget)
	assert.Equal(t, 9, m.Samples)
	assert.InDelta(t, 10.0, m.Overshoot.Value, 1e-9)
	assert.InDelta(t, 0.1, m.Rise.Value, 1e-9)
	assert.Equal(t, 11.0, m.Peak.Value)
	assert.InDelta(t, 0.3, m.PeakOffset, 1e-9)
	assert.InDelta(t, 0.5, m.Settling.Value, 1e-9)
	assert.InDelta(t, 0.0, m.SSE.Value, 1e-9)

	assert.Equal(t,
		"Settling: 0.500s | Rise: 0.100s | Peak: 11.000 @ 0.300s | %OS: 10.00% | SSE: 0.0000",
		m.String())
}

func TestAnalyzeRangeOrderIndependent(t *testing.T) {
	points := stepPoints()
	assert.Equal(t,
		AnalyzeRange(points, 0.2, 1.0, true),
		AnalyzeRange(points, 1.0, 0.2, true))
}

func TestAnalyzeRangeIdempotent(t *testing.T) {
	points := stepPoints()
	first := AnalyzeRange(points, 0.25, 0.95, false).String()
	second := AnalyzeRange(points, 0.25, 0.95, false).String()
	assert.Equal(t, first, second)
}

func TestAnalyzeRangePlaceholders(t *testing.T) {
	points := stepPoints()
	assert.Equal(t, StatusInvalidRange, AnalyzeRange(points, 0.5, 0.5, false).String())
	assert.Equal(t, StatusNoData, AnalyzeRange(points, 5, 6, false).String())
	assert.False(t, AnalyzeRange(nil, 0, 1, false).Ready())
}

func TestAnalyzeRangeFlatStep(t *testing.T) {
	// Previous target equals target: no step to measure against
	m := AnalyzeRange(stepPoints(), 0.5, 1.0, false)
	assert.Equal(t, 10.0, m.PrevTarget)
	assert.False(t, m.Overshoot.OK)
	assert.False(t, m.Rise.OK)
	assert.Contains(t, m.String(), "Rise: --")
	assert.Contains(t, m.String(), "%OS: --")
}

func TestAnalyzeRangeNotSettled(t *testing.T) {
	m := AnalyzeRange(stepPoints(), 0.2, 0.5, false)
	assert.False(t, m.Settling.OK)
	assert.Contains(t, m.String(), "Settling: --")
}

func TestAnalyzeRangeDownwardStep(t *testing.T) {
	points := []WindowPoint{
		{T: 0.0, Target: 10, Actual: 10},
		{T: 0.1, Target: 0, Actual: 10},
		{T: 0.2, Target: 0, Actual: 8},
		{T: 0.3, Target: 0, Actual: 0.5},
		{T: 0.4, Target: 0, Actual: -1},
		{T: 0.5, Target: 0, Actual: 0},
	}
	m := AnalyzeRange(points, 0.1, 0.5, false)
	assert.Equal(t, 10.0, m.PrevTarget)
	assert.InDelta(t, 10.0, m.Overshoot.Value, 1e-9)
	assert.InDelta(t, 0.1, m.Rise.Value, 1e-9)
	assert.InDelta(t, 0.4, m.Settling.Value, 1e-9)
}

func TestAnalyzeRangeSSEPercent(t *testing.T) {
	points := []WindowPoint{
		{T: 0.0, Target: 10, Actual: 9},
		{T: 0.5, Target: 10, Actual: 9},
		{T: 1.0, Target: 10, Actual: 9},
	}
	assert.Contains(t, AnalyzeRange(points, 0, 1, true).String(), "SSE: 10.00%")
	assert.Contains(t, AnalyzeRange(points, 0, 1, false).String(), "SSE: 1.0000")

	// Zero target falls back to an absolute value
	zero := []WindowPoint{{T: 0, Target: 0, Actual: 0.5}, {T: 1, Target: 0, Actual: 0.5}}
	assert.Contains(t, AnalyzeRange(zero, 0, 1, true).String(), "SSE: -0.5000")
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 2.0, Median([]float64{3, 1, 2}))
	assert.Equal(t, 2.5, Median([]float64{4, 1, 3, 2}))
	assert.True(t, math.IsNaN(Median(nil)))

	xs := []float64{3, 1, 2}
	Median(xs)
	assert.Equal(t, []float64{3, 1, 2}, xs)
}
