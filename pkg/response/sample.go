// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package response turns decoded telemetry into a rolling time series and
// computes transient-response metrics (overshoot, settling, rise time and
// steady-state error) live and over operator-selected windows.
package response

import "time"

// Sample is one timestamped target/actual observation
type Sample struct {
	Elapsed  float64 // seconds on the timeline's timebase
	Target   float64
	Actual   float64
	WallTime float64 // unix seconds at ingest
}

// Clock returns the current wall-clock time
type Clock func() time.Time

func wallSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// Unavailable is shown in place of a metric that cannot be computed yet
const Unavailable = "--"
