// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package pidlink

// Line prefixes (case-sensitive)
const (
	PrefixPIDStatus  = "PID="
	PrefixTuneStatus = "TUNE="
	PrefixBatch      = "B,"
)

// Tune status sub-states
const (
	TuneOK    = "OK"
	TuneERR   = "ERR"
	TuneStart = "START"
)

// Batch line layout: B,<t0_ms>,<dt_ms>,<count>,<t1>,<a1>,...
const (
	batchHeaderFields = 4
	batchMinFields    = 5
	batchFirstPair    = 4
)

// LineTerminator separates records on the wire
const LineTerminator = "\n"
