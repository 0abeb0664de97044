// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package pidlink

import "errors"

// Sentinel errors carried by events that could not be fully decoded.
// None of them are fatal to the stream.
var (
	ErrMalformedLine = errors.New("malformed line")
	ErrShortBatch    = errors.New("short batch")
)

// Kind identifies the concrete type of an Event
type Kind int

const (
	KindUnrecognized Kind = iota
	KindStatusReport
	KindTuneStatus
	KindSampleBatch
	KindRawPair
)

// String returns the kind name used in logs and statistics
func (k Kind) String() string {
	switch k {
	case KindStatusReport:
		return "STATUS_REPORT"
	case KindTuneStatus:
		return "TUNE_STATUS"
	case KindSampleBatch:
		return "SAMPLE_BATCH"
	case KindRawPair:
		return "RAW_PAIR"
	default:
		return "UNRECOGNIZED"
	}
}

// Event is a decoded telemetry line. The set of implementations is closed:
// StatusReport, TuneStatus, SampleBatch, RawPair and Unrecognized.
type Event interface {
	Kind() Kind
	isEvent()
}

// Pair is one commanded target and measured actual value
type Pair struct {
	Target float64
	Actual float64
}

// StatusReport carries the controller's current PID gains
type StatusReport struct {
	P float64
	I float64
	D float64
}

// TuneStatus reports the autotuner state. Gains is only populated for OK.
type TuneStatus struct {
	State string
	Gains map[string]string
}

// Gain returns a numeric gain reported with TUNE=OK (e.g. "Kp")
func (t TuneStatus) Gain(key string) (float64, bool) {
	v, ok := t.Gains[key]
	if !ok {
		return 0, false
	}
	f, err := parseFloat(v)
	if err != nil {
		return 0, false
	}
	return f, true
}

// SampleBatch is a device-timestamped run of samples. Err is set when the
// header was unusable or the line was shorter than Count pairs; Pairs then
// holds whatever was recovered (possibly nothing).
type SampleBatch struct {
	T0Ms  float64
	DtMs  float64
	Count int
	Pairs []Pair
	Err   error
}

// DeviceTimeMs returns the device timestamp of the i-th pair
func (b SampleBatch) DeviceTimeMs(i int) float64 {
	return b.T0Ms + float64(i)*b.DtMs
}

// RawPair is a bare "<target>,<actual>" line with no device time
type RawPair struct {
	Pair
}

// Unrecognized is a line that matched no known format
type Unrecognized struct {
	Line string
	Err  error
}

func (StatusReport) Kind() Kind { return KindStatusReport }
func (TuneStatus) Kind() Kind   { return KindTuneStatus }
func (SampleBatch) Kind() Kind  { return KindSampleBatch }
func (RawPair) Kind() Kind      { return KindRawPair }
func (Unrecognized) Kind() Kind { return KindUnrecognized }

func (StatusReport) isEvent() {}
func (TuneStatus) isEvent()   {}
func (SampleBatch) isEvent()  {}
func (RawPair) isEvent()      {}
func (Unrecognized) isEvent() {}
