// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package pidlink

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Classify decodes a single trimmed line into an Event.
//
// Order matters: PID status, tune status, batch, then bare pair. A PID= or
// TUNE= line that fails its own parser falls through to the later parsers,
// where its prefixed first field can never parse as a number, so it ends up
// Unrecognized.
func Classify(line string) Event {
	if strings.HasPrefix(line, PrefixPIDStatus) {
		if ev, err := parsePIDStatus(line[len(PrefixPIDStatus):]); err == nil {
			return ev
		}
	}

	if strings.HasPrefix(line, PrefixTuneStatus) {
		if ev, ok := parseTuneStatus(line[len(PrefixTuneStatus):]); ok {
			return ev
		}
	}

	// Batch lines are always consumed, even when nothing could be recovered
	if strings.HasPrefix(line, PrefixBatch) {
		return parseBatch(line)
	}

	pair, err := parsePair(line)
	if err != nil {
		return Unrecognized{Line: line, Err: err}
	}
	return RawPair{Pair: pair}
}

// parsePIDStatus parses "P=<f>,I=<f>,D=<f>" in any field order
func parsePIDStatus(payload string) (StatusReport, error) {
	var p, i, d *float64

	for _, part := range strings.Split(payload, ",") {
		var dst **float64
		switch {
		case strings.HasPrefix(part, "P="):
			dst = &p
		case strings.HasPrefix(part, "I="):
			dst = &i
		case strings.HasPrefix(part, "D="):
			dst = &d
		default:
			continue
		}
		v, err := parseFloat(part[2:])
		if err != nil {
			return StatusReport{}, fmt.Errorf("%w: PID field %q: %v", ErrMalformedLine, part, err)
		}
		*dst = &v
	}

	if p == nil || i == nil || d == nil {
		return StatusReport{}, fmt.Errorf("%w: missing PID fields", ErrMalformedLine)
	}
	return StatusReport{P: *p, I: *i, D: *d}, nil
}

// parseTuneStatus recognises the OK, ERR and START sub-states
func parseTuneStatus(payload string) (TuneStatus, bool) {
	switch {
	case strings.HasPrefix(payload, TuneOK):
		// TUNE=OK,Ku=...,Pu=...,Kp=...,Ki=...,Kd=...
		gains := make(map[string]string)
		parts := strings.Split(payload, ",")
		for _, part := range parts[1:] {
			k, v, found := strings.Cut(part, "=")
			if !found {
				continue
			}
			gains[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
		return TuneStatus{State: TuneOK, Gains: gains}, true
	case strings.HasPrefix(payload, TuneERR):
		return TuneStatus{State: TuneERR}, true
	case strings.HasPrefix(payload, TuneStart):
		return TuneStatus{State: TuneStart}, true
	}
	return TuneStatus{}, false
}

// parseBatch decodes "B,<t0_ms>,<dt_ms>,<count>,<t1>,<a1>,..."
func parseBatch(line string) SampleBatch {
	parts := strings.Split(line, ",")
	if len(parts) < batchMinFields {
		return SampleBatch{Err: fmt.Errorf("%w: %d fields", ErrShortBatch, len(parts))}
	}

	t0, err := parseFloat(parts[1])
	if err != nil {
		return SampleBatch{Err: fmt.Errorf("%w: t0 %q", ErrMalformedLine, parts[1])}
	}
	dt, err := parseFloat(parts[2])
	if err != nil {
		return SampleBatch{T0Ms: t0, Err: fmt.Errorf("%w: dt %q", ErrMalformedLine, parts[2])}
	}
	count, err := strconv.Atoi(strings.TrimSpace(parts[3]))
	if err != nil {
		return SampleBatch{T0Ms: t0, DtMs: dt, Err: fmt.Errorf("%w: count %q", ErrMalformedLine, parts[3])}
	}

	batch := SampleBatch{T0Ms: t0, DtMs: dt, Count: count}
	if count <= 0 {
		batch.Err = fmt.Errorf("%w: count %d", ErrMalformedLine, count)
		return batch
	}

	expected := batchHeaderFields + 2*count
	if len(parts) < expected {
		batch.Err = fmt.Errorf("%w: need %d fields, got %d", ErrShortBatch, expected, len(parts))
		return batch
	}

	batch.Pairs = make([]Pair, 0, count)
	index := batchFirstPair
	for i := 0; i < count; i++ {
		target, err := parseFloat(parts[index])
		if err != nil {
			batch.Err = fmt.Errorf("%w: pair %d target %q", ErrShortBatch, i, parts[index])
			break
		}
		actual, err := parseFloat(parts[index+1])
		if err != nil {
			batch.Err = fmt.Errorf("%w: pair %d actual %q", ErrShortBatch, i, parts[index+1])
			break
		}
		batch.Pairs = append(batch.Pairs, Pair{Target: target, Actual: actual})
		index += 2
	}
	return batch
}

// parsePair splits on the first comma and parses both halves
func parsePair(line string) (Pair, error) {
	left, right, found := strings.Cut(line, ",")
	if !found {
		return Pair{}, fmt.Errorf("%w: no comma", ErrMalformedLine)
	}
	target, err := parseFloat(left)
	if err != nil {
		return Pair{}, fmt.Errorf("%w: target %q", ErrMalformedLine, left)
	}
	actual, err := parseFloat(right)
	if err != nil {
		return Pair{}, fmt.Errorf("%w: actual %q", ErrMalformedLine, right)
	}
	return Pair{Target: target, Actual: actual}, nil
}

// parseFloat trims whitespace and parses a float64. Out-of-range values
// saturate to ±Inf instead of failing.
func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return v, nil
		}
		return 0, err
	}
	return v, nil
}
