// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package capture persists telemetry: live sample recordings, response
// window exports (CSV, CBOR, PNG) and SQLite session logs.
package capture

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Thermoquad/pidscope/pkg/response"
)

// CSV headers
var (
	WindowHeader    = []string{"time_s", "target", "actual"}
	RecordingHeader = []string{"timestamp", "target", "actual"}
)

// ErrBadHeader is returned when a CSV file has an unknown header
var ErrBadHeader = errors.New("unrecognized CSV header")

func formatFixed(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// WriteWindowCSV writes window points with six-decimal fixed formatting
func WriteWindowCSV(w io.Writer, points []response.WindowPoint) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(WindowHeader); err != nil {
		return err
	}
	for _, p := range points {
		row := []string{formatFixed(p.T), formatFixed(p.Target), formatFixed(p.Actual)}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV reads either a window export or a live recording. Recording
// timestamps are wall-clock seconds and are rebased to the first row.
func ReadCSV(r io.Reader) ([]response.WindowPoint, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 3
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	rebase := false
	switch strings.ToLower(strings.TrimSpace(header[0])) {
	case WindowHeader[0]:
	case RecordingHeader[0]:
		rebase = true
	default:
		return nil, fmt.Errorf("%w: %q", ErrBadHeader, header[0])
	}

	var points []response.WindowPoint
	var origin float64
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		var vals [3]float64
		for i := range vals {
			vals[i], err = strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %s: %w", line, header[i], err)
			}
		}
		if rebase {
			if len(points) == 0 {
				origin = vals[0]
			}
			vals[0] -= origin
		}
		points = append(points, response.WindowPoint{T: vals[0], Target: vals[1], Actual: vals[2]})
	}
	return points, nil
}
