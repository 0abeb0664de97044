// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package capture

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/Thermoquad/pidscope/pkg/response"
)

// CaptureVersion is the current capture file format version
const CaptureVersion = 1

// ErrCaptureVersion is returned for capture files from a newer format
var ErrCaptureVersion = errors.New("unsupported capture version")

// Capture is a saved response window: its samples plus the cursor and
// marker placement at the time it was saved.
type Capture struct {
	Created    time.Time
	Source     string
	SSEPercent bool
	CursorA    *float64
	CursorB    *float64
	Markers    []float64
	Points     []response.WindowPoint
}

// Wire form: integer-keyed map with points packed as 3-element arrays
type capturePoint struct {
	_      struct{} `cbor:",toarray"`
	T      float64
	Target float64
	Actual float64
}

type captureWire struct {
	Version    int            `cbor:"0,keyasint"`
	CreatedNs  int64          `cbor:"1,keyasint"`
	Source     string         `cbor:"2,keyasint,omitempty"`
	SSEPercent bool           `cbor:"3,keyasint,omitempty"`
	CursorA    *float64       `cbor:"4,keyasint,omitempty"`
	CursorB    *float64       `cbor:"5,keyasint,omitempty"`
	Markers    []float64      `cbor:"6,keyasint,omitempty"`
	Points     []capturePoint `cbor:"7,keyasint"`
}

// NewCapture snapshots a window's points, cursors and markers
func NewCapture(w *response.Window, source string, ssePercent bool, now time.Time) Capture {
	a, b := w.Cursors()
	c := Capture{
		Created:    now,
		Source:     source,
		SSEPercent: ssePercent,
		CursorA:    a,
		CursorB:    b,
		Points:     w.Points(),
	}
	for _, m := range w.Markers() {
		c.Markers = append(c.Markers, m.T)
	}
	return c
}

// EncodeCapture serializes a capture to CBOR
func EncodeCapture(c Capture) ([]byte, error) {
	wire := captureWire{
		Version:    CaptureVersion,
		CreatedNs:  c.Created.UnixNano(),
		Source:     c.Source,
		SSEPercent: c.SSEPercent,
		CursorA:    c.CursorA,
		CursorB:    c.CursorB,
		Markers:    c.Markers,
		Points:     make([]capturePoint, len(c.Points)),
	}
	for i, p := range c.Points {
		wire.Points[i] = capturePoint{T: p.T, Target: p.Target, Actual: p.Actual}
	}
	data, err := cbor.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("failed to encode capture: %w", err)
	}
	return data, nil
}

// DecodeCapture parses a CBOR capture
func DecodeCapture(data []byte) (Capture, error) {
	if len(data) == 0 {
		return Capture{}, fmt.Errorf("empty capture")
	}
	var wire captureWire
	if err := cbor.Unmarshal(data, &wire); err != nil {
		return Capture{}, fmt.Errorf("failed to decode capture: %w", err)
	}
	if wire.Version < 1 || wire.Version > CaptureVersion {
		return Capture{}, fmt.Errorf("%w: %d", ErrCaptureVersion, wire.Version)
	}
	c := Capture{
		Created:    time.Unix(0, wire.CreatedNs),
		Source:     wire.Source,
		SSEPercent: wire.SSEPercent,
		CursorA:    wire.CursorA,
		CursorB:    wire.CursorB,
		Markers:    wire.Markers,
		Points:     make([]response.WindowPoint, len(wire.Points)),
	}
	for i, p := range wire.Points {
		c.Points[i] = response.WindowPoint{T: p.T, Target: p.Target, Actual: p.Actual}
	}
	return c, nil
}

// WriteCapture encodes a capture to w
func WriteCapture(w io.Writer, c Capture) error {
	data, err := EncodeCapture(c)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// ReadCapture decodes a capture from r
func ReadCapture(r io.Reader) (Capture, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Capture{}, err
	}
	return DecodeCapture(data)
}

// Metrics analyzes the capture between its saved cursors
func (c Capture) Metrics() response.WindowMetrics {
	if c.CursorA == nil || c.CursorB == nil {
		return response.WindowMetrics{Status: response.StatusCursorsIncomplete}
	}
	return response.AnalyzeRange(c.Points, *c.CursorA, *c.CursorB, c.SSEPercent)
}
