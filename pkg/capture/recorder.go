// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package capture

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/Thermoquad/pidscope/pkg/response"
)

// flushEvery bounds how many rows sit in the CSV writer's buffer
const flushEvery = 50

// CSVRecorder appends every ingested sample to a CSV file as
// wall-clock timestamp, target and actual.
type CSVRecorder struct {
	mu      sync.Mutex
	closer  io.Closer
	w       *csv.Writer
	pending int
	rows    uint64
	path    string
}

// NewCSVRecorder writes a recording to w. If w is an io.Closer it is
// closed by Close.
func NewCSVRecorder(w io.Writer) (*CSVRecorder, error) {
	r := &CSVRecorder{w: csv.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		r.closer = c
	}
	if err := r.w.Write(RecordingHeader); err != nil {
		return nil, err
	}
	r.w.Flush()
	return r, r.w.Error()
}

// CreateCSVRecorder creates (truncating) a recording file at path
func CreateCSVRecorder(path string) (*CSVRecorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create recording: %w", err)
	}
	r, err := NewCSVRecorder(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.path = path
	return r, nil
}

// Record writes one sample
func (r *CSVRecorder) Record(s response.Sample) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	row := []string{
		strconv.FormatFloat(s.WallTime, 'f', 6, 64),
		strconv.FormatFloat(s.Target, 'g', -1, 64),
		strconv.FormatFloat(s.Actual, 'g', -1, 64),
	}
	if err := r.w.Write(row); err != nil {
		return err
	}
	r.rows++
	r.pending++
	if r.pending >= flushEvery {
		r.pending = 0
		r.w.Flush()
		return r.w.Error()
	}
	return nil
}

// Rows returns the number of samples written
func (r *CSVRecorder) Rows() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows
}

// Path returns the file path, if the recorder was created from one
func (r *CSVRecorder) Path() string { return r.path }

// Close flushes buffered rows and closes the underlying file
func (r *CSVRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.w.Flush()
	err := r.w.Error()
	if r.closer != nil {
		if cerr := r.closer.Close(); err == nil {
			err = cerr
		}
		r.closer = nil
	}
	return err
}
