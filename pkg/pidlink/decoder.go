// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package pidlink

import "strings"

// MaxPendingBytes bounds the unterminated tail kept between Feed calls.
// A stream that never sends a terminator is discarded past this size, along
// with the rest of that line up to the next terminator.
const MaxPendingBytes = 64 * 1024

// DecodedLine is one complete line taken off the stream
type DecodedLine struct {
	Raw   string
	Event Event

	// Duplicate is advisory: the line (or its target/actual pair) repeats
	// the previous one and can be left out of an RX log.
	Duplicate bool
}

// LineDecoder accumulates text chunks and splits them into classified lines.
// Chunks may be split at any byte boundary.
type LineDecoder struct {
	pending    string
	dedup      *Deduplicator
	overflows  int
	discarding bool
}

// NewLineDecoder creates a new line decoder
func NewLineDecoder() *LineDecoder {
	return &LineDecoder{dedup: NewDeduplicator()}
}

// Reset drops any partial line and the deduplication history.
// Called on disconnect; the partial line is not recoverable.
func (d *LineDecoder) Reset() {
	d.pending = ""
	d.discarding = false
	d.dedup.Reset()
}

// Pending returns the buffered, not yet terminated text
func (d *LineDecoder) Pending() string {
	return d.pending
}

// Overflows returns how many times the pending buffer was discarded
func (d *LineDecoder) Overflows() int {
	return d.overflows
}

// Feed appends text and returns every line completed by it, in order.
// Empty lines are skipped.
func (d *LineDecoder) Feed(text string) []DecodedLine {
	if d.discarding {
		idx := strings.Index(text, LineTerminator)
		if idx < 0 {
			return nil
		}
		text = text[idx+len(LineTerminator):]
		d.discarding = false
	}
	d.pending += text

	var lines []DecodedLine
	for {
		idx := strings.Index(d.pending, LineTerminator)
		if idx < 0 {
			break
		}
		line := strings.TrimSpace(d.pending[:idx])
		d.pending = d.pending[idx+len(LineTerminator):]
		if line == "" {
			continue
		}
		lines = append(lines, DecodedLine{
			Raw:       line,
			Event:     Classify(line),
			Duplicate: !d.dedup.ShouldLog(line),
		})
	}

	if len(d.pending) > MaxPendingBytes {
		d.pending = ""
		d.discarding = true
		d.overflows++
	}

	return lines
}
