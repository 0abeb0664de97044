// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package pidlink

import (
	"errors"
	"fmt"
	"time"
)

// Statistics tracks decoded line counts and rates
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalLines    uint64
	StatusReports uint64
	TuneReports   uint64
	Batches       uint64
	RawPairs      uint64
	Unrecognized  uint64
	MalformedLine uint64
	ShortBatches  uint64
	Duplicates    uint64
	Samples       uint64

	// Rates (calculated)
	LineRate   float64 // lines/sec
	SampleRate float64 // samples/sec
	ErrorRate  float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Update counts one decoded line
func (s *Statistics) Update(line DecodedLine) {
	s.TotalLines++
	if line.Duplicate {
		s.Duplicates++
	}

	switch ev := line.Event.(type) {
	case StatusReport:
		s.StatusReports++
	case TuneStatus:
		s.TuneReports++
	case SampleBatch:
		s.Batches++
		s.Samples += uint64(len(ev.Pairs))
		s.countError(ev.Err)
	case RawPair:
		s.RawPairs++
		s.Samples++
	case Unrecognized:
		s.Unrecognized++
		s.countError(ev.Err)
	}

	s.LastUpdateTime = time.Now()
}

func (s *Statistics) countError(err error) {
	switch {
	case err == nil:
	case errors.Is(err, ErrShortBatch):
		s.ShortBatches++
	case errors.Is(err, ErrMalformedLine):
		s.MalformedLine++
	}
}

// Errors returns the number of lines that failed to decode cleanly
func (s *Statistics) Errors() uint64 {
	return s.MalformedLine + s.ShortBatches
}

// CalculateRates calculates line, sample and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.LineRate = float64(s.TotalLines) / elapsed
		s.SampleRate = float64(s.Samples) / elapsed
		s.ErrorRate = float64(s.Errors()) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	var errorPercent float64
	if s.TotalLines > 0 {
		errorPercent = float64(s.Errors()) * 100.0 / float64(s.TotalLines)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Lines:     %8d\n", s.TotalLines)
	result += fmt.Sprintf("Samples:         %8d\n", s.Samples)
	result += fmt.Sprintf("  Raw Pairs:        %5d\n", s.RawPairs)
	result += fmt.Sprintf("  Batches:          %5d\n", s.Batches)
	if s.StatusReports > 0 {
		result += fmt.Sprintf("PID Reports:     %8d\n", s.StatusReports)
	}
	if s.TuneReports > 0 {
		result += fmt.Sprintf("Tune Reports:    %8d\n", s.TuneReports)
	}
	if s.Errors() > 0 {
		result += fmt.Sprintf("Errors:          %8d (%.1f%%)\n", s.Errors(), errorPercent)
		if s.MalformedLine > 0 {
			result += fmt.Sprintf("  Malformed:        %5d\n", s.MalformedLine)
		}
		if s.ShortBatches > 0 {
			result += fmt.Sprintf("  Short Batches:    %5d\n", s.ShortBatches)
		}
	}
	if s.Unrecognized > 0 {
		result += fmt.Sprintf("Unrecognized:    %8d\n", s.Unrecognized)
	}
	result += fmt.Sprintf("Duplicates:      %8d\n", s.Duplicates)

	result += fmt.Sprintf("Line Rate:       %8.1f lines/sec\n", s.LineRate)
	result += fmt.Sprintf("Sample Rate:     %8.1f samples/sec\n", s.SampleRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
