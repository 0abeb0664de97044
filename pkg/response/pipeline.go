// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package response

import (
	"log/slog"

	"github.com/Thermoquad/pidscope/pkg/pidlink"
)

// Recorder receives every ingested sample
type Recorder interface {
	Record(s Sample) error
}

// Options configures a Pipeline
type Options struct {
	Clock      Clock
	Logger     *slog.Logger
	QueueSize  int
	SSEPercent bool
}

// Pipeline wires decoder, timeline, step tracker and response window
// together. It is not safe for concurrent use; transports hand text over
// through Queue and one goroutine calls Drain.
type Pipeline struct {
	decoder  *pidlink.LineDecoder
	stats    *pidlink.Statistics
	timeline *Timeline
	tracker  *StepTracker
	window   *Window
	queue    *TextQueue
	recorder Recorder
	logger   *slog.Logger

	ssePercent bool
	pid        *pidlink.StatusReport
	tune       *pidlink.TuneStatus
}

// NewPipeline creates a pipeline with empty state
func NewPipeline(opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	size := opts.QueueSize
	if size == 0 {
		size = DefaultQueueSize
	}
	return &Pipeline{
		decoder:    pidlink.NewLineDecoder(),
		stats:      pidlink.NewStatistics(),
		timeline:   NewTimeline(opts.Clock),
		tracker:    NewStepTracker(),
		window:     NewWindow(opts.Clock),
		queue:      NewTextQueue(size),
		logger:     logger,
		ssePercent: opts.SSEPercent,
	}
}

// SetRecorder installs (or with nil removes) the sample recorder
func (p *Pipeline) SetRecorder(r Recorder) { p.recorder = r }

// Queue returns the transport-facing text queue
func (p *Pipeline) Queue() *TextQueue { return p.queue }

// Drain feeds every queued chunk through the pipeline
func (p *Pipeline) Drain() []pidlink.DecodedLine {
	var lines []pidlink.DecodedLine
	for _, chunk := range p.queue.Drain() {
		lines = append(lines, p.Feed(chunk)...)
	}
	return lines
}

// Feed decodes a text chunk and ingests every sample it completes
func (p *Pipeline) Feed(text string) []pidlink.DecodedLine {
	lines := p.decoder.Feed(text)
	for _, line := range lines {
		p.stats.Update(line)
		p.dispatch(line)
	}
	return lines
}

func (p *Pipeline) dispatch(line pidlink.DecodedLine) {
	switch ev := line.Event.(type) {
	case pidlink.StatusReport:
		p.pid = &ev
	case pidlink.TuneStatus:
		p.tune = &ev
	case pidlink.SampleBatch:
		if ev.Err != nil {
			p.logger.Debug("partial batch", "line", line.Raw, "pairs", len(ev.Pairs), "error", ev.Err)
		}
		for i, pair := range ev.Pairs {
			t := ev.DeviceTimeMs(i)
			p.Ingest(pair.Target, pair.Actual, &t)
		}
	case pidlink.RawPair:
		p.Ingest(ev.Target, ev.Actual, nil)
	case pidlink.Unrecognized:
		p.logger.Debug("unrecognized line", "line", ev.Line, "error", ev.Err)
	}
}

// Ingest stamps a sample, resolves step detection, stores it and forwards it
// to the step tracker, the recorder and the response window, in that order.
func (p *Pipeline) Ingest(target, actual float64, deviceTimeMs *float64) Sample {
	s := p.timeline.Stamp(target, actual, deviceTimeMs)
	if p.tracker.ObserveTarget(s) {
		p.timeline.ResetHistory()
		p.logger.Debug("step detected", "target", s.Target, "elapsed", s.Elapsed)
	}
	p.timeline.Append(s)
	p.tracker.Update(s, p.timeline.History())
	if p.recorder != nil {
		if err := p.recorder.Record(s); err != nil {
			p.logger.Warn("recording failed", "error", err)
		}
	}
	p.window.Observe(s)
	return s
}

// StartStep begins a step episode toward target without waiting for a
// target change. Timing aligns to the next sample.
func (p *Pipeline) StartStep(target float64) {
	p.tracker.Start(target)
	p.timeline.ResetHistory()
}

// OpenWindow opens a fresh response window anchored at the newest sample
func (p *Pipeline) OpenWindow(duration *float64) {
	var last *float64
	if v, ok := p.timeline.LastElapsed(); ok {
		last = &v
	}
	p.window.Open(duration, last)
}

// CloseWindow discards the response window
func (p *Pipeline) CloseWindow() { p.window.Close() }

// Disconnected drops partial input after the transport goes away
func (p *Pipeline) Disconnected() { p.decoder.Reset() }

// SetSSEPercent selects percentage or absolute steady-state error
func (p *Pipeline) SetSSEPercent(on bool) { p.ssePercent = on }

// SSEPercent reports the steady-state error mode
func (p *Pipeline) SSEPercent() bool { return p.ssePercent }

func (p *Pipeline) Timeline() *Timeline             { return p.timeline }
func (p *Pipeline) Tracker() *StepTracker           { return p.tracker }
func (p *Pipeline) Window() *Window                 { return p.window }
func (p *Pipeline) Statistics() *pidlink.Statistics { return p.stats }
func (p *Pipeline) Decoder() *pidlink.LineDecoder   { return p.decoder }

// PIDStatus returns the latest reported gains
func (p *Pipeline) PIDStatus() (pidlink.StatusReport, bool) {
	if p.pid == nil {
		return pidlink.StatusReport{}, false
	}
	return *p.pid, true
}

// TuneStatus returns the latest autotune report
func (p *Pipeline) TuneStatus() (pidlink.TuneStatus, bool) {
	if p.tune == nil {
		return pidlink.TuneStatus{}, false
	}
	return *p.tune, true
}

// Snapshot is everything the presentation layer draws in one frame
type Snapshot struct {
	Series  Series
	Step    StepMetrics
	Window  WindowMetrics
	RxRate  float64
	Last    Sample
	HasLast bool

	WindowOpen   bool
	WindowActive bool
	WindowPaused bool
	WindowLen    int
}

// Snapshot copies the current state for presentation
func (p *Pipeline) Snapshot() Snapshot {
	last, ok := p.timeline.Last()
	return Snapshot{
		Series:       p.timeline.Snapshot(),
		Step:         p.tracker.Metrics(p.ssePercent),
		Window:       p.window.Metrics(p.ssePercent),
		RxRate:       p.timeline.RxRate(),
		Last:         last,
		HasLast:      ok,
		WindowOpen:   p.window.IsOpen(),
		WindowActive: p.window.IsActive(),
		WindowPaused: p.window.IsPaused(),
		WindowLen:    p.window.Len(),
	}
}

// Reset returns the pipeline to its initial state, keeping the recorder
func (p *Pipeline) Reset() {
	p.decoder.Reset()
	p.stats.Reset()
	p.timeline.Reset()
	p.tracker.Reset()
	p.window.Close()
	p.pid = nil
	p.tune = nil
}
