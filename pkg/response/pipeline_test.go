// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package response

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/pidscope/pkg/pidlink"
)

type memRecorder struct {
	samples []Sample
	err     error
}

func (r *memRecorder) Record(s Sample) error {
	r.samples = append(r.samples, s)
	return r.err
}

func newTestPipeline() *Pipeline {
	return NewPipeline(Options{Clock: newFakeClock().Now})
}

func TestPipelineRawPair(t *testing.T) {
	p := newTestPipeline()
	lines := p.Feed("12.0,34.0\n")
	require.Len(t, lines, 1)

	samples := p.Timeline().Samples()
	require.Len(t, samples, 1)
	assert.Equal(t, 12.0, samples[0].Target)
	assert.Equal(t, 34.0, samples[0].Actual)
	assert.Equal(t, 0.0/NominalRateHz, samples[0].Elapsed)

	p.Feed("12.0,35.0\n")
	last, ok := p.Timeline().Last()
	require.True(t, ok)
	assert.Equal(t, 1/NominalRateHz, last.Elapsed)
}

func TestPipelineBatchTimestamps(t *testing.T) {
	p := newTestPipeline()
	p.Feed("B,1000,10,4,1,10,2,20,3,30,4,40\n")

	series := p.Timeline().Snapshot()
	require.Equal(t, 4, series.Len())
	for i := 0; i < 4; i++ {
		assert.InDelta(t, (1000+float64(i)*10)/1000, series.Times[i], 1e-12)
		assert.Equal(t, float64(i+1), series.Targets[i])
		assert.Equal(t, float64((i+1)*10), series.Actuals[i])
	}
	assert.Equal(t, uint64(4), p.Statistics().Samples)
}

func TestPipelinePartialBatch(t *testing.T) {
	p := newTestPipeline()
	p.Feed("B,0,20,3,1,2,3,4,x,y\n")
	assert.Equal(t, 2, p.Timeline().Len())
	assert.Equal(t, uint64(1), p.Statistics().ShortBatches)

	// A line too short for its count is consumed without samples
	p.Feed("B,0,20,3,1,2\n")
	assert.Equal(t, 2, p.Timeline().Len())
}

func TestPipelineStepAtFirstChange(t *testing.T) {
	p := newTestPipeline()
	p.Feed("0,0\n0,0\n0,0\n10,0\n10,1\n10,2\n")

	ep, ok := p.Tracker().Episode()
	require.True(t, ok)
	assert.Equal(t, 0.0, *ep.PrevTarget)
	assert.InDelta(t, 3/NominalRateHz, *ep.StartTime, 1e-12)
	// History restarted at the step
	assert.Equal(t, 3, p.Timeline().History().Len())
	assert.Equal(t, 6, p.Timeline().Len())
}

func TestPipelineExplicitStep(t *testing.T) {
	p := newTestPipeline()
	p.Feed("5,0\n5,1\n")
	p.StartStep(5)
	assert.Equal(t, 0, p.Timeline().History().Len())

	p.Feed("5,2\n")
	ep, ok := p.Tracker().Episode()
	require.True(t, ok)
	assert.InDelta(t, 2/NominalRateHz, *ep.StartTime, 1e-12)
}

func TestPipelineWindowForwarding(t *testing.T) {
	p := newTestPipeline()
	p.Feed("B,0,100,3,1,1,1,1,1,1\n")
	p.OpenWindow(nil)

	p.Feed("B,300,100,2,5,1,5,2\n")
	pts := p.Window().Points()
	require.Len(t, pts, 2)
	assert.InDelta(t, 0.1, pts[0].T, 1e-12)
	assert.InDelta(t, 0.2, pts[1].T, 1e-12)

	// Reopen discards everything captured so far
	p.OpenWindow(f64(1))
	assert.Equal(t, 0, p.Window().Len())
}

func TestPipelineWindowSetDurationWhileOpen(t *testing.T) {
	p := newTestPipeline()
	p.Feed("B,0,100,1,1,1\n")
	p.OpenWindow(nil)
	p.Window().SetDuration(0.15)

	p.Feed("B,100,100,3,1,1,1,1,1,1\n")
	assert.Equal(t, 1, p.Window().Len())
	assert.False(t, p.Window().IsActive())
}

func TestPipelineRecorder(t *testing.T) {
	p := newTestPipeline()
	rec := &memRecorder{err: errors.New("disk full")}
	p.SetRecorder(rec)

	p.Feed("1,2\n3,4\n")
	require.Len(t, rec.samples, 2)
	assert.Equal(t, 3.0, rec.samples[1].Target)
	// Recorder failures do not stop ingestion
	assert.Equal(t, 2, p.Timeline().Len())

	p.SetRecorder(nil)
	p.Feed("5,6\n")
	assert.Len(t, rec.samples, 2)
}

func TestPipelineStatusAndTune(t *testing.T) {
	p := newTestPipeline()
	_, ok := p.PIDStatus()
	assert.False(t, ok)

	p.Feed("PID=P=1.5,I=0.2,D=0.01\nTUNE=OK,Kp=2.5,Ki=0.3\n")
	pid, ok := p.PIDStatus()
	require.True(t, ok)
	assert.Equal(t, pidlink.StatusReport{P: 1.5, I: 0.2, D: 0.01}, pid)

	tune, ok := p.TuneStatus()
	require.True(t, ok)
	assert.Equal(t, pidlink.TuneOK, tune.State)
	kp, ok := tune.Gain("Kp")
	assert.True(t, ok)
	assert.Equal(t, 2.5, kp)
	assert.Equal(t, 0, p.Timeline().Len())
}

func TestPipelineQueueDrain(t *testing.T) {
	p := newTestPipeline()
	q := p.Queue()
	require.True(t, q.TryPush("1,"))
	require.True(t, q.TryPush("2\n3,4"))
	require.True(t, q.TryPush("\n"))

	lines := p.Drain()
	assert.Len(t, lines, 2)
	assert.Equal(t, 2, p.Timeline().Len())
	assert.Empty(t, p.Drain())
}

func TestPipelineDisconnectDropsPartialLine(t *testing.T) {
	p := newTestPipeline()
	p.Feed("1,2")
	p.Disconnected()
	p.Feed("5\n")
	assert.Equal(t, 0, p.Timeline().Len())
}

func TestPipelineSnapshot(t *testing.T) {
	p := newTestPipeline()
	p.SetSSEPercent(true)
	p.Feed(strings.Repeat("0,0\n", 3) + "10,0\n")
	p.OpenWindow(nil)

	snap := p.Snapshot()
	assert.Equal(t, 4, snap.Series.Len())
	assert.True(t, snap.HasLast)
	assert.Equal(t, StepArmed, snap.Step.State)
	assert.True(t, snap.Step.SSEPercent)
	assert.True(t, snap.WindowOpen)
	assert.True(t, snap.WindowActive)
	assert.Equal(t, StatusCursorsIncomplete, snap.Window.String())
	assert.Equal(t, NominalRateHz, snap.RxRate)

	p.Reset()
	snap = p.Snapshot()
	assert.Equal(t, 0, snap.Series.Len())
	assert.False(t, snap.WindowOpen)
	assert.Equal(t, StepIdle, snap.Step.State)
}
