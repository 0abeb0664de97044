// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package response

import (
	"fmt"
	"math"
	"time"
)

// Cursor identifies one of the two window cursors
type Cursor int

const (
	CursorNone Cursor = iota
	CursorA
	CursorB
)

func (c Cursor) String() string {
	switch c {
	case CursorA:
		return "A"
	case CursorB:
		return "B"
	default:
		return "-"
	}
}

const (
	pickFraction = 0.01
	pickFloor    = 0.01
)

// WindowPoint is one sample on the window's relative timebase
type WindowPoint struct {
	T      float64
	Target float64
	Actual float64
}

// Marker is a labeled point snapped to a window sample
type Marker struct {
	WindowPoint
}

// Label formats the marker annotation
func (m Marker) Label() string {
	return fmt.Sprintf("t=%.3fs T=%.3f A=%.3f", m.T, m.Target, m.Actual)
}

// ClickAction describes what a click on the window did
type ClickAction int

const (
	ClickIgnored ClickAction = iota
	ClickDragMarker
	ClickDragCursor
	ClickAddedMarker
	ClickRemovedMarker
)

// Window captures samples relative to an anchor and analyzes an
// operator-selected sub-range.
type Window struct {
	clock Clock

	open   bool
	active bool
	paused bool

	anchorWall   time.Time
	startElapsed *float64
	duration     *float64
	endTime      *time.Time

	points []WindowPoint

	cursorA      *float64
	cursorB      *float64
	activeCursor Cursor
	markers      []Marker

	dragMarker int
	dragCursor Cursor

	generation uint64
}

// NewWindow creates a closed window. A nil clock uses time.Now.
func NewWindow(clock Clock) *Window {
	if clock == nil {
		clock = time.Now
	}
	return &Window{clock: clock, dragMarker: -1}
}

// Open starts a fresh capture, discarding all prior buffers, cursors and
// markers. lastElapsed is the timeline's newest elapsed time, if any, and
// becomes the relative time origin. A non-nil duration limits the capture.
func (w *Window) Open(duration *float64, lastElapsed *float64) {
	w.reset()
	w.open = true
	w.active = true
	w.anchorWall = w.clock()
	if lastElapsed != nil {
		v := *lastElapsed
		w.startElapsed = &v
	}
	if duration != nil {
		w.SetDuration(*duration)
	}
	w.generation++
}

// SetDuration limits the capture to d seconds after the anchor
func (w *Window) SetDuration(d float64) {
	if w.anchorWall.IsZero() {
		w.anchorWall = w.clock()
	}
	end := w.anchorWall.Add(time.Duration(d * float64(time.Second)))
	w.endTime = &end
	w.duration = &d
}

// Close discards the capture and cancels any pending redraw
func (w *Window) Close() {
	w.reset()
	w.generation++
}

func (w *Window) reset() {
	w.open = false
	w.active = false
	w.paused = false
	w.anchorWall = time.Time{}
	w.startElapsed = nil
	w.duration = nil
	w.endTime = nil
	w.points = w.points[:0]
	w.cursorA = nil
	w.cursorB = nil
	w.activeCursor = CursorNone
	w.markers = w.markers[:0]
	w.dragMarker = -1
	w.dragCursor = CursorNone
}

// Observe forwards a timeline sample into the window and reports whether it
// was appended. Exceeding the duration or the end time deactivates capture.
func (w *Window) Observe(s Sample) bool {
	if !w.active {
		return false
	}
	var rel float64
	if w.startElapsed != nil {
		rel = s.Elapsed - *w.startElapsed
	} else {
		rel = s.WallTime - wallSeconds(w.anchorWall)
	}
	if w.duration != nil && rel > *w.duration {
		w.active = false
		return false
	}
	if w.endTime != nil && w.clock().After(*w.endTime) {
		w.active = false
		return false
	}
	if w.paused {
		return false
	}
	w.points = append(w.points, WindowPoint{T: rel, Target: s.Target, Actual: s.Actual})
	return true
}

// Expire deactivates capture once the wall-clock end time has passed
func (w *Window) Expire() bool {
	if w.active && w.endTime != nil && w.clock().After(*w.endTime) {
		w.active = false
		return true
	}
	return false
}

// Pause freezes the curve and cancels the pending redraw
func (w *Window) Pause() {
	if !w.open || w.paused {
		return
	}
	w.paused = true
	w.generation++
}

// Resume unfreezes the curve and returns the generation to schedule the
// next redraw with.
func (w *Window) Resume() uint64 {
	if w.open && w.paused {
		w.paused = false
		w.generation++
	}
	return w.generation
}

// TogglePause flips between paused and running
func (w *Window) TogglePause() {
	if w.paused {
		w.Resume()
	} else {
		w.Pause()
	}
}

// Generation identifies the current redraw schedule. Any change to it
// invalidates previously scheduled redraws.
func (w *Window) Generation() uint64 { return w.generation }

// ShouldRedraw reports whether a redraw scheduled with gen is still live
func (w *Window) ShouldRedraw(gen uint64) bool {
	return w.active && !w.paused && gen == w.generation
}

// IsOpen reports whether a window exists, capturing or not
func (w *Window) IsOpen() bool { return w.open }

// IsActive reports whether samples are still being forwarded
func (w *Window) IsActive() bool { return w.active }

// IsPaused reports whether the curve is frozen
func (w *Window) IsPaused() bool { return w.paused }

// Duration returns the capture limit, if set
func (w *Window) Duration() (float64, bool) {
	if w.duration == nil {
		return 0, false
	}
	return *w.duration, true
}

// Len returns the number of captured points
func (w *Window) Len() int { return len(w.points) }

// Points copies the captured points
func (w *Window) Points() []WindowPoint {
	out := make([]WindowPoint, len(w.points))
	copy(out, w.points)
	return out
}

// Span returns the first and last captured relative times
func (w *Window) Span() (float64, float64, bool) {
	if len(w.points) == 0 {
		return 0, 0, false
	}
	return w.points[0].T, w.points[len(w.points)-1].T, true
}

// interactive reports whether the curve is static enough to edit
func (w *Window) interactive() bool {
	return w.open && (w.paused || !w.active)
}

// SetCursor places a cursor at a relative time
func (w *Window) SetCursor(which Cursor, t float64) {
	if !w.open {
		return
	}
	v := t
	switch which {
	case CursorA:
		w.cursorA = &v
	case CursorB:
		w.cursorB = &v
	}
}

// ClearCursor unsets a cursor
func (w *Window) ClearCursor(which Cursor) {
	switch which {
	case CursorA:
		w.cursorA = nil
	case CursorB:
		w.cursorB = nil
	}
}

// Cursors returns both cursor positions
func (w *Window) Cursors() (a, b *float64) {
	return copyFloat(w.cursorA), copyFloat(w.cursorB)
}

func copyFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// ToggleActiveCursor selects which cursor a click places, or none if that
// cursor was already selected.
func (w *Window) ToggleActiveCursor(which Cursor) {
	if w.activeCursor == which {
		w.activeCursor = CursorNone
		return
	}
	w.activeCursor = which
}

// ActiveCursor returns the cursor a click places
func (w *Window) ActiveCursor() Cursor { return w.activeCursor }

// PickTolerance returns the click distance for grabbing a marker or cursor.
// span is the visible time-axis width; zero or less uses the data span.
func (w *Window) PickTolerance(span float64) float64 {
	if span <= 0 {
		if lo, hi, ok := w.Span(); ok {
			span = hi - lo
		}
	}
	return math.Max(span*pickFraction, pickFloor)
}

// nearest returns the index of the captured point closest to t
func (w *Window) nearest(t float64) int {
	best := 0
	bestDist := math.Abs(w.points[0].T - t)
	for i := 1; i < len(w.points); i++ {
		if d := math.Abs(w.points[i].T - t); d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best
}

// AddMarker drops a marker on the sample nearest t. Markers are only placed
// while the window is paused or its capture has ended.
func (w *Window) AddMarker(t float64) (Marker, bool) {
	if !w.interactive() || len(w.points) == 0 {
		return Marker{}, false
	}
	m := Marker{w.points[w.nearest(t)]}
	w.markers = append(w.markers, m)
	return m, true
}

// MoveMarker re-snaps marker idx to the sample nearest t
func (w *Window) MoveMarker(idx int, t float64) bool {
	if idx < 0 || idx >= len(w.markers) || len(w.points) == 0 {
		return false
	}
	w.markers[idx] = Marker{w.points[w.nearest(t)]}
	return true
}

// RemoveLastMarker removes the most recently added marker
func (w *Window) RemoveLastMarker() bool {
	if len(w.markers) == 0 {
		return false
	}
	w.markers = w.markers[:len(w.markers)-1]
	return true
}

// ClearMarkers removes all markers
func (w *Window) ClearMarkers() {
	w.markers = w.markers[:0]
}

// Markers copies the markers, oldest first
func (w *Window) Markers() []Marker {
	out := make([]Marker, len(w.markers))
	copy(out, w.markers)
	return out
}

// findMarker returns the marker closest to t within tol, or -1
func (w *Window) findMarker(t, tol float64) int {
	best := -1
	bestDist := 0.0
	for i, m := range w.markers {
		d := math.Abs(t - m.T)
		if d <= tol && (best < 0 || d < bestDist) {
			best = i
			bestDist = d
		}
	}
	return best
}

// Click handles a primary click at relative time t with the visible axis
// span. A click near a marker or cursor grabs it for dragging; anywhere else
// it drops a marker and moves the active cursor there.
func (w *Window) Click(t, span float64) ClickAction {
	if !w.interactive() || len(w.points) == 0 {
		return ClickIgnored
	}
	tol := w.PickTolerance(span)
	if idx := w.findMarker(t, tol); idx >= 0 {
		w.dragMarker = idx
		return ClickDragMarker
	}
	if w.cursorA != nil && math.Abs(t-*w.cursorA) <= tol {
		w.dragCursor = CursorA
		return ClickDragCursor
	}
	if w.cursorB != nil && math.Abs(t-*w.cursorB) <= tol {
		w.dragCursor = CursorB
		return ClickDragCursor
	}
	m, _ := w.AddMarker(t)
	if w.activeCursor != CursorNone {
		w.SetCursor(w.activeCursor, m.T)
	}
	return ClickAddedMarker
}

// SecondaryClick removes the last marker
func (w *Window) SecondaryClick() ClickAction {
	if !w.interactive() || len(w.points) == 0 {
		return ClickIgnored
	}
	if w.RemoveLastMarker() {
		return ClickRemovedMarker
	}
	return ClickIgnored
}

// Drag moves whatever the last click grabbed to relative time t
func (w *Window) Drag(t float64) bool {
	if !w.interactive() {
		return false
	}
	if w.dragMarker >= 0 {
		return w.MoveMarker(w.dragMarker, t)
	}
	if w.dragCursor != CursorNone {
		w.SetCursor(w.dragCursor, t)
		return true
	}
	return false
}

// Release ends any drag in progress
func (w *Window) Release() {
	w.dragMarker = -1
	w.dragCursor = CursorNone
}

// Metrics computes the windowed response metrics between the cursors
func (w *Window) Metrics(ssePercent bool) WindowMetrics {
	if w.cursorA == nil || w.cursorB == nil {
		return WindowMetrics{Status: StatusCursorsIncomplete}
	}
	return AnalyzeRange(w.points, *w.cursorA, *w.cursorB, ssePercent)
}

// ReplayWindow builds a paused window holding points at their recorded
// relative times, ready for cursor and marker placement.
func ReplayWindow(points []WindowPoint) *Window {
	w := NewWindow(nil)
	origin := 0.0
	w.Open(nil, &origin)
	for _, p := range points {
		w.Observe(Sample{Elapsed: p.T, Target: p.Target, Actual: p.Actual})
	}
	w.Pause()
	return w
}
