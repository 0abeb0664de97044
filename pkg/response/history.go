// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package response

type historyPoint struct {
	t      float64
	actual float64
}

// History keeps recent actual values and evicts them by age
type History struct {
	points []historyPoint
	head   int
}

// NewHistory creates an empty history buffer
func NewHistory() *History {
	return &History{points: make([]historyPoint, 0, 1024)}
}

// Append records an actual value at time t
func (h *History) Append(t, actual float64) {
	h.points = append(h.points, historyPoint{t: t, actual: actual})
}

// Trim drops entries older than cutoff
func (h *History) Trim(cutoff float64) {
	for h.head < len(h.points) && h.points[h.head].t < cutoff {
		h.head++
	}
	// Compact once the dead prefix dominates, reusing the backing array
	if h.head > 0 && h.head >= len(h.points)/2 {
		n := copy(h.points, h.points[h.head:])
		h.points = h.points[:n]
		h.head = 0
	}
}

// Len returns the number of live entries
func (h *History) Len() int {
	return len(h.points) - h.head
}

// Average returns the mean actual over start <= t <= end
func (h *History) Average(start, end float64) (float64, bool) {
	var sum float64
	var n int
	for _, p := range h.points[h.head:] {
		if p.t >= start && p.t <= end {
			sum += p.actual
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// Reset empties the buffer
func (h *History) Reset() {
	h.points = h.points[:0]
	h.head = 0
}
