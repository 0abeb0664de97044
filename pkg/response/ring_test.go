// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package response

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRingEvictsOldest(t *testing.T) {
	r := NewRing[int](3)
	_, ok := r.Last()
	assert.False(t, ok)

	for i := 1; i <= 5; i++ {
		r.Push(i)
	}
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, 3, r.Cap())
	assert.Equal(t, []int{3, 4, 5}, r.Slice())
	assert.Equal(t, 3, r.At(0))

	last, ok := r.Last()
	assert.True(t, ok)
	assert.Equal(t, 5, last)

	r.Reset()
	assert.Equal(t, 0, r.Len())
	r.Push(9)
	assert.Equal(t, []int{9}, r.Slice())
}

func TestHistoryTrimAndAverage(t *testing.T) {
	h := NewHistory()
	for i := 0; i < 10; i++ {
		h.Append(float64(i), float64(i*10))
	}
	avg, ok := h.Average(2, 4)
	assert.True(t, ok)
	assert.InDelta(t, 30.0, avg, 1e-9)

	h.Trim(6)
	assert.Equal(t, 4, h.Len())
	_, ok = h.Average(0, 5)
	assert.False(t, ok)

	h.Append(10, 100)
	avg, ok = h.Average(9, 10)
	assert.True(t, ok)
	assert.InDelta(t, 95.0, avg, 1e-9)

	h.Reset()
	assert.Equal(t, 0, h.Len())
}
