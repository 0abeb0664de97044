// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package capture

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/pidscope/pkg/response"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func TestRenderWindowPNG(t *testing.T) {
	w := testWindow(t)
	a, b := w.Cursors()

	var buf bytes.Buffer
	err := RenderWindowPNG(&buf, w.Points(), ChartOptions{
		Title:   "Step response",
		Width:   640,
		Height:  320,
		CursorA: a,
		CursorB: b,
		Markers: w.Markers(),
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))
}

func TestRenderWindowPNGFlatTrace(t *testing.T) {
	var buf bytes.Buffer
	points := []response.WindowPoint{{T: 0, Target: 1, Actual: 1}, {T: 1, Target: 1, Actual: 1}}
	require.NoError(t, RenderWindowPNG(&buf, points, ChartOptions{}))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))
}

func TestRenderWindowPNGTooFewPoints(t *testing.T) {
	var buf bytes.Buffer
	err := RenderWindowPNG(&buf, []response.WindowPoint{{T: 0}}, ChartOptions{})
	assert.ErrorIs(t, err, ErrTooFewPoints)
	assert.Zero(t, buf.Len())
}
