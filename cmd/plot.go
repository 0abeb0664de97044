// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"math"
	"strings"

	"github.com/Thermoquad/pidscope/pkg/response"
	"github.com/charmbracelet/lipgloss"
)

var sparkRunes = []rune("▁▂▃▄▅▆▇█")

// valueRange returns the combined min/max of several series, padded so a
// flat trace still has a visible range
func valueRange(series ...[]float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, s := range series {
		for _, v := range s {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	if math.IsInf(lo, 1) {
		return 0, 1
	}
	if hi-lo < 1e-9 {
		pad := math.Max(math.Abs(hi)*0.05, 0.5)
		return lo - pad, hi + pad
	}
	return lo, hi
}

// sparkline renders the last width values scaled into lo..hi
func sparkline(values []float64, width int, lo, hi float64) string {
	if width <= 0 || len(values) == 0 {
		return ""
	}
	if len(values) > width {
		values = values[len(values)-width:]
	}
	span := hi - lo
	var b strings.Builder
	for _, v := range values {
		idx := 0
		if span > 0 {
			idx = int(math.Round((v - lo) / span * float64(len(sparkRunes)-1)))
		}
		idx = max(0, min(idx, len(sparkRunes)-1))
		b.WriteRune(sparkRunes[idx])
	}
	return b.String()
}

// plotGrid maps window time and value onto character cells
type plotGrid struct {
	width, height int
	t0, t1        float64
	lo, hi        float64
}

func newPlotGrid(points []response.WindowPoint, width, height int) (plotGrid, bool) {
	if len(points) == 0 || width < 2 || height < 2 {
		return plotGrid{}, false
	}
	targets := make([]float64, len(points))
	actuals := make([]float64, len(points))
	for i, p := range points {
		targets[i] = p.Target
		actuals[i] = p.Actual
	}
	lo, hi := valueRange(targets, actuals)
	t0, t1 := points[0].T, points[len(points)-1].T
	if t1 <= t0 {
		t1 = t0 + 1
	}
	return plotGrid{width: width, height: height, t0: t0, t1: t1, lo: lo, hi: hi}, true
}

// span returns the visible time-axis width
func (g plotGrid) span() float64 { return g.t1 - g.t0 }

func (g plotGrid) column(t float64) int {
	c := int(math.Round((t - g.t0) / g.span() * float64(g.width-1)))
	return max(0, min(c, g.width-1))
}

// timeAt converts a plot column back to window time
func (g plotGrid) timeAt(col int) float64 {
	col = max(0, min(col, g.width-1))
	return g.t0 + float64(col)/float64(g.width-1)*g.span()
}

func (g plotGrid) row(v float64) int {
	r := int(math.Round((g.hi - v) / (g.hi - g.lo) * float64(g.height-1)))
	return max(0, min(r, g.height-1))
}

// Cell kinds, later kinds draw over earlier ones
const (
	cellEmpty = iota
	cellCursorA
	cellCursorB
	cellTarget
	cellActual
	cellMarker
)

var cellGlyphs = map[int]string{
	cellEmpty:   " ",
	cellCursorA: "│",
	cellCursorB: "│",
	cellTarget:  "─",
	cellActual:  "•",
	cellMarker:  "▼",
}

var cellStyles = map[int]lipgloss.Style{
	cellEmpty:   lipgloss.NewStyle(),
	cellCursorA: lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
	cellCursorB: lipgloss.NewStyle().Foreground(lipgloss.Color("13")),
	cellTarget:  targetStyle,
	cellActual:  valueStyle,
	cellMarker:  warningStyle,
}

// layout fills the cell grid for a window plot
func (g plotGrid) layout(points []response.WindowPoint, a, b *float64, markers []response.Marker) [][]int {
	cells := make([][]int, g.height)
	for r := range cells {
		cells[r] = make([]int, g.width)
	}
	vertical := func(t float64, kind int) {
		c := g.column(t)
		for r := range cells {
			cells[r][c] = kind
		}
	}
	if a != nil && *a >= g.t0 && *a <= g.t1 {
		vertical(*a, cellCursorA)
	}
	if b != nil && *b >= g.t0 && *b <= g.t1 {
		vertical(*b, cellCursorB)
	}
	for _, p := range points {
		cells[g.row(p.Target)][g.column(p.T)] = cellTarget
	}
	for _, p := range points {
		cells[g.row(p.Actual)][g.column(p.T)] = cellActual
	}
	for _, m := range markers {
		cells[0][g.column(m.T)] = cellMarker
	}
	return cells
}

// renderWindowPlot draws the captured points with cursors and markers
func renderWindowPlot(points []response.WindowPoint, a, b *float64, markers []response.Marker, width, height int) string {
	g, ok := newPlotGrid(points, width, height)
	if !ok {
		return headerStyle.Render("(no samples captured)")
	}
	cells := g.layout(points, a, b, markers)

	var out strings.Builder
	for r, row := range cells {
		// Group runs of one kind into a single styled segment
		start := 0
		for c := 1; c <= len(row); c++ {
			if c < len(row) && row[c] == row[start] {
				continue
			}
			kind := row[start]
			out.WriteString(cellStyles[kind].Render(strings.Repeat(cellGlyphs[kind], c-start)))
			start = c
		}
		if r < len(cells)-1 {
			out.WriteString("\n")
		}
	}
	out.WriteString("\n")
	axis := fmt.Sprintf("%.2fs", g.t0)
	end := fmt.Sprintf("%.2fs", g.t1)
	if gap := g.width - len(axis) - len(end); gap > 0 {
		axis += strings.Repeat(" ", gap) + end
	}
	out.WriteString(headerStyle.Render(axis))
	return out.String()
}
