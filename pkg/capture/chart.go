// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package capture

import (
	"errors"
	"io"
	"math"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/Thermoquad/pidscope/pkg/response"
)

// Default image size
const (
	DefaultChartWidth  = 1024
	DefaultChartHeight = 512
)

// ErrTooFewPoints is returned when a chart has nothing to draw
var ErrTooFewPoints = errors.New("need at least two points to chart")

var (
	colorTarget  = drawing.ColorFromHex("1f77b4")
	colorActual  = drawing.ColorFromHex("ff7f0e")
	colorCursorA = drawing.ColorFromHex("1f77b4")
	colorCursorB = drawing.ColorFromHex("ff7f0e")
)

// ChartOptions configures a window chart
type ChartOptions struct {
	Title   string
	Width   int
	Height  int
	CursorA *float64
	CursorB *float64
	Markers []response.Marker
}

// yRange pads the data range so flat traces still render
func yRange(points []response.WindowPoint) *chart.ContinuousRange {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, p := range points {
		lo = math.Min(lo, math.Min(p.Target, p.Actual))
		hi = math.Max(hi, math.Max(p.Target, p.Actual))
	}
	pad := (hi - lo) * 0.05
	if pad == 0 {
		pad = 1
	}
	return &chart.ContinuousRange{Min: lo - pad, Max: hi + pad}
}

func cursorSeries(name string, at float64, r *chart.ContinuousRange, col drawing.Color) chart.ContinuousSeries {
	return chart.ContinuousSeries{
		Name:    name,
		XValues: []float64{at, at},
		YValues: []float64{r.Min, r.Max},
		Style: chart.Style{
			StrokeColor:     col,
			StrokeWidth:     1,
			StrokeDashArray: []float64{5, 5},
		},
	}
}

// RenderWindowPNG draws target and actual against window time, with cursors
// as dashed verticals and markers as labeled annotations.
func RenderWindowPNG(w io.Writer, points []response.WindowPoint, opts ChartOptions) error {
	if len(points) < 2 {
		return ErrTooFewPoints
	}
	if opts.Width == 0 {
		opts.Width = DefaultChartWidth
	}
	if opts.Height == 0 {
		opts.Height = DefaultChartHeight
	}

	n := len(points)
	xs := make([]float64, n)
	targets := make([]float64, n)
	actuals := make([]float64, n)
	for i, p := range points {
		xs[i] = p.T
		targets[i] = p.Target
		actuals[i] = p.Actual
	}
	yr := yRange(points)

	series := []chart.Series{
		chart.ContinuousSeries{
			Name:    "Target",
			XValues: xs,
			YValues: targets,
			Style:   chart.Style{StrokeColor: colorTarget, StrokeWidth: 2},
		},
		chart.ContinuousSeries{
			Name:    "Actual",
			XValues: xs,
			YValues: actuals,
			Style:   chart.Style{StrokeColor: colorActual, StrokeWidth: 2},
		},
	}
	if opts.CursorA != nil {
		series = append(series, cursorSeries("A", *opts.CursorA, yr, colorCursorA))
	}
	if opts.CursorB != nil {
		series = append(series, cursorSeries("B", *opts.CursorB, yr, colorCursorB))
	}
	if len(opts.Markers) > 0 {
		notes := make([]chart.Value2, 0, len(opts.Markers))
		for _, m := range opts.Markers {
			notes = append(notes, chart.Value2{XValue: m.T, YValue: m.Actual, Label: m.Label()})
		}
		series = append(series, chart.AnnotationSeries{Annotations: notes})
	}

	ch := chart.Chart{
		Title:      opts.Title,
		Width:      opts.Width,
		Height:     opts.Height,
		Background: chart.Style{Padding: chart.Box{Top: 30, Left: 16, Right: 12, Bottom: 16}},
		XAxis:      chart.XAxis{Name: "Time (s)"},
		YAxis:      chart.YAxis{Name: "Value", Range: yr},
		Series:     series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	return ch.Render(chart.PNG, w)
}
