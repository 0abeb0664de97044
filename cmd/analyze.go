// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Thermoquad/pidscope/pkg/capture"
	"github.com/Thermoquad/pidscope/pkg/response"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	analyzeCursorA     float64
	analyzeCursorB     float64
	analyzeMarkers     []float64
	analyzeSSEPercent  bool
	analyzeExport      string
	analyzeFormats     string
	analyzeSession     int64
	analyzeListSession bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Analyze a recorded response offline",
	Long: `Load a recorded response and compute window metrics between two cursors.

Accepted inputs, chosen by file extension:
  .cbor                  window capture saved by the monitor (keeps its
                         cursors, markers and SSE mode)
  .csv                   window export (time_s,target,actual) or live
                         recording (timestamp,target,actual)
  .db .sqlite .sqlite3   SQLite recording; --session picks the session
                         (newest by default), --list-sessions lists them
  anything else          RX text log, as written by raw_log or captured
                         from the controller's serial output

Cursors default to the first and last sample. The recording is also replayed
through the live step tracker, whose result is printed alongside.

Examples:
  pidscope analyze response_window_20250301_120000.cbor
  pidscope analyze run.log --a 1.0 --b 4.0 --sse-percent
  pidscope analyze samples.db --session 3 --export out/step --formats png`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().Float64Var(&analyzeCursorA, "a", 0, "Cursor A time in seconds")
	analyzeCmd.Flags().Float64Var(&analyzeCursorB, "b", 0, "Cursor B time in seconds")
	analyzeCmd.Flags().Float64SliceVar(&analyzeMarkers, "marker", nil, "Marker times in seconds (repeatable)")
	analyzeCmd.Flags().BoolVar(&analyzeSSEPercent, "sse-percent", false, "Report steady-state error as percent of target")
	analyzeCmd.Flags().StringVar(&analyzeExport, "export", "", "Export the analyzed window to this path prefix")
	analyzeCmd.Flags().StringVar(&analyzeFormats, "formats", "all", "Export formats: csv, cbor, png (comma-separated)")
	analyzeCmd.Flags().Int64Var(&analyzeSession, "session", 0, "SQLite session id (default: newest)")
	analyzeCmd.Flags().BoolVar(&analyzeListSession, "list-sessions", false, "List SQLite sessions and exit")
}

var (
	headingColor = color.New(color.FgCyan, color.Bold)
	keyColor     = color.New(color.FgBlue)
	goodColor    = color.New(color.FgGreen)
	missingColor = color.New(color.FgYellow)
)

// recording is a loaded input, with any analysis state saved alongside it
type recording struct {
	source     string
	points     []response.WindowPoint
	cursorA    *float64
	cursorB    *float64
	markers    []float64
	ssePercent bool
}

// sampleCollector keeps every sample the pipeline ingests
type sampleCollector struct {
	samples []response.Sample
}

func (c *sampleCollector) Record(s response.Sample) error {
	c.samples = append(c.samples, s)
	return nil
}

// stripLogPrefix removes raw_log's "[time] RX: " decoration
func stripLogPrefix(line string) string {
	if _, after, found := strings.Cut(line, "RX: "); found {
		return after
	}
	return line
}

// readTextLog replays an RX text log through a fresh pipeline
func readTextLog(r io.Reader) ([]response.Sample, error) {
	collector := &sampleCollector{}
	p := response.NewPipeline(response.Options{Logger: logger})
	p.SetRecorder(collector)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		p.Feed(stripLogPrefix(scanner.Text()) + "\n")
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	logger.Debug("replayed text log", "lines", p.Statistics().TotalLines, "samples", len(collector.samples))
	return collector.samples, nil
}

// samplePoints rebases samples to start at zero. Elapsed time is used when it
// never runs backwards. Otherwise stored wall time is used if the source kept
// it, and elapsed time is stitched across each backwards jump if not.
func samplePoints(samples []response.Sample, storedWall bool) []response.WindowPoint {
	if len(samples) == 0 {
		return nil
	}
	points := make([]response.WindowPoint, len(samples))
	points[0] = response.WindowPoint{T: 0, Target: samples[0].Target, Actual: samples[0].Actual}

	wrapped := false
	for i := 1; i < len(samples); i++ {
		dt := samples[i].Elapsed - samples[i-1].Elapsed
		if dt < 0 {
			wrapped = true
			dt = 1 / response.NominalRateHz
		}
		points[i] = response.WindowPoint{T: points[i-1].T + dt, Target: samples[i].Target, Actual: samples[i].Actual}
	}

	if wrapped && storedWall {
		origin := samples[0].WallTime
		for i, s := range samples {
			points[i].T = s.WallTime - origin
		}
	}
	return points
}

func isSQLitePath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return true
	}
	return false
}

// loadRecording reads any supported input format
func loadRecording(path string, session int64) (recording, error) {
	rec := recording{source: path, ssePercent: settings.Monitor.SSEPercent}

	if isSQLitePath(path) {
		store, err := capture.OpenStore(path)
		if err != nil {
			return rec, err
		}
		defer store.Close()

		if session == 0 {
			sessions, err := store.Sessions()
			if err != nil {
				return rec, err
			}
			if len(sessions) == 0 {
				return rec, fmt.Errorf("%s has no recorded sessions", path)
			}
			session = sessions[0].ID
		}
		samples, err := store.Samples(session)
		if err != nil {
			return rec, err
		}
		rec.source = fmt.Sprintf("%s#%d", path, session)
		rec.points = samplePoints(samples, true)
		return rec, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return rec, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".cbor":
		c, err := capture.ReadCapture(f)
		if err != nil {
			return rec, err
		}
		if c.Source != "" {
			rec.source = c.Source
		}
		rec.points = c.Points
		rec.cursorA, rec.cursorB = c.CursorA, c.CursorB
		rec.markers = c.Markers
		rec.ssePercent = c.SSEPercent
	case ".csv":
		rec.points, err = capture.ReadCSV(f)
		if err != nil {
			return rec, err
		}
	default:
		samples, err := readTextLog(f)
		if err != nil {
			return rec, err
		}
		rec.points = samplePoints(samples, false)
	}
	return rec, nil
}

// stepReplay runs the points through the live step tracker
func stepReplay(points []response.WindowPoint, ssePercent bool) response.StepMetrics {
	p := response.NewPipeline(response.Options{Logger: logger, SSEPercent: ssePercent})
	for _, pt := range points {
		ms := pt.T * 1000
		p.Ingest(pt.Target, pt.Actual, &ms)
	}
	return p.Tracker().Metrics(ssePercent)
}

func printSessions(w io.Writer, path string) error {
	store, err := capture.OpenStore(path)
	if err != nil {
		return err
	}
	defer store.Close()

	sessions, err := store.Sessions()
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions recorded.")
		return nil
	}
	headingColor.Fprintf(w, "%-6s %-20s %-10s %s\n", "ID", "Started", "Samples", "Source")
	for _, s := range sessions {
		fmt.Fprintf(w, "%-6d %-20s %-10d %s\n", s.ID, s.Started.Format("2006-01-02 15:04:05"), s.Samples, s.Source)
	}
	return nil
}

// printMetric writes one labeled metric, marking missing values
func printMetric(w io.Writer, label string, m response.Metric, format string) {
	keyColor.Fprintf(w, "  %-14s", label)
	if m.OK {
		goodColor.Fprintf(w, format+"\n", m.Value)
	} else {
		missingColor.Fprintln(w, response.Unavailable)
	}
}

func printAnalysis(w io.Writer, rec recording, win *response.Window, metrics response.WindowMetrics, step response.StepMetrics) {
	headingColor.Fprintf(w, "Response analysis: %s\n", rec.source)
	if t0, t1, ok := win.Span(); ok {
		fmt.Fprintf(w, "  %d samples over %.3f s\n", win.Len(), t1-t0)
	}
	a, b := win.Cursors()
	fmt.Fprintf(w, "  Cursors A=%.3fs B=%.3fs\n\n", *a, *b)

	if !metrics.Ready() {
		missingColor.Fprintln(w, metrics.Status)
	} else {
		headingColor.Fprintln(w, "Window metrics")
		keyColor.Fprintf(w, "  %-14s", "Target")
		fmt.Fprintf(w, "%.4f (from %.4f)\n", metrics.Target, metrics.PrevTarget)
		printMetric(w, "Settling", metrics.Settling, "%.3f s")
		printMetric(w, "Rise 10-90%", metrics.Rise, "%.3f s")
		keyColor.Fprintf(w, "  %-14s", "Peak")
		if metrics.Peak.OK {
			goodColor.Fprintf(w, "%.4f @ %.3f s\n", metrics.Peak.Value, metrics.PeakOffset)
		} else {
			missingColor.Fprintln(w, response.Unavailable)
		}
		printMetric(w, "Overshoot", metrics.Overshoot, "%.2f %%")
		sse := metrics.SSE
		format := "%.4f"
		if metrics.SSEPercent && metrics.Target != 0 && sse.OK {
			sse.Value = sse.Value / metrics.Target * 100
			format = "%.2f %%"
		}
		printMetric(w, "SSE", sse, format)
	}

	if markers := win.Markers(); len(markers) > 0 {
		headingColor.Fprintln(w, "\nMarkers")
		for i, m := range markers {
			fmt.Fprintf(w, "  M%d %s\n", i+1, m.Label())
		}
	}

	headingColor.Fprintln(w, "\nStep tracker")
	fmt.Fprintf(w, "  %s\n", step)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	path := args[0]

	if analyzeListSession {
		if !isSQLitePath(path) {
			return fmt.Errorf("--list-sessions needs a SQLite recording")
		}
		return printSessions(os.Stdout, path)
	}

	rec, err := loadRecording(path, analyzeSession)
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	if len(rec.points) == 0 {
		return fmt.Errorf("%s contains no samples", path)
	}

	flags := cmd.Flags()
	if flags.Changed("sse-percent") {
		rec.ssePercent = analyzeSSEPercent
	}

	win := response.ReplayWindow(rec.points)
	first, last := rec.points[0].T, rec.points[len(rec.points)-1].T
	switch {
	case flags.Changed("a"):
		win.SetCursor(response.CursorA, analyzeCursorA)
	case rec.cursorA != nil:
		win.SetCursor(response.CursorA, *rec.cursorA)
	default:
		win.SetCursor(response.CursorA, first)
	}
	switch {
	case flags.Changed("b"):
		win.SetCursor(response.CursorB, analyzeCursorB)
	case rec.cursorB != nil:
		win.SetCursor(response.CursorB, *rec.cursorB)
	default:
		win.SetCursor(response.CursorB, last)
	}

	markers := rec.markers
	if flags.Changed("marker") {
		markers = analyzeMarkers
	}
	for _, t := range markers {
		win.AddMarker(t)
	}

	metrics := win.Metrics(rec.ssePercent)
	printAnalysis(os.Stdout, rec, win, metrics, stepReplay(rec.points, rec.ssePercent))

	if analyzeExport == "" {
		return nil
	}
	formats, err := parseFormats(analyzeFormats)
	if err != nil {
		return err
	}
	paths, err := exportWindow(analyzeExport, win, rec.source, rec.ssePercent, formats, time.Now())
	for _, p := range paths {
		fmt.Printf("Saved %s\n", p)
	}
	return err
}
