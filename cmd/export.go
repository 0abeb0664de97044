// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Thermoquad/pidscope/pkg/capture"
	"github.com/Thermoquad/pidscope/pkg/response"
)

// Export formats, by file extension
const (
	formatCSV  = "csv"
	formatCBOR = "cbor"
	formatPNG  = "png"
)

var allExportFormats = []string{formatCSV, formatCBOR, formatPNG}

// exportBaseName returns a timestamped path prefix inside dir
func exportBaseName(dir string, now time.Time) string {
	return filepath.Join(dir, "response_window_"+now.Format("20060102_150405"))
}

// parseFormats splits a comma-separated format list
func parseFormats(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" || s == "all" {
		return allExportFormats, nil
	}
	var out []string
	for _, f := range strings.Split(s, ",") {
		f = strings.ToLower(strings.TrimSpace(f))
		switch f {
		case formatCSV, formatCBOR, formatPNG:
			out = append(out, f)
		default:
			return nil, fmt.Errorf("unknown export format %q (use csv, cbor, png)", f)
		}
	}
	return out, nil
}

// exportWindow writes the window's points in each format to base.<ext>
// and returns the paths written
func exportWindow(base string, w *response.Window, source string, ssePercent bool, formats []string, now time.Time) ([]string, error) {
	if w.Len() == 0 {
		return nil, fmt.Errorf("response window is empty")
	}
	if dir := filepath.Dir(base); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create export directory: %w", err)
		}
	}

	var written []string
	for _, format := range formats {
		path := base + "." + format
		if err := writeExport(path, format, w, source, ssePercent, now); err != nil {
			return written, fmt.Errorf("export %s: %w", path, err)
		}
		written = append(written, path)
		logger.Info("exported response window", "path", path, "points", w.Len())
	}
	return written, nil
}

func writeExport(path, format string, w *response.Window, source string, ssePercent bool, now time.Time) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	switch format {
	case formatCSV:
		err = capture.WriteWindowCSV(f, w.Points())
	case formatCBOR:
		err = capture.WriteCapture(f, capture.NewCapture(w, source, ssePercent, now))
	case formatPNG:
		a, b := w.Cursors()
		err = capture.RenderWindowPNG(f, w.Points(), capture.ChartOptions{
			Title:   w.Metrics(ssePercent).String(),
			CursorA: a,
			CursorB: b,
			Markers: w.Markers(),
		})
	default:
		err = fmt.Errorf("unknown export format %q", format)
	}

	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
	}
	return err
}
