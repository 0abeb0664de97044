// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/Thermoquad/pidscope/pkg/capture"
	"github.com/Thermoquad/pidscope/pkg/response"
	"github.com/spf13/cobra"
)

// maxReadErrors is how many consecutive failed reads mean the link is gone
const maxReadErrors = 10

var (
	recordPath string
	sqlitePath string
)

// addRecordFlags registers the live recording flags on a command
func addRecordFlags(c *cobra.Command) {
	c.Flags().StringVar(&recordPath, "record", "", "Record every sample to CSV (timestamp,target,actual)")
	c.Flags().StringVar(&sqlitePath, "sqlite", "", "Record every sample into a SQLite session database")
}

// pumpText copies connection bytes into the queue until the connection is
// lost or ctx ends. Serial reads that time out return no data and are not
// errors; a WebSocket read error or a run of failed serial reads is.
func pumpText(ctx context.Context, conn Connection, q *response.TextQueue) error {
	buf := make([]byte, 256)
	failures := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := conn.Read(buf)
		if n > 0 {
			failures = 0
			if perr := q.Push(ctx, string(buf[:n])); perr != nil {
				return perr
			}
		}
		if err == nil {
			continue
		}

		if errors.Is(err, ErrConnectionClosed) || errors.Is(err, io.EOF) {
			return err
		}
		failures++
		if failures >= maxReadErrors {
			return err
		}
		// Brief pause before retry on transient errors (e.g., serial)
		time.Sleep(10 * time.Millisecond)
	}
}

// openRecorder builds the sample recorder requested by flags and config.
// It returns a nil recorder when recording is off. The close function is
// never nil.
func openRecorder(source string) (response.Recorder, func(), error) {
	var recorders capture.MultiRecorder
	var closers []func() error

	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Warn("closing recorder failed", "error", err)
			}
		}
	}

	if recordPath != "" {
		rec, err := capture.CreateCSVRecorder(recordPath)
		if err != nil {
			return nil, closeAll, err
		}
		recorders = append(recorders, rec)
		closers = append(closers, rec.Close)
		logger.Info("recording samples", "format", "csv", "path", recordPath)
	}

	dbPath := sqlitePath
	if dbPath == "" {
		dbPath = settings.Recording.SQLitePath
	}
	if dbPath != "" {
		store, err := capture.OpenStore(dbPath)
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		session, err := store.BeginSession(source, time.Now())
		if err != nil {
			store.Close()
			closeAll()
			return nil, func() {}, err
		}
		recorders = append(recorders, session)
		closers = append(closers, store.Close, session.Close)
		logger.Info("recording samples", "format", "sqlite", "path", dbPath, "session", session.ID())
	}

	switch len(recorders) {
	case 0:
		return nil, closeAll, nil
	case 1:
		return recorders[0], closeAll, nil
	default:
		return recorders, closeAll, nil
	}
}
