// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/Thermoquad/pidscope/pkg/pidlink"
	"github.com/Thermoquad/pidscope/pkg/response"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	rawLogShowDuplicates bool
	rawLogEvents         bool
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display the controller's telemetry lines as they arrive",
	Long: `Continuously decode and display controller telemetry lines as they arrive.

Each received line is printed as "RX: <line>". Lines that repeat the previous
target/actual pair (or the previous line verbatim) are suppressed unless
--show-duplicates is set. With --events, the decoded form of each line is
printed beneath it.

Samples can be recorded while logging with --record (CSV) or --sqlite.

Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().BoolVar(&rawLogShowDuplicates, "show-duplicates", false, "Print repeated lines too")
	rawLogCmd.Flags().BoolVar(&rawLogEvents, "events", false, "Print the decoded event for each line")
	addRecordFlags(rawLogCmd)
}

var (
	rxLabel     = color.New(color.FgCyan).SprintFunc()
	eventColor  = color.New(color.FgGreen).SprintFunc()
	warnColor   = color.New(color.FgYellow).SprintFunc()
	errorColor  = color.New(color.FgRed, color.Bold).SprintFunc()
	statusColor = color.New(color.FgMagenta, color.Bold).SprintFunc()
)

// printLine writes one decoded line in raw_log format
func printLine(w io.Writer, line pidlink.DecodedLine, showDuplicates, events bool) {
	if line.Duplicate && !showDuplicates {
		return
	}
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Fprintf(w, "[%s] %s %s\n", timestamp, rxLabel("RX:"), line.Raw)

	switch ev := line.Event.(type) {
	case pidlink.StatusReport, pidlink.TuneStatus:
		fmt.Fprintf(w, "  %s\n", statusColor(pidlink.FormatEvent(ev)))
	case pidlink.Unrecognized:
		if events {
			fmt.Fprintf(w, "  %s\n", warnColor(pidlink.FormatEvent(ev)))
		}
	case pidlink.SampleBatch:
		if ev.Err != nil {
			fmt.Fprintf(w, "  %s\n", errorColor(pidlink.FormatEvent(ev)))
		} else if events {
			fmt.Fprintf(w, "  %s\n", eventColor(pidlink.FormatEvent(ev)))
		}
	default:
		if events {
			fmt.Fprintf(w, "  %s\n", eventColor(pidlink.FormatEvent(ev)))
		}
	}
}

func runRawLog(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection(settings)
	if err != nil {
		return err
	}
	defer conn.Close()

	recorder, closeRecorder, err := openRecorder(connInfo)
	if err != nil {
		return err
	}
	defer closeRecorder()

	fmt.Printf("pidscope - Raw Telemetry Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	pipeline := response.NewPipeline(response.Options{
		Logger:    logger,
		QueueSize: settings.Monitor.QueueSize,
	})
	if recorder != nil {
		pipeline.SetRecorder(recorder)
	}

	readErr := make(chan error, 1)
	go func() {
		readErr <- pumpText(ctx, conn, pipeline.Queue())
	}()

	ticker := time.NewTicker(settings.Monitor.PollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			fmt.Printf("\n%s", pipeline.Statistics().String())
			return nil

		case err := <-readErr:
			for _, line := range pipeline.Drain() {
				printLine(os.Stdout, line, rawLogShowDuplicates, rawLogEvents)
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			logger.Info("connection closed", "error", err)
			return nil

		case <-ticker.C:
			for _, line := range pipeline.Drain() {
				printLine(os.Stdout, line, rawLogShowDuplicates, rawLogEvents)
			}
		}
	}
}
