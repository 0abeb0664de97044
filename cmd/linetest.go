// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/pidscope/pkg/pidlink"
	"github.com/spf13/cobra"
)

var (
	lineTestTimeout int
)

var lineTestCmd = &cobra.Command{
	Use:   "line_test",
	Short: "Test connection by waiting for a telemetry line",
	Long: `Wait for a decodable telemetry line on the connection until timeout.

This command connects to a serial port or WebSocket and waits for a line that
carries at least one target/actual sample (a bare pair or a sample batch).
Partial lines, gain reports and unrecognized lines are skipped.

Exit codes:
  0 - Telemetry received before timeout
  1 - Timeout reached without receiving telemetry
  2 - Connection error

Useful for checking the controller's firmware is streaming before running
the monitor.`,
	RunE: runLineTest,
}

func init() {
	rootCmd.AddCommand(lineTestCmd)
	lineTestCmd.Flags().IntVar(&lineTestTimeout, "timeout", 10, "Timeout in seconds to wait for telemetry")
}

// lineTestResult summarizes what the decoder saw before the first sample
type lineTestResult struct {
	line    pidlink.DecodedLine
	skipped int
}

// waitForTelemetry feeds chunks into a decoder until a telemetry line appears
func waitForTelemetry(chunks <-chan string) (lineTestResult, bool) {
	decoder := pidlink.NewLineDecoder()
	skipped := 0
	for chunk := range chunks {
		for _, line := range decoder.Feed(chunk) {
			if isTelemetry(line.Event) {
				return lineTestResult{line: line, skipped: skipped}, true
			}
			skipped++
		}
	}
	return lineTestResult{skipped: skipped}, false
}

func runLineTest(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection(settings)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("pidscope - Line Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", lineTestTimeout)
	fmt.Printf("Waiting for telemetry...\n\n")

	chunks := make(chan string, 16)
	errChan := make(chan error, 1)
	resultChan := make(chan lineTestResult, 1)

	// Reader goroutine
	go func() {
		defer close(chunks)
		buf := make([]byte, 256)
		failures := 0
		for {
			n, err := conn.Read(buf)
			if n > 0 {
				failures = 0
				chunks <- string(buf[:n])
			}
			if err != nil {
				failures++
				if err == ErrConnectionClosed || failures >= maxReadErrors {
					errChan <- err
					return
				}
			}
		}
	}()

	go func() {
		if result, ok := waitForTelemetry(chunks); ok {
			resultChan <- result
		}
	}()

	select {
	case result := <-resultChan:
		fmt.Printf("SUCCESS: Received telemetry\n")
		fmt.Printf("  Line: %s\n", result.line.Raw)
		fmt.Printf("  Decoded: %s\n", pidlink.FormatEvent(result.line.Event))
		if result.skipped > 0 {
			fmt.Printf("  (skipped %d non-telemetry lines)\n", result.skipped)
		}
		os.Exit(0)

	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)

	case <-time.After(time.Duration(lineTestTimeout) * time.Second):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No telemetry received within %d seconds\n", lineTestTimeout)
		os.Exit(1)
	}

	return nil
}
