// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// pidscope - PID Controller Telemetry Analyzer
//
// A CLI tool for monitoring a PID controller's target/actual telemetry and
// measuring step response quality.

package main

import (
	"os"

	"github.com/Thermoquad/pidscope/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
