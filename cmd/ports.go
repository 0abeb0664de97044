// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.bug.st/serial/enumerator"
)

// ErrNoPorts is returned when auto-detection finds no serial ports
var ErrNoPorts = errors.New("no serial ports found")

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports and the auto-detected controller",
	Long: `List the serial ports visible to the system and show which one --auto
would choose.

Auto-detection prefers, in order:
  1. A USB port matching the configured VID/PID (default 0483:5740)
  2. A port whose USB product string mentions STM
  3. The first port listed

Exit codes:
  0 - At least one port found
  1 - No ports found
  2 - Enumeration error`,
	RunE: runPorts,
}

func init() {
	rootCmd.AddCommand(portsCmd)
}

// portReason explains why choosePort picked a port
type portReason string

const (
	reasonVIDPID portReason = "VID/PID match"
	reasonSTM    portReason = "STM product"
	reasonFirst  portReason = "first port"
)

// choosePort applies the auto-detect preference order to a port list
func choosePort(ports []*enumerator.PortDetails, vid, pid string) (*enumerator.PortDetails, portReason, bool) {
	if len(ports) == 0 {
		return nil, "", false
	}

	for _, p := range ports {
		if p.IsUSB && strings.EqualFold(p.VID, vid) && strings.EqualFold(p.PID, pid) {
			return p, reasonVIDPID, true
		}
	}

	for _, p := range ports {
		if strings.Contains(strings.ToUpper(p.Product), "STM") {
			return p, reasonSTM, true
		}
	}

	return ports[0], reasonFirst, true
}

// DetectPort enumerates serial ports and returns the preferred one
func DetectPort(vid, pid string) (string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return "", fmt.Errorf("enumerate serial ports: %w", err)
	}
	p, reason, ok := choosePort(ports, vid, pid)
	if !ok {
		return "", ErrNoPorts
	}
	logger.Info("auto-detected serial port", "port", p.Name, "reason", string(reason))
	return p.Name, nil
}

// formatPort describes a port for listing
func formatPort(p *enumerator.PortDetails) string {
	if !p.IsUSB {
		return p.Name
	}
	desc := fmt.Sprintf("%s  USB %s:%s", p.Name, strings.ToLower(p.VID), strings.ToLower(p.PID))
	if p.Product != "" {
		desc += "  " + p.Product
	}
	if p.SerialNumber != "" {
		desc += "  SN " + p.SerialNumber
	}
	return desc
}

func runPorts(cmd *cobra.Command, args []string) error {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Enumeration error: %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("pidscope - Serial Ports\n")
	fmt.Printf("Preferred USB ID: %s:%s\n\n", settings.Serial.VID, settings.Serial.PID)

	if len(ports) == 0 {
		fmt.Printf("No serial ports found\n")
		os.Exit(1)
	}

	chosen, reason, _ := choosePort(ports, settings.Serial.VID, settings.Serial.PID)
	for _, p := range ports {
		marker := "  "
		if p == chosen {
			marker = "* "
		}
		fmt.Printf("%s%s\n", marker, formatPort(p))
	}
	fmt.Printf("\nAuto-detect: %s (%s)\n", chosen.Name, reason)
	return nil
}
