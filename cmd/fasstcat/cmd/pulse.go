// Copyright (C) 2026  FASST-CAT Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

var pulseCmd = &cobra.Command{
	Use:   "pulse VALVE COUNT INTERVAL",
	Short: "Toggle a valve repeatedly",
	Long: `Send COUNT raw toggle commands to VALVE, waiting INTERVAL between
toggles, e.g. "fasstcat pulse A 10 2s". Pulses are not verified by
readback; readback would break the pulse timing.`,
	Args: cobra.ExactArgs(3),
	RunE: runPulse,
}

var pulseLoopCmd = &cobra.Command{
	Use:   "pulse-loop LINE COUNT INTERVAL",
	Short: "Send dual-loop pulses on a carrier line",
	Long: `Select the pulsed-loop topology for LINE (A or B), then alternate
the gas loops COUNT times, waiting INTERVAL between alternations.`,
	Args: cobra.ExactArgs(3),
	RunE: runPulseLoop,
}

var pulseValveCmd = &cobra.Command{
	Use:   "pulse-valve COUNT OPEN BETWEEN",
	Short: "Inject pulses by flipping between the continuous modes",
	Long: `Inject COUNT pulses by switching line B onto the reactor for OPEN
(plus the valve actuation allowance) and restoring line A for BETWEEN.
The rig is left in continuous mode A.`,
	Args: cobra.ExactArgs(3),
	RunE: runPulseValve,
}

func init() {
	rootCmd.AddCommand(pulseCmd)
	rootCmd.AddCommand(pulseLoopCmd)
	rootCmd.AddCommand(pulseValveCmd)
}

func parseCount(arg string) (int, error) {
	count, err := strconv.Atoi(arg)
	if err != nil || count < 1 {
		return 0, fmt.Errorf("pulse count %q must be a positive integer", arg)
	}
	return count, nil
}

func parseInterval(arg string) (time.Duration, error) {
	d, err := time.ParseDuration(arg)
	if err != nil {
		return 0, fmt.Errorf("interval %q: %w", arg, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("interval %q must not be negative", arg)
	}
	return d, nil
}

func runPulse(cmd *cobra.Command, args []string) error {
	count, err := parseCount(args[1])
	if err != nil {
		return err
	}
	interval, err := parseInterval(args[2])
	if err != nil {
		return err
	}

	r, _, err := openRig()
	if err != nil {
		return err
	}
	defer r.Close()

	return r.Valves.PulseValve(args[0], count, interval)
}

func runPulseLoop(cmd *cobra.Command, args []string) error {
	count, err := parseCount(args[1])
	if err != nil {
		return err
	}
	interval, err := parseInterval(args[2])
	if err != nil {
		return err
	}

	r, _, err := openRig()
	if err != nil {
		return err
	}
	defer r.Close()

	// Pulse sequences run under the pressure watchdog.
	return r.Guarded(func() error {
		return r.SendLoopPulses(args[0], count, interval)
	})
}

func runPulseValve(cmd *cobra.Command, args []string) error {
	count, err := parseCount(args[0])
	if err != nil {
		return err
	}
	open, err := parseInterval(args[1])
	if err != nil {
		return err
	}
	between, err := parseInterval(args[2])
	if err != nil {
		return err
	}

	r, _, err := openRig()
	if err != nil {
		return err
	}
	defer r.Close()

	return r.Guarded(func() error {
		return r.SendValvePulses(count, open, between)
	})
}
