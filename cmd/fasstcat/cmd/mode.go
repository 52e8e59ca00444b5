// Copyright (C) 2026  FASST-CAT Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"fasstcat-go/pkg/valve"
)

var modeCmd = &cobra.Command{
	Use:   "mode NAME",
	Short: "Select a reaction mode (valve topology)",
	Long: `Select one of the standard valve topologies:

  continuous-A    line A -> reactor, line B -> loops -> vent
  continuous-B    line B -> reactor, line A -> waste
  pulsed-loop-A   dual-loop pulses, line A carrier
  pulsed-loop-B   dual-loop pulses, line B carrier`,
	Args: cobra.ExactArgs(1),
	RunE: runMode,
}

func init() {
	rootCmd.AddCommand(modeCmd)
}

func runMode(cmd *cobra.Command, args []string) error {
	mode, ok := valve.Modes()[args[0]]
	if !ok {
		names := make([]string, 0, len(valve.Modes()))
		for name := range valve.Modes() {
			names = append(names, name)
		}
		sort.Strings(names)
		return fmt.Errorf("unknown mode %q, have %v", args[0], names)
	}

	r, _, err := openRig()
	if err != nil {
		return err
	}
	defer r.Close()

	if err := r.Valves.ApplyMode(mode); err != nil {
		return err
	}

	positions, err := r.Valves.Positions([]string{"A", "B", "C"})
	if err != nil {
		return err
	}
	for _, id := range []string{"A", "B", "C"} {
		fmt.Printf("valve %s: %s\n", id, positions[id])
	}
	return nil
}
