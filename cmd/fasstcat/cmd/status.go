// Copyright (C) 2026  FASST-CAT Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the flow, pressure and temperature report",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	r, _, err := openRig()
	if err != nil {
		return err
	}
	defer r.Close()

	rep, err := r.Flow.Status()
	if err != nil {
		return err
	}

	fmt.Println("--- Flow Report ---")
	for _, fs := range rep.Families {
		fmt.Printf("%-24s active %-8s measured %7.2f  setpoint %7.2f  (%5.1f%%)\n",
			familyLabel(fs.Gases), fs.Active, fs.Measured, fs.Setpoint, fs.Percent)
	}
	for _, line := range []string{"A", "B"} {
		ls := rep.Lines[line]
		fmt.Printf("line %s: total flow %7.2f  pressure %6.2f psia\n", line, ls.Total, ls.Pressure)
	}

	if r.Temp != nil {
		tc, err := r.Temp.Temperature()
		if err != nil {
			return err
		}
		wsp, err := r.Temp.WorkingSetpoint()
		if err != nil {
			return err
		}
		power, err := r.Temp.PowerOutput()
		if err != nil {
			return err
		}
		fmt.Printf("reactor: %6.1f degC  setpoint %6.1f degC  power %5.1f%%\n", tc, wsp, power)
	}
	return nil
}

func familyLabel(gases []string) string {
	label := gases[0]
	for _, g := range gases[1:] {
		label += "/" + g
	}
	return label
}
