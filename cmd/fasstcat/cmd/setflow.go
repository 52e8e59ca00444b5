// Copyright (C) 2026  FASST-CAT Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"fasstcat-go/pkg/flow"
)

var setFlowCmd = &cobra.Command{
	Use:   "set-flow GAS SCCM",
	Short: "Write one gas's flow setpoint",
	Long: `Write one gas's flow setpoint in sccm. A value of 0 zeroes the
controller without touching its calibration curve. Requests outside
the gas's calibrated range are rejected, not clamped.`,
	Args: cobra.ExactArgs(2),
	RunE: runSetFlow,
}

func init() {
	rootCmd.AddCommand(setFlowCmd)
}

func runSetFlow(cmd *cobra.Command, args []string) error {
	sccm, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("flow value %q: %w", args[1], err)
	}

	r, logger, err := openRig()
	if err != nil {
		return err
	}
	defer r.Close()

	if err := r.Flow.SetFlow(args[0], sccm); err != nil {
		var oor *flow.FlowOutOfRangeError
		if errors.As(err, &oor) {
			return fmt.Errorf("%s accepts %.4g to %.4g after calibration; asked for %.4g (converts to %.4g)",
				oor.Gas, oor.Min, oor.Max, oor.Requested, oor.Converted)
		}
		return err
	}
	logger.Info().Str("gas", args[0]).Float64("sccm", sccm).Msg("setpoint written")
	return nil
}
