// Copyright (C) 2026  FASST-CAT Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"fasstcat-go/pkg/config"
	"fasstcat-go/pkg/logging"
	"fasstcat-go/pkg/rig"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "fasstcat",
	Short: "Gas delivery and valve routing control for the FASST-CAT test-bed",
	Long: `fasstcat drives the catalysis test-bed's gas delivery system:
mass flow controller setpoints, selector-valve routing, pulse
sequencing and the pressure safety watchdog.

Examples:
  fasstcat status                     # flow, pressure and valve report
  fasstcat set-flow Ar_A 15           # 15 sccm of argon on line A
  fasstcat mode continuous-A          # route line A to the reactor
  fasstcat pulse A 10 2s              # 10 loop toggles, 2 s apart
  fasstcat serve --listen :9090       # Prometheus adapter`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.json", "rig configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace..error)")
}

// openRig loads the configuration and dials the rig's transports. The
// caller owns the returned rig and must Close it.
func openRig() (*rig.Rig, zerolog.Logger, error) {
	logger := logging.Init("fasstcat", logLevel)

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, logger, err
	}
	r, err := rig.New(cfg, rig.Options{Logger: &logger})
	if err != nil {
		return nil, logger, err
	}
	return r, logger, nil
}
