// Copyright (C) 2026  FASST-CAT Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"fasstcat-go/pkg/metrics"
)

var (
	serveListen   string
	serveInterval time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Prometheus process-variable adapter",
	Long: `Poll the rig's process variables on a fixed cadence and expose them
as Prometheus gauges on /metrics. Runs until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", ":9090", "metrics listen address")
	serveCmd.Flags().DurationVar(&serveInterval, "interval", metrics.DefaultInterval, "poll cadence")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	r, logger, err := openRig()
	if err != nil {
		return err
	}
	defer r.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg, r.Flow, r.Monitor, metrics.Options{
		Interval: serveInterval,
		Logger:   &logger,
	})
	go collector.Run(ctx)

	logger.Info().Str("listen", serveListen).Dur("interval", serveInterval).
		Msg("serving process variables")
	if err := metrics.Serve(ctx, serveListen, reg); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
