// Prometheus process-variable adapter for the FASST-CAT rig
// Copyright (C) 2026  FASST-CAT Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package metrics exposes the rig's process variables to Prometheus.
// A poller samples the flow controllers on a fixed cadence and
// updates gauges; the core stays server-free and never depends on
// this package.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"fasstcat-go/pkg/flow"
	"fasstcat-go/pkg/safety"
)

// DefaultInterval is the poll cadence.
const DefaultInterval = 5 * time.Second

// StatusSource produces rig snapshots, normally *flow.Controller.
type StatusSource interface {
	Status() (*flow.Report, error)
}

// AlarmSource reports the watchdog state, normally *safety.Monitor.
type AlarmSource interface {
	State() safety.AlarmState
}

// Collector owns the rig gauges and the poller that feeds them.
type Collector struct {
	source StatusSource
	alarm  AlarmSource

	measured  *prometheus.GaugeVec
	setpoint  *prometheus.GaugeVec
	pressure  *prometheus.GaugeVec
	lineTotal *prometheus.GaugeVec
	alarmGau  prometheus.Gauge
	pollErrs  prometheus.Counter

	interval time.Duration
	logger   zerolog.Logger
}

// Options tunes a Collector.
type Options struct {
	Interval time.Duration
	Logger   *zerolog.Logger
}

// NewCollector builds the gauges and registers them on reg.
func NewCollector(reg prometheus.Registerer, source StatusSource, alarm AlarmSource, opts Options) *Collector {
	c := &Collector{
		source: source,
		alarm:  alarm,
		measured: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "fasstcat",
			Subsystem: "flow",
			Name:      "measured_sccm",
			Help:      "Measured flow per controller family.",
		}, []string{"family", "active_gas"}),
		setpoint: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "fasstcat",
			Subsystem: "flow",
			Name:      "setpoint_sccm",
			Help:      "Flow setpoint per controller family.",
		}, []string{"family", "active_gas"}),
		pressure: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "fasstcat",
			Subsystem: "line",
			Name:      "pressure_psia",
			Help:      "Feed line pressure.",
		}, []string{"line"}),
		lineTotal: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "fasstcat",
			Subsystem: "line",
			Name:      "total_flow_sccm",
			Help:      "Total measured flow per feed line.",
		}, []string{"line"}),
		alarmGau: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fasstcat",
			Subsystem: "safety",
			Name:      "alarm_state",
			Help:      "Watchdog state (0 nominal, 1 high, 2 low, 3 aborted).",
		}),
		pollErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fasstcat",
			Name:      "poll_errors_total",
			Help:      "Failed status polls.",
		}),
		interval: opts.Interval,
		logger:   zerolog.Nop(),
	}
	if c.interval == 0 {
		c.interval = DefaultInterval
	}
	if opts.Logger != nil {
		c.logger = *opts.Logger
	}
	reg.MustRegister(c.measured, c.setpoint, c.pressure, c.lineTotal, c.alarmGau, c.pollErrs)
	return c
}

// Poll samples the rig once and updates every gauge.
func (c *Collector) Poll() error {
	if c.alarm != nil {
		c.alarmGau.Set(float64(c.alarm.State()))
	}

	rep, err := c.source.Status()
	if err != nil {
		c.pollErrs.Inc()
		return err
	}
	for _, fs := range rep.Families {
		family := fs.Gases[0]
		c.measured.WithLabelValues(family, fs.Active).Set(fs.Measured)
		c.setpoint.WithLabelValues(family, fs.Active).Set(fs.Setpoint)
	}
	for line, ls := range rep.Lines {
		c.pressure.WithLabelValues(line).Set(ls.Pressure)
		c.lineTotal.WithLabelValues(line).Set(ls.Total)
	}
	return nil
}

// Run polls on the configured cadence until ctx is canceled. Poll
// failures are logged and counted, never fatal.
func (c *Collector) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Poll(); err != nil {
				c.logger.Warn().Err(err).Msg("status poll failed")
			}
		}
	}
}
