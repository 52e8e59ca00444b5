// Top-level assembly of the FASST-CAT gas delivery rig
// Copyright (C) 2026  FASST-CAT Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package rig assembles the calibration table, transports and
// controllers into one operable gas delivery system and provides the
// reaction-mode and pulse operations built on top of them.
package rig

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"fasstcat-go/pkg/config"
	"fasstcat-go/pkg/eurotherm"
	"fasstcat-go/pkg/flow"
	"fasstcat-go/pkg/gas"
	"fasstcat-go/pkg/modbus"
	"fasstcat-go/pkg/propar"
	"fasstcat-go/pkg/safety"
	"fasstcat-go/pkg/valve"
)

// ValveActuationTime is the mechanical allowance added to the open
// time of each valve-flip pulse.
const ValveActuationTime = 145 * time.Millisecond

// Rig is the assembled system. Temp is nil when no temperature
// controller is configured.
type Rig struct {
	Gases   *gas.Table
	Flow    *flow.Controller
	Valves  *valve.Controller
	Temp    *eurotherm.Controller
	Monitor *safety.Monitor

	logger  zerolog.Logger
	sleep   func(time.Duration)
	closers []io.Closer
}

// Options tunes the assembly.
type Options struct {
	Safety safety.Config

	// Sleep replaces time.Sleep in tests.
	Sleep func(time.Duration)

	Logger *zerolog.Logger
}

// pressureSampler adapts the flow controller's pressure report to the
// safety monitor.
type pressureSampler struct {
	fc *flow.Controller
}

func (p pressureSampler) SamplePressures() (float64, float64, error) {
	pr, err := p.fc.PressureReport()
	return pr.LineA, pr.LineB, err
}

// Assemble builds a Rig from already-constructed components. temp may
// be nil.
func Assemble(table *gas.Table, fc *flow.Controller, vc *valve.Controller, temp *eurotherm.Controller, opts Options) *Rig {
	r := &Rig{
		Gases:  table,
		Flow:   fc,
		Valves: vc,
		Temp:   temp,
		logger: zerolog.Nop(),
		sleep:  opts.Sleep,
	}
	if r.sleep == nil {
		r.sleep = time.Sleep
	}
	if opts.Logger != nil {
		r.logger = *opts.Logger
	}

	var setback safety.TempSetback
	if temp != nil {
		setback = temp
	}
	r.Monitor = safety.NewMonitor(pressureSampler{fc}, fc, setback, opts.Safety)
	return r
}

// New dials every transport named in the rig configuration, loads the
// gas table and assembles the system. Close releases the transports.
func New(cfg *config.Rig, opts Options) (*Rig, error) {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	table, err := gas.LoadTable(cfg.GasTable)
	if err != nil {
		return nil, err
	}

	var closers []io.Closer
	closeAll := func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}

	var mfcConn io.ReadWriteCloser
	if cfg.MFCOverTCP() {
		mfcConn, err = propar.DialTCP(cfg.MFCAddr(), 0)
	} else {
		mfcConn, err = propar.DialSerial(cfg.MFCSerialPort, cfg.MFCBaud)
	}
	if err != nil {
		return nil, err
	}
	closers = append(closers, mfcConn)

	var valveConn valve.Conn
	var valveCloser io.Closer
	if cfg.ValvesOverTCP() {
		valveConn, valveCloser, err = valve.DialTCP(cfg.ValveAddr(), 0)
	} else {
		valveConn, valveCloser, err = valve.DialSerial(cfg.ValveSerialPort, 0)
	}
	if err != nil {
		closeAll()
		return nil, err
	}
	closers = append(closers, valveCloser)

	vc := valve.NewController(valveConn, valve.Options{Logger: &logger})
	if err := bindFeeds(table, vc); err != nil {
		closeAll()
		return nil, err
	}

	var temp *eurotherm.Controller
	if cfg.EuroOverTCP() || cfg.EuroSerialPort != "" {
		var client modbus.Client
		var closer io.Closer
		if cfg.EuroOverTCP() {
			client, closer, err = modbus.DialTCP(cfg.EuroAddr(), byte(cfg.EuroUnitID), 0)
		} else {
			client, closer, err = modbus.DialRTU(cfg.EuroSerialPort, 0, byte(cfg.EuroUnitID))
		}
		if err != nil {
			closeAll()
			return nil, err
		}
		closers = append(closers, closer)
		temp = eurotherm.NewController(client, eurotherm.Options{Logger: &logger})
	}

	fc := flow.NewController(propar.NewMaster(mfcConn), table, vc, flow.Options{Logger: &logger})

	r := Assemble(table, fc, vc, temp, opts)
	r.closers = closers
	return r, nil
}

// bindFeeds wires each gas's feed valve binding into the router.
func bindFeeds(table *gas.Table, vc *valve.Controller) error {
	for _, name := range table.Names() {
		def, err := table.Lookup(name)
		if err != nil {
			return err
		}
		if def.FeedValve == "" {
			continue
		}
		target := valve.Off
		if def.FeedOn {
			target = valve.On
		}
		if err := vc.BindGasFeed(name, def.FeedValve, target); err != nil {
			return fmt.Errorf("rig: feed binding for %s: %w", name, err)
		}
	}
	return nil
}

// Close releases every transport New opened.
func (r *Rig) Close() error {
	var firstErr error
	for _, c := range r.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Guarded runs op under the pressure watchdog.
func (r *Rig) Guarded(op func() error) error {
	return r.Monitor.RunGuarded(op)
}

// ContinuousA routes line A to the reactor and line B through the
// loops to vent.
func (r *Rig) ContinuousA() error {
	return r.Valves.ApplyMode(valve.ContinuousA)
}

// ContinuousB routes line B to the reactor and line A to waste.
func (r *Rig) ContinuousB() error {
	return r.Valves.ApplyMode(valve.ContinuousB)
}

// PulsedLoopA selects the dual-loop pulse topology with line A as the
// carrier.
func (r *Rig) PulsedLoopA() error {
	return r.Valves.ApplyMode(valve.PulsedLoopA)
}

// PulsedLoopB selects the dual-loop pulse topology with line B as the
// carrier.
func (r *Rig) PulsedLoopB() error {
	return r.Valves.ApplyMode(valve.PulsedLoopB)
}

// SendLoopPulses selects the pulsed-loop mode for the given line, then
// alternates the loops by toggling valve A count times, waiting
// interval between toggles.
func (r *Rig) SendLoopPulses(line string, count int, interval time.Duration) error {
	var mode valve.Mode
	switch line {
	case "A":
		mode = valve.PulsedLoopA
	case "B":
		mode = valve.PulsedLoopB
	default:
		return fmt.Errorf("rig: pulse line %q is not A or B", line)
	}
	if err := r.Valves.ApplyMode(mode); err != nil {
		return err
	}
	r.logger.Info().Str("line", line).Int("pulses", count).
		Dur("interval", interval).Msg("sending loop pulses")
	return r.Valves.PulseValve("A", count, interval)
}

// SendValvePulses injects count pulses by flipping the whole rig
// between the continuous modes: line B feeds the reactor for the open
// time plus the actuation allowance, then line A is restored for the
// between time. The rig is left in continuous mode A.
func (r *Rig) SendValvePulses(count int, open, between time.Duration) error {
	if count < 1 {
		return fmt.Errorf("rig: pulse count %d", count)
	}
	if err := r.ContinuousA(); err != nil {
		return err
	}
	r.logger.Info().Int("pulses", count).Dur("open", open).
		Dur("between", between).Msg("sending valve pulses")
	for i := 0; i < count; i++ {
		if err := r.ContinuousB(); err != nil {
			return fmt.Errorf("rig: pulse %d/%d: %w", i+1, count, err)
		}
		r.sleep(open + ValveActuationTime)
		if err := r.ContinuousA(); err != nil {
			return fmt.Errorf("rig: pulse %d/%d: %w", i+1, count, err)
		}
		r.sleep(between)
	}
	return nil
}
