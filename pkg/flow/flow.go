// Flow conversion and setpoint writing for the FASST-CAT gas rig
// Copyright (C) 2026  FASST-CAT Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package flow converts requested gas flows into device setpoints and
// writes them to the mass flow controllers, honoring the calibration
// table and the one-active-gas-per-family rule.
package flow

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"fasstcat-go/pkg/gas"
	"fasstcat-go/pkg/propar"
	"fasstcat-go/pkg/retry"
)

// Process/parameter addresses on the flow controllers.
const (
	procMeasure    = 33
	parmMeasure    = 0
	parmFSetpoint  = 3
	procSetup      = 1
	parmSetpoint   = 1
	parmFluidIndex = 16

	// setpointFull is the integer setpoint at 100% of the active
	// calibration curve.
	setpointFull = 32000
)

// Default pressure sensor nodes for the two feed lines.
const (
	DefaultPressureNodeA = 3
	DefaultPressureNodeB = 14
)

// ParamBus is the flow-controller transport.
type ParamBus interface {
	ReadParameters(params []propar.Param) ([]propar.Value, error)
	WriteParameters(params []propar.Param) error
}

// FeedRouter selects the physical feed path for gases that share a
// line. A nil router skips path selection entirely.
type FeedRouter interface {
	FeedGas(name string) error
}

// FlowOutOfRangeError reports a request outside the calibrated range
// of a gas. Nothing is written; the caller decides what to do.
type FlowOutOfRangeError struct {
	Gas       string
	Requested float64 // sccm, as asked for
	Converted float64 // after the calibration factor
	Min, Max  float64
}

func (e *FlowOutOfRangeError) Error() string {
	return fmt.Sprintf("flow: %s: %.4g sccm converts to %.4g, outside range [%.4g, %.4g]",
		e.Gas, e.Requested, e.Converted, e.Min, e.Max)
}

// Options tunes a Controller.
type Options struct {
	// Retry governs setpoint writes (default 5 attempts, 1 s apart).
	Retry retry.Options

	// Pressure sensor nodes; zero values take the line defaults.
	PressureNodeA byte
	PressureNodeB byte

	Logger *zerolog.Logger
}

// Controller writes setpoints and reads process values for every gas
// in the calibration table.
type Controller struct {
	bus    ParamBus
	table  *gas.Table
	router FeedRouter
	retry  retry.Options
	nodeA  byte
	nodeB  byte
	logger zerolog.Logger
}

// NewController assembles a flow controller over an open bus.
func NewController(bus ParamBus, table *gas.Table, router FeedRouter, opts Options) *Controller {
	c := &Controller{
		bus:    bus,
		table:  table,
		router: router,
		retry:  opts.Retry,
		nodeA:  opts.PressureNodeA,
		nodeB:  opts.PressureNodeB,
		logger: zerolog.Nop(),
	}
	if c.nodeA == 0 {
		c.nodeA = DefaultPressureNodeA
	}
	if c.nodeB == 0 {
		c.nodeB = DefaultPressureNodeB
	}
	if opts.Logger != nil {
		c.logger = *opts.Logger
	}
	if c.retry.Logger == nil {
		c.retry.Logger = &c.logger
	}
	return c
}

// SetFlow writes one gas's setpoint. A zero request writes setpoint 0
// without touching the calibration curve or the feed path. A non-zero
// request selects the feed path, then writes curve and setpoint as
// one frame through the retry wrapper. Out-of-range requests are
// rejected without clamping.
func (c *Controller) SetFlow(name string, sccm float64) error {
	def, err := c.table.Lookup(name)
	if err != nil {
		return err
	}
	if sccm == 0 {
		c.logger.Debug().Str("gas", name).Msg("zeroing setpoint")
		return c.writeSetpoint(def, 0, nil)
	}

	converted := sccm / def.CalFactor
	if converted < def.FlowMin || converted > def.FlowMax {
		return &FlowOutOfRangeError{
			Gas:       name,
			Requested: sccm,
			Converted: converted,
			Min:       def.FlowMin,
			Max:       def.FlowMax,
		}
	}

	if c.router != nil {
		if err := c.router.FeedGas(name); err != nil {
			return fmt.Errorf("flow: %s: feed path: %w", name, err)
		}
	}

	data := int(math.Round(converted * setpointFull / def.IntScale))
	c.logger.Info().Str("gas", name).Float64("sccm", sccm).
		Float64("converted", converted).Int("setpoint", data).
		Msg("writing flow setpoint")
	return c.writeSetpoint(def, data, def.Curve)
}

// writeSetpoint sends the optional curve selection and the integer
// setpoint to the gas's node in a single chained frame, retried as a
// unit.
func (c *Controller) writeSetpoint(def *gas.Definition, value int, curve *int) error {
	params := make([]propar.Param, 0, 2)
	if curve != nil {
		params = append(params, propar.Param{
			Node: def.Node, Process: procSetup, Param: parmFluidIndex,
			Type: propar.TypeInt8, Data: *curve,
		})
	}
	params = append(params, propar.Param{
		Node: def.Node, Process: procSetup, Param: parmSetpoint,
		Type: propar.TypeInt16, Data: value,
	})

	desc := fmt.Sprintf("setpoint %s", def.Name)
	ok := retry.Do(desc, c.retry, func() bool {
		return c.bus.WriteParameters(params) == nil
	})
	if !ok {
		return fmt.Errorf("flow: %s: setpoint write failed after retries", def.Name)
	}
	return nil
}

// SetAllSetpoints applies one coherent set of flows across all
// families. Within each family the first listed gas with a positive
// request wins; every other controller node of the family is zeroed
// first so the winner's write lands last. A nil or empty request
// zeroes everything, which is the safety path.
func (c *Controller) SetAllSetpoints(req map[string]float64) error {
	for name, v := range req {
		if !c.table.Has(name) {
			return fmt.Errorf("flow: %w: %s", gas.ErrUnknownGas, name)
		}
		if v < 0 {
			return fmt.Errorf("flow: %s: negative flow %.4g", name, v)
		}
	}

	var firstErr error
	for _, family := range c.table.Families() {
		winner := ""
		var want float64
		for _, name := range family {
			v, ok := req[name]
			if !ok || v == 0 {
				continue
			}
			if winner == "" {
				winner, want = name, v
				continue
			}
			c.logger.Warn().Str("gas", name).Str("active", winner).
				Msg("sibling setpoint discarded, family already active")
		}

		var winnerNode byte
		if winner != "" {
			def, err := c.table.Lookup(winner)
			if err != nil {
				return err
			}
			winnerNode = def.Node
		}

		zeroed := make(map[byte]bool)
		for _, name := range family {
			def, err := c.table.Lookup(name)
			if err != nil {
				return err
			}
			if winner != "" && def.Node == winnerNode {
				continue
			}
			if zeroed[def.Node] {
				continue
			}
			zeroed[def.Node] = true
			if err := c.SetFlow(name, 0); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		if winner != "" {
			if err := c.SetFlow(winner, want); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// ZeroAll is SetAllSetpoints with no requests. The safety monitor
// uses it to shut every flow down.
func (c *Controller) ZeroAll() error {
	return c.SetAllSetpoints(nil)
}
