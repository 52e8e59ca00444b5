// Eurotherm temperature controller driver for the FASST-CAT rig
// Copyright (C) 2026  FASST-CAT Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package eurotherm reads and programs the reactor's Eurotherm
// temperature controller over Modbus. The controller stores process
// values as tenths of a unit in 16-bit holding registers.
package eurotherm

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"fasstcat-go/pkg/modbus"
	"fasstcat-go/pkg/retry"
)

// Holding register map (comms address, x10 fixed point).
const (
	regProcessValue    = 1  // thermocouple reading
	regWorkingSetpoint = 2  // active setpoint
	regProgramTemp     = 5  // programmer's current target
	regHeatingRate     = 35 // ramp rate, degC/min
	regOutputPower     = 85 // output power, percent
)

// Safe-state targets commanded on a pressure alarm or at the end of
// an experiment.
const (
	SafeSetpoint = 20.0 // degC
	SafeRate     = 10.0 // degC/min
)

// Controller drives one Eurotherm over an open Modbus client.
type Controller struct {
	client modbus.Client
	retry  retry.Options
	logger zerolog.Logger
}

// Options tunes a Controller.
type Options struct {
	// Retry governs register writes (default 5 attempts, 1 s apart).
	Retry  retry.Options
	Logger *zerolog.Logger
}

// NewController wraps a Modbus client.
func NewController(client modbus.Client, opts Options) *Controller {
	c := &Controller{
		client: client,
		retry:  opts.Retry,
		logger: zerolog.Nop(),
	}
	if opts.Logger != nil {
		c.logger = *opts.Logger
	}
	if c.retry.Logger == nil {
		c.retry.Logger = &c.logger
	}
	return c
}

func (c *Controller) readScaled(reg uint16) (float64, error) {
	regs, err := c.client.ReadHoldingRegisters(reg, 1)
	if err != nil {
		return 0, fmt.Errorf("eurotherm: read register %d: %w", reg, err)
	}
	return float64(regs[0]) / 10, nil
}

// Temperature returns the thermocouple reading in degC.
func (c *Controller) Temperature() (float64, error) {
	return c.readScaled(regProcessValue)
}

// WorkingSetpoint returns the active setpoint in degC.
func (c *Controller) WorkingSetpoint() (float64, error) {
	return c.readScaled(regWorkingSetpoint)
}

// ProgramTemperature returns the programmer's current target in degC.
func (c *Controller) ProgramTemperature() (float64, error) {
	return c.readScaled(regProgramTemp)
}

// HeatingRate returns the ramp rate in degC/min.
func (c *Controller) HeatingRate() (float64, error) {
	return c.readScaled(regHeatingRate)
}

// PowerOutput returns the output power in percent.
func (c *Controller) PowerOutput() (float64, error) {
	return c.readScaled(regOutputPower)
}

func (c *Controller) writeScaled(reg uint16, value float64, desc string) error {
	scaled := math.Round(value * 10)
	if scaled < 0 || scaled > math.MaxUint16 {
		return fmt.Errorf("eurotherm: %s %.4g out of register range", desc, value)
	}
	if !retry.Write(c.client, reg, uint16(scaled), desc, c.retry) {
		return fmt.Errorf("eurotherm: %s write failed after retries", desc)
	}
	return nil
}

// WriteSetpoint programs the working setpoint in degC.
func (c *Controller) WriteSetpoint(degC float64) error {
	c.logger.Info().Float64("setpoint", degC).Msg("writing temperature setpoint")
	return c.writeScaled(regWorkingSetpoint, degC, "setpoint")
}

// WriteHeatingRate programs the ramp rate in degC/min.
func (c *Controller) WriteHeatingRate(rate float64) error {
	c.logger.Info().Float64("rate", rate).Msg("writing heating rate")
	return c.writeScaled(regHeatingRate, rate, "heating rate")
}

// SafeShutdown ramps the reactor back to ambient. The rate is written
// first so the setpoint change takes effect at the safe ramp. Both
// writes are attempted even if the first fails.
func (c *Controller) SafeShutdown() error {
	c.logger.Warn().Msg("commanding temperature safe state")
	rateErr := c.WriteHeatingRate(SafeRate)
	spErr := c.WriteSetpoint(SafeSetpoint)
	if rateErr != nil {
		return rateErr
	}
	return spErr
}
