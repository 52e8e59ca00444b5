// Copyright (C) 2026  FASST-CAT Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package flow

import (
	"fmt"
	"strings"

	"fasstcat-go/pkg/propar"
)

// FamilyStatus is one family's process values. The controller reports
// in the units of the active calibration curve.
type FamilyStatus struct {
	Gases      []string
	Active     string
	Node       byte
	Measured   float64
	Setpoint   float64
	FluidIndex int

	// Percent is this family's share of its line's total flow, or 0
	// when the line is idle.
	Percent float64
}

// LineStatus aggregates a feed line.
type LineStatus struct {
	Total    float64
	Pressure float64
}

// Report is a full rig snapshot.
type Report struct {
	Families []FamilyStatus
	Lines    map[string]LineStatus
}

// Pressures is one sample of both line pressure sensors.
type Pressures struct {
	LineA float64
	LineB float64
}

// measureParams addresses a controller's measure, float setpoint and
// fluid index in one chained read.
func measureParams(node byte) []propar.Param {
	return []propar.Param{
		{Node: node, Process: procMeasure, Param: parmMeasure, Type: propar.TypeFloat32},
		{Node: node, Process: procMeasure, Param: parmFSetpoint, Type: propar.TypeFloat32},
		{Node: node, Process: procSetup, Param: parmFluidIndex, Type: propar.TypeInt8},
	}
}

// Status reads every family's controller and both pressure sensors
// and assembles a snapshot. The active gas is resolved from the fluid
// index, which selects a position in the family's listed order.
func (c *Controller) Status() (*Report, error) {
	rep := &Report{Lines: make(map[string]LineStatus)}
	totals := make(map[string]float64)

	for _, family := range c.table.Families() {
		def, err := c.table.Lookup(family[0])
		if err != nil {
			return nil, err
		}
		vals, err := c.bus.ReadParameters(measureParams(def.Node))
		if err != nil {
			return nil, fmt.Errorf("flow: status %s: %w", family[0], err)
		}
		measured, err := vals[0].Float()
		if err != nil {
			return nil, fmt.Errorf("flow: status %s: %w", family[0], err)
		}
		setpoint, err := vals[1].Float()
		if err != nil {
			return nil, fmt.Errorf("flow: status %s: %w", family[0], err)
		}
		idx, err := vals[2].Int()
		if err != nil {
			return nil, fmt.Errorf("flow: status %s: %w", family[0], err)
		}

		active := family[0]
		if idx >= 0 && idx < len(family) {
			active = family[idx]
		}
		rep.Families = append(rep.Families, FamilyStatus{
			Gases:      family,
			Active:     active,
			Node:       def.Node,
			Measured:   measured,
			Setpoint:   setpoint,
			FluidIndex: idx,
		})
		totals[lineOf(active)] += measured
	}

	for i := range rep.Families {
		fs := &rep.Families[i]
		if total := totals[lineOf(fs.Active)]; total != 0 {
			fs.Percent = fs.Measured / total * 100
		}
	}

	pr, err := c.PressureReport()
	if err != nil {
		return nil, err
	}
	rep.Lines["A"] = LineStatus{Total: totals["A"], Pressure: pr.LineA}
	rep.Lines["B"] = LineStatus{Total: totals["B"], Pressure: pr.LineB}
	return rep, nil
}

// PressureReport samples both line pressure sensors back to back.
func (c *Controller) PressureReport() (Pressures, error) {
	a, err := c.readPressure(c.nodeA)
	if err != nil {
		return Pressures{}, fmt.Errorf("flow: line A pressure: %w", err)
	}
	b, err := c.readPressure(c.nodeB)
	if err != nil {
		return Pressures{}, fmt.Errorf("flow: line B pressure: %w", err)
	}
	return Pressures{LineA: a, LineB: b}, nil
}

func (c *Controller) readPressure(node byte) (float64, error) {
	vals, err := c.bus.ReadParameters([]propar.Param{
		{Node: node, Process: procMeasure, Param: parmMeasure, Type: propar.TypeFloat32},
	})
	if err != nil {
		return 0, err
	}
	return vals[0].Float()
}

// lineOf maps a gas name to its feed line. Names carry the line as
// the first letter of their suffix (He_A, CO_BH).
func lineOf(name string) string {
	i := strings.LastIndexByte(name, '_')
	if i < 0 || i+1 >= len(name) {
		return ""
	}
	return name[i+1 : i+2]
}
