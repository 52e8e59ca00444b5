// Selector-valve routing for the FASST-CAT gas rig
// Copyright (C) 2026  FASST-CAT Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package valve drives the multi-port selector valves that realize
// the rig's flow topologies. Valves expose two addressable states;
// what OFF and ON mean for the gas path is defined by the routing
// tables, not by the valve itself.
package valve

import (
	"errors"
	"fmt"
	"strings"
)

// Position is a selector valve's logical state.
type Position int

const (
	// Off is the clockwise port mapping (device code A).
	Off Position = iota

	// On is the counter-clockwise port mapping (device code B).
	On

	// Unknown means the readback was missing or unparseable; assume
	// nothing about the gas path.
	Unknown
)

func (p Position) String() string {
	switch p {
	case Off:
		return "OFF"
	case On:
		return "ON"
	default:
		return "Unknown"
	}
}

// ParsePosition maps a config string to a Position.
func ParsePosition(s string) (Position, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "OFF":
		return Off, nil
	case "ON":
		return On, nil
	default:
		return Unknown, fmt.Errorf("valve: position %q is not ON or OFF", s)
	}
}

// command returns the actuation command for a target position.
func (p Position) command() (string, error) {
	switch p {
	case Off:
		return "CW", nil
	case On:
		return "CC", nil
	default:
		return "", errors.New("valve: cannot actuate to Unknown")
	}
}

// positionCode is the device's readback letter for a position.
func (p Position) positionCode() byte {
	if p == On {
		return 'B'
	}
	return 'A'
}

// Target names one valve and the position it should hold.
type Target struct {
	Valve    string
	Position Position
}

// Mode is a named set of valve targets realizing one flow topology.
// Modes are pure data; targets are driven in listed order with no
// cross-valve atomicity.
type Mode struct {
	Name    string
	Targets []Target
}

// The standard operating modes of the reaction-mode selection module.
var (
	// ContinuousA routes line A to the reactor and line B through the
	// loops to vent.
	ContinuousA = Mode{Name: "continuous-A", Targets: []Target{
		{Valve: "A", Position: Off},
		{Valve: "B", Position: Off},
		{Valve: "C", Position: Off},
	}}

	// ContinuousB routes line B to the reactor and line A to waste.
	ContinuousB = Mode{Name: "continuous-B", Targets: []Target{
		{Valve: "A", Position: Off},
		{Valve: "B", Position: On},
		{Valve: "C", Position: Off},
	}}

	// PulsedLoopA feeds the reactor from the gas loops with line A as
	// the pulse carrier.
	PulsedLoopA = Mode{Name: "pulsed-loop-A", Targets: []Target{
		{Valve: "A", Position: On},
		{Valve: "B", Position: Off},
		{Valve: "C", Position: On},
	}}

	// PulsedLoopB feeds the reactor from the gas loops with line B as
	// the pulse carrier.
	PulsedLoopB = Mode{Name: "pulsed-loop-B", Targets: []Target{
		{Valve: "A", Position: On},
		{Valve: "B", Position: On},
		{Valve: "C", Position: On},
	}}
)

// Modes indexes the standard modes by name.
func Modes() map[string]Mode {
	return map[string]Mode{
		ContinuousA.Name: ContinuousA,
		ContinuousB.Name: ContinuousB,
		PulsedLoopA.Name: PulsedLoopA,
		PulsedLoopB.Name: PulsedLoopB,
	}
}

// validID checks a valve identifier (a single letter A..Z).
func validID(id string) error {
	if len(id) != 1 || id[0] < 'A' || id[0] > 'Z' {
		return fmt.Errorf("valve: invalid valve id %q", id)
	}
	return nil
}
