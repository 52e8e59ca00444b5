// Gas calibration table for the FASST-CAT delivery lines
// Copyright (C) 2026  FASST-CAT Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package gas holds the static per-gas calibration metadata: which
// controller node serves a gas, which calibration curve it runs on,
// the valid flow range and the scaling used to encode setpoints. The
// table is loaded once at startup and read-only thereafter.
package gas

import (
	"errors"
	"fmt"
	"sort"
)

// Definition describes one gas on one delivery line. Several
// definitions may share a controller node; the calibration curve
// selects between them before a setpoint is written.
type Definition struct {
	// Name is the table key, e.g. "Ar_A" for argon on line A.
	Name string

	// Node is the controller's address on the multi-drop bus.
	Node byte

	// Curve is the calibration-curve index to select before writing a
	// setpoint. Nil means the controller has a single fixed curve.
	Curve *int

	// FlowMin and FlowMax bound the converted flow in sccm.
	FlowMin float64
	FlowMax float64

	// CalFactor divides a requested flow before range checking.
	CalFactor float64

	// IntScale converts a flow in sccm to the controller's integer
	// setpoint encoding (full scale = 32000 counts).
	IntScale float64

	// FeedValve and FeedOn bind the gas to a selector-valve position
	// that routes its physical line. Empty FeedValve means the gas
	// needs no path selection.
	FeedValve string
	FeedOn    bool
}

// Table is the immutable calibration table plus the
// mutually-exclusive family groups.
type Table struct {
	gases    map[string]*Definition
	order    []string
	families [][]string
}

// ErrUnknownGas is returned for names not in the table.
var ErrUnknownGas = errors.New("gas: not in table")

// DefaultFamilies lists the family groups of the stock rig: gases in
// one group share a controller and at most one may flow at a time.
// The first member of each group is the one zeroed when nothing in
// the group is requested.
func DefaultFamilies() [][]string {
	return [][]string{
		{"H2_A", "D2_A"},
		{"H2_B", "D2_B"},
		{"O2_A"},
		{"O2_B"},
		{"CH4_A", "C2H6_A", "C3H8_A"},
		{"CH4_B", "C2H6_B", "C3H8_B"},
		{"CO_AH", "CO2_AH", "CO2_AL", "CO_AL"},
		{"CO_BH", "CO2_BH", "CO2_BL", "CO_BL"},
		{"He_A", "Ar_A", "N2_A"},
		{"He_B", "Ar_B", "N2_B"},
	}
}

// NewTable validates the definitions and builds a table. Families may
// be nil, in which case every gas forms its own single-member family.
func NewTable(defs []Definition, families [][]string) (*Table, error) {
	t := &Table{gases: make(map[string]*Definition, len(defs))}
	for i := range defs {
		d := defs[i]
		if err := d.validate(); err != nil {
			return nil, err
		}
		if _, dup := t.gases[d.Name]; dup {
			return nil, fmt.Errorf("gas: duplicate definition %q", d.Name)
		}
		t.gases[d.Name] = &d
		t.order = append(t.order, d.Name)
	}

	if families == nil {
		for _, name := range t.order {
			t.families = append(t.families, []string{name})
		}
		return t, nil
	}

	seen := make(map[string]bool)
	for _, fam := range families {
		if len(fam) == 0 {
			return nil, errors.New("gas: empty family group")
		}
		var present []string
		for _, name := range fam {
			if _, ok := t.gases[name]; !ok {
				// Family templates may name gases this rig does not
				// carry; they are simply skipped.
				continue
			}
			if seen[name] {
				return nil, fmt.Errorf("gas: %q appears in two families", name)
			}
			seen[name] = true
			present = append(present, name)
		}
		if len(present) > 0 {
			t.families = append(t.families, present)
		}
	}
	for _, name := range t.order {
		if !seen[name] {
			t.families = append(t.families, []string{name})
		}
	}
	return t, nil
}

func (d *Definition) validate() error {
	if d.Name == "" {
		return errors.New("gas: definition with empty name")
	}
	if d.CalFactor <= 0 {
		return fmt.Errorf("gas: %s: calibration factor must be positive", d.Name)
	}
	if d.IntScale <= 0 {
		return fmt.Errorf("gas: %s: integer-encoding scale must be positive", d.Name)
	}
	if d.FlowMin < 0 || d.FlowMax <= d.FlowMin {
		return fmt.Errorf("gas: %s: invalid flow range [%g, %g]", d.Name, d.FlowMin, d.FlowMax)
	}
	return nil
}

// Lookup returns the definition for a gas name.
func (t *Table) Lookup(name string) (*Definition, error) {
	d, ok := t.gases[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGas, name)
	}
	return d, nil
}

// Has reports whether the table carries a gas.
func (t *Table) Has(name string) bool {
	_, ok := t.gases[name]
	return ok
}

// Names returns all gas names in definition order.
func (t *Table) Names() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Families returns the mutually-exclusive groups. Each inner slice is
// ordered by selection priority; index 0 is the zeroing target.
func (t *Table) Families() [][]string {
	out := make([][]string, len(t.families))
	for i, fam := range t.families {
		out[i] = append([]string(nil), fam...)
	}
	return out
}

// FamilyOf returns the family containing a gas, or nil.
func (t *Table) FamilyOf(name string) []string {
	for _, fam := range t.families {
		for _, member := range fam {
			if member == name {
				return append([]string(nil), fam...)
			}
		}
	}
	return nil
}

// Nodes returns the distinct controller nodes in the table, sorted.
func (t *Table) Nodes() []byte {
	seen := make(map[byte]bool)
	var nodes []byte
	for _, name := range t.order {
		n := t.gases[name].Node
		if !seen[n] {
			seen[n] = true
			nodes = append(nodes, n)
		}
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })
	return nodes
}
