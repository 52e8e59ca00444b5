// Copyright (C) 2026  FASST-CAT Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package gas

import (
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// tableFile is the on-disk layout of gases.toml.
type tableFile struct {
	Gases    map[string]gasEntry `toml:"gases"`
	Families [][]string          `toml:"families"`
}

type gasEntry struct {
	Node       int       `toml:"node"`
	Curve      *int      `toml:"curve"`
	FlowRange  []float64 `toml:"flow_range"`
	CalFactor  float64   `toml:"cal_factor"`
	IntScale   float64   `toml:"int_scale"`
	FeedValve  string    `toml:"feed_valve"`
	FeedTarget string    `toml:"feed_target"`
}

// LoadTable reads a gases TOML file and builds the immutable table.
// When the file defines no families, the stock family groups apply.
func LoadTable(path string) (*Table, error) {
	var f tableFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("gas: load %s: %w", path, err)
	}
	return buildTable(&f)
}

// LoadTableString parses a gases table from TOML text.
func LoadTableString(data string) (*Table, error) {
	var f tableFile
	if _, err := toml.Decode(data, &f); err != nil {
		return nil, fmt.Errorf("gas: parse table: %w", err)
	}
	return buildTable(&f)
}

func buildTable(f *tableFile) (*Table, error) {
	if len(f.Gases) == 0 {
		return nil, fmt.Errorf("gas: table defines no gases")
	}

	defs := make([]Definition, 0, len(f.Gases))
	for name, e := range f.Gases {
		if len(e.FlowRange) != 2 {
			return nil, fmt.Errorf("gas: %s: flow_range needs [min, max]", name)
		}
		if e.Node < 1 || e.Node > 255 {
			return nil, fmt.Errorf("gas: %s: node %d out of bus range", name, e.Node)
		}
		d := Definition{
			Name:      name,
			Node:      byte(e.Node),
			Curve:     e.Curve,
			FlowMin:   e.FlowRange[0],
			FlowMax:   e.FlowRange[1],
			CalFactor: e.CalFactor,
			IntScale:  e.IntScale,
			FeedValve: e.FeedValve,
		}
		switch strings.ToUpper(e.FeedTarget) {
		case "", "OFF":
			d.FeedOn = false
		case "ON":
			d.FeedOn = true
		default:
			return nil, fmt.Errorf("gas: %s: feed_target %q is not ON or OFF", name, e.FeedTarget)
		}
		if d.FeedValve == "" && e.FeedTarget != "" {
			return nil, fmt.Errorf("gas: %s: feed_target without feed_valve", name)
		}
		defs = append(defs, d)
	}

	// Map iteration order is random; keep the table deterministic.
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })

	families := f.Families
	if families == nil {
		families = DefaultFamilies()
	}
	return NewTable(defs, families)
}
