// Rig I/O addressing for the FASST-CAT gas delivery system
// Copyright (C) 2026  FASST-CAT Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package config loads the rig's I/O addressing. The JSON key names
// are inherited from the rig's historic config.json and kept verbatim
// so existing deployments keep working. Each instrument reaches its
// port either directly over serial or through a Moxa terminal server;
// the presence of the host/port pair selects TCP.
package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
)

// Rig is the parsed rig configuration.
type Rig struct {
	// Selector valve bank.
	ValveSerialPort string `json:"COM_VALVE"`
	ValveTCPPort    int    `json:"PORT_VALVES"`

	// Flow controller bus.
	MFCSerialPort string `json:"COM_MFC"`
	MFCBaud       int    `json:"BAUD_MFC"`
	MFCTCPPort    int    `json:"PORT_MFC"`

	// Moxa terminal server fronting the valve and MFC serial lines.
	MoxaHost string `json:"HOST_MOXA"`

	// Eurotherm temperature controller.
	EuroSerialPort string `json:"COM_TMP"`
	EuroUnitID     int    `json:"SUB_ADD_TMP"`
	EuroHost       string `json:"HOST_EURO"`
	EuroTCPPort    int    `json:"PORT_EURO"`

	// GasTable is the path to the gases calibration TOML.
	GasTable string `json:"GAS_TABLE"`
}

// Load reads and validates a rig configuration file.
func Load(path string) (*Rig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	var rig Rig
	if err := json.Unmarshal(raw, &rig); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := rig.validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &rig, nil
}

func (r *Rig) validate() error {
	if !r.MFCOverTCP() && r.MFCSerialPort == "" {
		return fmt.Errorf("no flow controller port (COM_MFC or HOST_MOXA+PORT_MFC)")
	}
	if !r.ValvesOverTCP() && r.ValveSerialPort == "" {
		return fmt.Errorf("no valve port (COM_VALVE or HOST_MOXA+PORT_VALVES)")
	}
	if r.EuroOverTCP() && r.EuroTCPPort <= 0 {
		return fmt.Errorf("PORT_EURO must be positive, got %d", r.EuroTCPPort)
	}
	if r.GasTable == "" {
		r.GasTable = "gases.toml"
	}
	if r.MFCBaud == 0 {
		r.MFCBaud = 38400
	}
	if r.EuroUnitID == 0 {
		r.EuroUnitID = 1
	}
	return nil
}

// ValvesOverTCP reports whether the valve bank sits behind the Moxa.
func (r *Rig) ValvesOverTCP() bool {
	return r.MoxaHost != "" && r.ValveTCPPort > 0
}

// MFCOverTCP reports whether the flow controller bus sits behind the
// Moxa.
func (r *Rig) MFCOverTCP() bool {
	return r.MoxaHost != "" && r.MFCTCPPort > 0
}

// EuroOverTCP reports whether the Eurotherm speaks Modbus TCP.
func (r *Rig) EuroOverTCP() bool {
	return r.EuroHost != ""
}

// ValveAddr returns the valve bank's TCP address.
func (r *Rig) ValveAddr() string {
	return net.JoinHostPort(r.MoxaHost, strconv.Itoa(r.ValveTCPPort))
}

// MFCAddr returns the flow controller bus's TCP address.
func (r *Rig) MFCAddr() string {
	return net.JoinHostPort(r.MoxaHost, strconv.Itoa(r.MFCTCPPort))
}

// EuroAddr returns the Eurotherm's Modbus TCP address.
func (r *Rig) EuroAddr() string {
	return net.JoinHostPort(r.EuroHost, strconv.Itoa(r.EuroTCPPort))
}
