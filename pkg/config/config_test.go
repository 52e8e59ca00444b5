// Copyright (C) 2026  FASST-CAT Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMoxaConfig(t *testing.T) {
	path := writeConfig(t, `{
		"HOST_MOXA": "10.68.42.2",
		"PORT_VALVES": 4001,
		"PORT_MFC": 4002,
		"HOST_EURO": "10.68.42.3",
		"PORT_EURO": 502
	}`)

	rig, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !rig.ValvesOverTCP() || !rig.MFCOverTCP() || !rig.EuroOverTCP() {
		t.Fatalf("transport selection = %+v, want all TCP", rig)
	}
	if got := rig.ValveAddr(); got != "10.68.42.2:4001" {
		t.Errorf("ValveAddr = %q", got)
	}
	if got := rig.MFCAddr(); got != "10.68.42.2:4002" {
		t.Errorf("MFCAddr = %q", got)
	}
	if got := rig.EuroAddr(); got != "10.68.42.3:502" {
		t.Errorf("EuroAddr = %q", got)
	}
}

func TestLoadSerialConfigDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"COM_VALVE": "/dev/ttyS0",
		"COM_MFC": "/dev/ttyS1",
		"COM_TMP": "/dev/ttyS2"
	}`)

	rig, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if rig.ValvesOverTCP() || rig.MFCOverTCP() || rig.EuroOverTCP() {
		t.Fatalf("transport selection = %+v, want all serial", rig)
	}
	if rig.MFCBaud != 38400 {
		t.Errorf("MFCBaud = %d, want 38400 default", rig.MFCBaud)
	}
	if rig.EuroUnitID != 1 {
		t.Errorf("EuroUnitID = %d, want 1 default", rig.EuroUnitID)
	}
	if rig.GasTable != "gases.toml" {
		t.Errorf("GasTable = %q, want gases.toml default", rig.GasTable)
	}
}

func TestLoadRejectsMissingPorts(t *testing.T) {
	cases := map[string]string{
		"no mfc":    `{"COM_VALVE": "/dev/ttyS0"}`,
		"no valves": `{"COM_MFC": "/dev/ttyS1"}`,
		"bad euro":  `{"COM_MFC": "/dev/ttyS1", "COM_VALVE": "/dev/ttyS0", "HOST_EURO": "10.0.0.1", "PORT_EURO": 0}`,
	}
	for name, body := range cases {
		if _, err := Load(writeConfig(t, body)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadMalformedJSON(t *testing.T) {
	if _, err := Load(writeConfig(t, `{"COM_MFC": `)); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}
