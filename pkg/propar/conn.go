// Copyright (C) 2026  FASST-CAT Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package propar

import (
	"fmt"
	"io"
	"net"
	"time"

	"go.bug.st/serial"
)

// DefaultBaudRate is the bus speed the flow controllers ship with.
const DefaultBaudRate = 38400

// DialSerial opens the multi-drop bus on a local serial port.
func DialSerial(device string, baud int) (io.ReadWriteCloser, error) {
	if baud == 0 {
		baud = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("propar: open %s: %w", device, err)
	}
	if err := port.SetReadTimeout(1 * time.Second); err != nil {
		port.Close()
		return nil, fmt.Errorf("propar: set read timeout: %w", err)
	}
	return port, nil
}

// DialTCP connects to the bus through a serial-over-Ethernet terminal
// server (the rig's Moxa box).
func DialTCP(address string, timeout time.Duration) (io.ReadWriteCloser, error) {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	conn, err := net.DialTimeout("tcp", address, timeout)
	if err != nil {
		return nil, fmt.Errorf("propar: connect %s: %w", address, err)
	}
	return conn, nil
}
