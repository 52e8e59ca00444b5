// Copyright (C) 2026  FASST-CAT Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package modbus

import (
	"fmt"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"
)

// RTUClient speaks Modbus RTU to one unit on a serial line.
type RTUClient struct {
	mu     sync.Mutex
	conn   io.ReadWriter
	unitID byte
}

// NewRTUClient wraps an open connection for the given unit id.
func NewRTUClient(conn io.ReadWriter, unitID byte) *RTUClient {
	return &RTUClient{conn: conn, unitID: unitID}
}

// DialRTU opens the serial port the controller is wired to.
// The controller ships at 9600 8N1.
func DialRTU(device string, baud int, unitID byte) (*RTUClient, io.Closer, error) {
	if baud == 0 {
		baud = 9600
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(device, mode)
	if err != nil {
		return nil, nil, fmt.Errorf("modbus: open %s: %w", device, err)
	}
	if err := port.SetReadTimeout(1 * time.Second); err != nil {
		port.Close()
		return nil, nil, fmt.Errorf("modbus: set read timeout: %w", err)
	}
	return NewRTUClient(port, unitID), port, nil
}

// roundTrip frames a PDU with unit id and CRC, sends it, and returns
// the response PDU with the framing stripped and verified.
func (c *RTUClient) roundTrip(pdu []byte) ([]byte, error) {
	adu := make([]byte, 0, len(pdu)+3)
	adu = append(adu, c.unitID)
	adu = append(adu, pdu...)
	crc := crc16(adu)
	adu = append(adu, byte(crc&0xFF), byte(crc>>8))

	if _, err := c.conn.Write(adu); err != nil {
		return nil, fmt.Errorf("modbus: write: %w", err)
	}

	buf := make([]byte, 256)
	n, err := c.conn.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("modbus: read: %w", err)
	}
	if n == 0 {
		return nil, ErrNoResponse
	}
	resp := buf[:n]
	if len(resp) < 4 {
		return nil, ErrShortResponse
	}
	body, tail := resp[:len(resp)-2], resp[len(resp)-2:]
	want := crc16(body)
	if tail[0] != byte(want&0xFF) || tail[1] != byte(want>>8) {
		return nil, ErrCRC
	}
	if body[0] != c.unitID {
		return nil, fmt.Errorf("modbus: answer from unit %d, expected %d", body[0], c.unitID)
	}
	return body[1:], nil
}

// ReadHoldingRegisters reads count registers starting at addr.
func (c *RTUClient) ReadHoldingRegisters(addr, count uint16) ([]uint16, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pdu, err := c.roundTrip(buildReadPDU(addr, count))
	if err != nil {
		return nil, err
	}
	return parseReadResponse(pdu, count)
}

// WriteSingleRegister writes one register.
func (c *RTUClient) WriteSingleRegister(addr, value uint16) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	pdu, err := c.roundTrip(buildWritePDU(addr, value))
	if err != nil {
		return err
	}
	return checkWriteResponse(pdu, addr, value)
}
