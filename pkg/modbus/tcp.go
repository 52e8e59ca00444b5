// Copyright (C) 2026  FASST-CAT Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package modbus

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

// TCPClient speaks Modbus TCP (MBAP framing) to one unit.
type TCPClient struct {
	mu     sync.Mutex
	conn   io.ReadWriter
	unitID byte
	txn    uint16
}

// NewTCPClient wraps an open stream for the given unit id.
func NewTCPClient(conn io.ReadWriter, unitID byte) *TCPClient {
	return &TCPClient{conn: conn, unitID: unitID}
}

// DialTCP connects to a Modbus TCP endpoint (host:port).
func DialTCP(address string, unitID byte, timeout time.Duration) (*TCPClient, io.Closer, error) {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	conn, err := net.DialTimeout("tcp", address, timeout)
	if err != nil {
		return nil, nil, fmt.Errorf("modbus: connect %s: %w", address, err)
	}
	return NewTCPClient(conn, unitID), conn, nil
}

// roundTrip frames a PDU with an MBAP header and returns the response
// PDU. Transaction ids are matched so a stale answer is rejected.
func (c *TCPClient) roundTrip(pdu []byte) ([]byte, error) {
	c.txn++
	header := make([]byte, 7)
	binary.BigEndian.PutUint16(header[0:], c.txn)
	binary.BigEndian.PutUint16(header[2:], 0) // protocol id
	binary.BigEndian.PutUint16(header[4:], uint16(len(pdu)+1))
	header[6] = c.unitID

	if _, err := c.conn.Write(append(header, pdu...)); err != nil {
		return nil, fmt.Errorf("modbus: write: %w", err)
	}

	respHeader := make([]byte, 7)
	if _, err := io.ReadFull(c.conn, respHeader); err != nil {
		return nil, fmt.Errorf("modbus: read header: %w", err)
	}
	if binary.BigEndian.Uint16(respHeader[0:]) != c.txn {
		return nil, fmt.Errorf("modbus: transaction id mismatch")
	}
	length := binary.BigEndian.Uint16(respHeader[4:])
	if length < 2 {
		return nil, ErrShortResponse
	}
	body := make([]byte, length-1)
	if _, err := io.ReadFull(c.conn, body); err != nil {
		return nil, fmt.Errorf("modbus: read body: %w", err)
	}
	return body, nil
}

// ReadHoldingRegisters reads count registers starting at addr.
func (c *TCPClient) ReadHoldingRegisters(addr, count uint16) ([]uint16, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pdu, err := c.roundTrip(buildReadPDU(addr, count))
	if err != nil {
		return nil, err
	}
	return parseReadResponse(pdu, count)
}

// WriteSingleRegister writes one register.
func (c *TCPClient) WriteSingleRegister(addr, value uint16) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	pdu, err := c.roundTrip(buildWritePDU(addr, value))
	if err != nil {
		return err
	}
	return checkWriteResponse(pdu, addr, value)
}
