// Copyright (C) 2026  FASST-CAT Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package valve

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"time"

	"go.bug.st/serial"
)

// Conn is the byte transport to the valve bank: CR-terminated ASCII
// commands, CR-terminated replies.
type Conn interface {
	WriteCommand(cmd string) error
	ReadReply() (string, error)
}

// lineConn frames commands over any stream transport.
type lineConn struct {
	rw io.ReadWriter
	rd *bufio.Reader
}

// NewConn wraps an open stream (serial port or TCP socket).
func NewConn(rw io.ReadWriter) Conn {
	return &lineConn{rw: rw, rd: bufio.NewReader(rw)}
}

func (c *lineConn) WriteCommand(cmd string) error {
	if _, err := c.rw.Write([]byte(cmd + "\r")); err != nil {
		return fmt.Errorf("valve: write: %w", err)
	}
	return nil
}

func (c *lineConn) ReadReply() (string, error) {
	line, err := c.rd.ReadString('\r')
	if err != nil && line == "" {
		return "", fmt.Errorf("valve: read: %w", err)
	}
	for len(line) > 0 && (line[len(line)-1] == '\r' || line[len(line)-1] == '\n') {
		line = line[:len(line)-1]
	}
	return line, nil
}

// DialSerial opens the valve bank's serial port (stock 9600 8N1).
func DialSerial(device string, baud int) (Conn, io.Closer, error) {
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
		return nil, nil, fmt.Errorf("valve: open %s: %w", device, err)
	}
	if err := port.SetReadTimeout(100 * time.Millisecond); err != nil {
		port.Close()
		return nil, nil, fmt.Errorf("valve: set read timeout: %w", err)
	}
	return NewConn(port), port, nil
}

// DialTCP connects to the valve bank through a terminal server.
func DialTCP(address string, timeout time.Duration) (Conn, io.Closer, error) {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	conn, err := net.DialTimeout("tcp", address, timeout)
	if err != nil {
		return nil, nil, fmt.Errorf("valve: connect %s: %w", address, err)
	}
	return NewConn(conn), conn, nil
}
