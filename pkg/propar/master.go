// Copyright (C) 2026  FASST-CAT Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package propar

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Master is a bus master for the flow-controller protocol. All reads
// and writes are synchronous request/response pairs; the mutex keeps
// concurrent callers from interleaving frames on the shared line.
type Master struct {
	mu   sync.Mutex
	conn io.ReadWriter
	rd   *bufio.Reader
}

// NewMaster wraps an open connection (serial port or TCP stream).
func NewMaster(conn io.ReadWriter) *Master {
	return &Master{
		conn: conn,
		rd:   bufio.NewReader(conn),
	}
}

// encodeFrame wraps a payload (node, command, body...) in the ASCII
// framing: colon, hex-encoded length and payload, CRLF.
func encodeFrame(payload []byte) []byte {
	frame := make([]byte, 0, 4+2*(len(payload)+1))
	frame = append(frame, ':')
	raw := append([]byte{byte(len(payload))}, payload...)
	enc := make([]byte, hex.EncodedLen(len(raw)))
	hex.Encode(enc, raw)
	frame = append(frame, []byte(strings.ToUpper(string(enc)))...)
	return append(frame, '\r', '\n')
}

// decodeFrame strips the ASCII framing and returns the payload.
func decodeFrame(line string) ([]byte, error) {
	line = strings.TrimRight(line, "\r\n")
	if len(line) < 3 || line[0] != ':' {
		return nil, ErrBadFrame
	}
	raw, err := hex.DecodeString(line[1:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFrame, err)
	}
	if len(raw) < 1 || int(raw[0]) != len(raw)-1 {
		return nil, ErrBadFrame
	}
	return raw[1:], nil
}

// roundTrip writes one frame and reads one response line.
func (m *Master) roundTrip(payload []byte) ([]byte, error) {
	if _, err := m.conn.Write(encodeFrame(payload)); err != nil {
		return nil, fmt.Errorf("propar: write: %w", err)
	}
	line, err := m.rd.ReadString('\n')
	if err != nil {
		if line == "" {
			return nil, ErrNoResponse
		}
		return nil, fmt.Errorf("propar: read: %w", err)
	}
	return decodeFrame(line)
}

// buildParamHeader packs the process and parameter bytes for one
// parameter, setting the chain flag when more parameters follow.
func buildParamHeader(p Param, chained bool) ([]byte, error) {
	tb, err := p.Type.typeBits()
	if err != nil {
		return nil, err
	}
	proc := p.Process & 0x7F
	if chained {
		proc |= chainFlag
	}
	return []byte{proc, tb | (p.Param & 0x1F)}, nil
}

// WriteParameters writes the chained parameters in one frame and
// checks the device's status answer. All parameters must address the
// same node; the devices do not forward chained writes across nodes.
func (m *Master) WriteParameters(params []Param) error {
	if len(params) == 0 {
		return nil
	}
	node := params[0].Node
	payload := []byte{node, cmdWriteAck}
	for i, p := range params {
		if p.Node != node {
			return fmt.Errorf("propar: chained write spans nodes %d and %d", node, p.Node)
		}
		hdr, err := buildParamHeader(p, i < len(params)-1)
		if err != nil {
			return err
		}
		payload = append(payload, hdr...)
		payload, err = encodeData(payload, p.Type, p.Data)
		if err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	resp, err := m.roundTrip(payload)
	if err != nil {
		return err
	}
	if len(resp) < 3 {
		return ErrShortFrame
	}
	if resp[1] != cmdStatus {
		return fmt.Errorf("%w: expected status answer, got command %#x", ErrBadFrame, resp[1])
	}
	if resp[2] != 0 {
		return &StatusError{Node: node, Status: resp[2]}
	}
	return nil
}

// Write writes a single parameter.
func (m *Master) Write(node, process, param byte, typ Type, data interface{}) error {
	return m.WriteParameters([]Param{{
		Node: node, Process: process, Param: param, Type: typ, Data: data,
	}})
}

// ReadParameters reads the chained parameters in one frame per node.
// Values come back in request order.
func (m *Master) ReadParameters(params []Param) ([]Value, error) {
	if len(params) == 0 {
		return nil, nil
	}
	node := params[0].Node
	payload := []byte{node, cmdReadParam}
	for i, p := range params {
		if p.Node != node {
			return nil, fmt.Errorf("propar: chained read spans nodes %d and %d", node, p.Node)
		}
		hdr, err := buildParamHeader(p, i < len(params)-1)
		if err != nil {
			return nil, err
		}
		payload = append(payload, hdr...)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	resp, err := m.roundTrip(payload)
	if err != nil {
		return nil, err
	}
	if len(resp) < 2 {
		return nil, ErrShortFrame
	}
	if resp[1] == cmdStatus {
		if len(resp) >= 3 && resp[2] != 0 {
			return nil, &StatusError{Node: resp[0], Status: resp[2]}
		}
		return nil, ErrBadFrame
	}
	if resp[1] != cmdWriteAck {
		return nil, fmt.Errorf("%w: expected data answer, got command %#x", ErrBadFrame, resp[1])
	}

	values := make([]Value, 0, len(params))
	body := resp[2:]
	for _, p := range params {
		if len(body) < 2 {
			return nil, ErrShortFrame
		}
		proc := body[0] &^ chainFlag
		parm := body[1] & 0x1F
		if proc != p.Process&0x7F || parm != p.Param&0x1F {
			return nil, fmt.Errorf("%w: answer for process %d parameter %d, requested %d/%d",
				ErrTypeMismatch, proc, parm, p.Process, p.Param)
		}
		var data interface{}
		data, body, err = decodeData(body[2:], p.Type)
		if err != nil {
			return nil, err
		}
		values = append(values, Value{
			Node: p.Node, Process: p.Process, Param: p.Param, Type: p.Type, Data: data,
		})
	}
	return values, nil
}

// Read reads a single parameter.
func (m *Master) Read(node, process, param byte, typ Type) (Value, error) {
	values, err := m.ReadParameters([]Param{{
		Node: node, Process: process, Param: param, Type: typ,
	}})
	if err != nil {
		return Value{}, err
	}
	return values[0], nil
}
