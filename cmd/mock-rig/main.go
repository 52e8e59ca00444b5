// mock-rig simulates the FASST-CAT rig's instruments for bench
// testing without hardware:
// - the flow controller bus (ASCII frames, chained parameters)
// - the selector valve bank (single-letter commands, position query)
// - the Eurotherm temperature controller (Modbus TCP)
//
// Point a Moxa-style config.json at the listen addresses and the full
// fasstcat CLI runs against it.
//
// Usage:
//
//	mock-rig [-mfc :4002] [-valves :4001] [-euro :5020] [-pressure 14.7]
//
// Copyright (C) 2026  FASST-CAT Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.
package main

import (
	"bufio"
	"encoding/binary"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"net"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
)

// Flow controller protocol constants.
const (
	cmdStatus    = 0x00
	cmdWriteAck  = 0x02
	cmdReadParam = 0x04
	chainFlag    = 0x80

	procSetup      = 1
	parmSetpoint   = 1
	parmFluidIndex = 16
	procMeasure    = 33
	parmMeasure    = 0
	parmFSetpoint  = 3

	setpointFull = 32000
)

// Pressure sensor nodes on the flow controller bus.
const (
	pressureNodeA = 3
	pressureNodeB = 14
)

// nodeState is one simulated flow controller.
type nodeState struct {
	setpoint int16 // counts, 0..32000
	fluid    uint8
}

// rigState is the shared simulated rig.
type rigState struct {
	mu        sync.Mutex
	nodes     map[byte]*nodeState
	valves    map[byte]byte // id -> 'A' (off) or 'B' (on)
	regs      map[uint16]uint16
	pressureA float64
	pressureB float64
}

func newRigState(pressure float64) *rigState {
	return &rigState{
		nodes:  make(map[byte]*nodeState),
		valves: make(map[byte]byte),
		regs: map[uint16]uint16{
			1:  200, // thermocouple, 20.0 degC
			2:  200, // working setpoint
			5:  200, // programmer target
			35: 100, // ramp rate, 10.0 degC/min
			85: 0,   // output power
		},
		pressureA: pressure,
		pressureB: pressure,
	}
}

func (s *rigState) node(id byte) *nodeState {
	n, ok := s.nodes[id]
	if !ok {
		n = &nodeState{}
		s.nodes[id] = n
	}
	return n
}

// measure returns a node's simulated process value in device units.
// Flow tracks the setpoint instantly; the pressure nodes report the
// configured line pressures.
func (s *rigState) measure(id byte) float64 {
	switch id {
	case pressureNodeA:
		return s.pressureA
	case pressureNodeB:
		return s.pressureB
	}
	return float64(s.node(id).setpoint) / setpointFull * 100
}

func main() {
	mfcAddr := flag.String("mfc", ":4002", "flow controller bus listen address")
	valveAddr := flag.String("valves", ":4001", "valve bank listen address")
	euroAddr := flag.String("euro", ":5020", "temperature controller listen address")
	pressure := flag.Float64("pressure", 14.7, "initial line pressure, psia")
	trace := flag.Bool("trace", false, "log every frame")
	flag.Parse()

	state := newRigState(*pressure)

	listeners := []struct {
		name   string
		addr   string
		handle func(net.Conn, *rigState, bool)
	}{
		{"mfc", *mfcAddr, serveFlowBus},
		{"valves", *valveAddr, serveValveBank},
		{"euro", *euroAddr, serveModbus},
	}
	for _, l := range listeners {
		ln, err := net.Listen("tcp", l.addr)
		if err != nil {
			log.Fatalf("listen %s (%s): %v", l.addr, l.name, err)
		}
		log.Printf("%s listening on %s", l.name, ln.Addr())
		go acceptLoop(ln, l.handle, state, *trace)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Printf("shutting down")
}

func acceptLoop(ln net.Listener, handle func(net.Conn, *rigState, bool), state *rigState, trace bool) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		go handle(conn, state, trace)
	}
}

// ---- flow controller bus ----

func serveFlowBus(conn net.Conn, state *rigState, trace bool) {
	defer conn.Close()
	rd := bufio.NewReader(conn)
	for {
		line, err := rd.ReadString('\n')
		if err != nil {
			return
		}
		if trace {
			log.Printf("mfc <- %q", strings.TrimSpace(line))
		}
		resp := handleFlowFrame(state, strings.TrimRight(line, "\r\n"))
		if resp == nil {
			continue
		}
		if trace {
			log.Printf("mfc -> %q", string(resp))
		}
		if _, err := conn.Write(resp); err != nil {
			return
		}
	}
}

// handleFlowFrame parses one ASCII frame and produces the reply, or
// nil for frames the simulator cannot parse.
func handleFlowFrame(state *rigState, line string) []byte {
	if len(line) < 3 || line[0] != ':' {
		return nil
	}
	raw, err := hex.DecodeString(line[1:])
	if err != nil || len(raw) < 3 || int(raw[0]) != len(raw)-1 {
		return nil
	}
	payload := raw[1:]
	node, command := payload[0], payload[1]

	state.mu.Lock()
	defer state.mu.Unlock()

	switch command {
	case cmdWriteAck:
		status := applyWrites(state, node, payload[2:])
		return encodeFrame([]byte{node, cmdStatus, status})
	case cmdReadParam:
		return encodeFrame(answerReads(state, node, payload[2:]))
	default:
		return encodeFrame([]byte{node, cmdStatus, 0x01})
	}
}

// typeSize returns the byte length encoded in a parameter byte's type
// bits (strings are refused).
func typeSize(parmByte byte) (int, bool) {
	switch parmByte & 0x60 {
	case 0x00:
		return 1, true
	case 0x20:
		return 2, true
	case 0x40:
		return 4, true
	default:
		return 0, false
	}
}

// applyWrites walks a chained write body and updates the node state.
// It returns a flow-bus status code (0 ok, 4 parameter error).
func applyWrites(state *rigState, node byte, body []byte) byte {
	n := state.node(node)
	for len(body) >= 2 {
		proc := body[0] &^ chainFlag
		parmByte := body[1]
		parm := parmByte & 0x1F
		size, ok := typeSize(parmByte)
		if !ok || len(body) < 2+size {
			return 0x04
		}
		data := body[2 : 2+size]
		body = body[2+size:]

		switch {
		case proc == procSetup && parm == parmSetpoint && size == 2:
			n.setpoint = int16(binary.BigEndian.Uint16(data))
		case proc == procSetup && parm == parmFluidIndex && size == 1:
			n.fluid = data[0]
		default:
			// Unknown parameters are accepted and dropped, like the
			// real devices.
		}
	}
	return 0
}

// answerReads walks chained read headers and assembles the data
// answer payload.
func answerReads(state *rigState, node byte, body []byte) []byte {
	resp := []byte{node, cmdWriteAck}
	n := state.node(node)
	for len(body) >= 2 {
		proc := body[0] &^ chainFlag
		parmByte := body[1]
		parm := parmByte & 0x1F
		resp = append(resp, body[0], parmByte)
		body = body[2:]

		switch {
		case proc == procMeasure && parm == parmMeasure:
			resp = binary.BigEndian.AppendUint32(resp, math.Float32bits(float32(state.measure(node))))
		case proc == procMeasure && parm == parmFSetpoint:
			fsp := float64(n.setpoint) / setpointFull * 100
			resp = binary.BigEndian.AppendUint32(resp, math.Float32bits(float32(fsp)))
		case proc == procSetup && parm == parmFluidIndex:
			resp = append(resp, n.fluid)
		case proc == procSetup && parm == parmSetpoint:
			resp = binary.BigEndian.AppendUint16(resp, uint16(n.setpoint))
		default:
			size, ok := typeSize(parmByte)
			if !ok {
				size = 4
			}
			resp = append(resp, make([]byte, size)...)
		}
	}
	return resp
}

func encodeFrame(payload []byte) []byte {
	raw := append([]byte{byte(len(payload))}, payload...)
	return []byte(":" + strings.ToUpper(hex.EncodeToString(raw)) + "\r\n")
}

// ---- valve bank ----

func serveValveBank(conn net.Conn, state *rigState, trace bool) {
	defer conn.Close()
	rd := bufio.NewReader(conn)
	for {
		cmd, err := rd.ReadString('\r')
		if err != nil {
			return
		}
		cmd = strings.TrimRight(cmd, "\r")
		if trace {
			log.Printf("valves <- %q", cmd)
		}
		if len(cmd) < 3 || cmd[0] != '/' {
			continue
		}
		id := cmd[1]

		state.mu.Lock()
		pos, ok := state.valves[id]
		if !ok {
			pos = 'A'
		}
		var reply string
		switch cmd[2:] {
		case "CW":
			state.valves[id] = 'A'
		case "CC":
			state.valves[id] = 'B'
		case "TO":
			if pos == 'A' {
				state.valves[id] = 'B'
			} else {
				state.valves[id] = 'A'
			}
		case "CP":
			// Only the position query answers; actuations are silent
			// so the command stream stays in sync.
			reply = fmt.Sprintf("%c*\r", pos)
		}
		state.mu.Unlock()

		if reply != "" {
			if trace {
				log.Printf("valves -> %q", strings.TrimSpace(reply))
			}
			if _, err := conn.Write([]byte(reply)); err != nil {
				return
			}
		}
	}
}

// ---- temperature controller (Modbus TCP) ----

func serveModbus(conn net.Conn, state *rigState, trace bool) {
	defer conn.Close()
	for {
		header := make([]byte, 7)
		if _, err := io.ReadFull(conn, header); err != nil {
			return
		}
		length := binary.BigEndian.Uint16(header[4:6])
		if length < 1 || length > 260 {
			return
		}
		pdu := make([]byte, length-1)
		if _, err := io.ReadFull(conn, pdu); err != nil {
			return
		}
		if trace {
			log.Printf("euro <- unit %d pdu % x", header[6], pdu)
		}

		resp := handleModbusPDU(state, pdu)
		out := make([]byte, 0, 7+len(resp))
		out = append(out, header[0], header[1], 0, 0)
		out = binary.BigEndian.AppendUint16(out, uint16(len(resp)+1))
		out = append(out, header[6])
		out = append(out, resp...)
		if _, err := conn.Write(out); err != nil {
			return
		}
	}
}

func handleModbusPDU(state *rigState, pdu []byte) []byte {
	if len(pdu) < 5 {
		return []byte{0x80, 0x03}
	}
	fn := pdu[0]
	addr := binary.BigEndian.Uint16(pdu[1:3])

	state.mu.Lock()
	defer state.mu.Unlock()

	switch fn {
	case 0x03:
		count := binary.BigEndian.Uint16(pdu[3:5])
		if count < 1 || count > 125 {
			return []byte{fn | 0x80, 0x03}
		}
		resp := []byte{fn, byte(count * 2)}
		for i := uint16(0); i < count; i++ {
			resp = binary.BigEndian.AppendUint16(resp, state.regs[addr+i])
		}
		return resp
	case 0x06:
		value := binary.BigEndian.Uint16(pdu[3:5])
		state.regs[addr] = value
		if addr == 2 {
			// The simulated reactor tracks its setpoint instantly.
			state.regs[1] = value
			state.regs[5] = value
		}
		return pdu[:5]
	default:
		return []byte{fn | 0x80, 0x01}
	}
}
