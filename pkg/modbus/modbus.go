// Modbus register access for the temperature controller
// Copyright (C) 2026  FASST-CAT Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package modbus provides the register read/write surface the
// temperature controller is driven through. Two transports are
// supported: RTU framing over a local serial port and the TCP MBAP
// framing used when the controller hangs off a terminal server.
package modbus

import (
	"errors"
	"fmt"
)

// Function codes used on this rig.
const (
	fnReadHolding = 0x03
	fnWriteSingle = 0x06
)

// Common errors.
var (
	ErrNoResponse    = errors.New("modbus: no response")
	ErrCRC           = errors.New("modbus: CRC mismatch")
	ErrShortResponse = errors.New("modbus: short response")
)

// ExceptionError is a Modbus exception answer from the device.
type ExceptionError struct {
	Function byte
	Code     byte
}

func (e *ExceptionError) Error() string {
	return fmt.Sprintf("modbus: exception %d on function %#x", e.Code, e.Function)
}

// Client reads and writes holding registers on one device.
type Client interface {
	ReadHoldingRegisters(addr, count uint16) ([]uint16, error)
	WriteSingleRegister(addr, value uint16) error
}

// crc16 computes the Modbus RTU CRC (poly 0xA001).
func crc16(data []byte) uint16 {
	var crc uint16 = 0xFFFF
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&0x0001 != 0 {
				crc = (crc >> 1) ^ 0xA001
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}

// buildReadPDU builds the function-code payload for a holding-register
// read, without unit id or transport framing.
func buildReadPDU(addr, count uint16) []byte {
	return []byte{fnReadHolding, byte(addr >> 8), byte(addr), byte(count >> 8), byte(count)}
}

// buildWritePDU builds the payload for a single-register write.
func buildWritePDU(addr, value uint16) []byte {
	return []byte{fnWriteSingle, byte(addr >> 8), byte(addr), byte(value >> 8), byte(value)}
}

// parseReadResponse decodes the register data from a read answer PDU.
func parseReadResponse(pdu []byte, count uint16) ([]uint16, error) {
	if len(pdu) >= 2 && pdu[0] == fnReadHolding|0x80 {
		return nil, &ExceptionError{Function: fnReadHolding, Code: pdu[1]}
	}
	if len(pdu) < 2 || pdu[0] != fnReadHolding {
		return nil, ErrShortResponse
	}
	byteCount := int(pdu[1])
	if byteCount != int(count)*2 || len(pdu) < 2+byteCount {
		return nil, ErrShortResponse
	}
	regs := make([]uint16, count)
	for i := range regs {
		regs[i] = uint16(pdu[2+2*i])<<8 | uint16(pdu[3+2*i])
	}
	return regs, nil
}

// checkWriteResponse verifies the echo of a single-register write.
func checkWriteResponse(pdu []byte, addr, value uint16) error {
	if len(pdu) >= 2 && pdu[0] == fnWriteSingle|0x80 {
		return &ExceptionError{Function: fnWriteSingle, Code: pdu[1]}
	}
	if len(pdu) < 5 || pdu[0] != fnWriteSingle {
		return ErrShortResponse
	}
	gotAddr := uint16(pdu[1])<<8 | uint16(pdu[2])
	gotVal := uint16(pdu[3])<<8 | uint16(pdu[4])
	if gotAddr != addr || gotVal != value {
		return fmt.Errorf("modbus: write echo mismatch: register %d value %d", gotAddr, gotVal)
	}
	return nil
}
