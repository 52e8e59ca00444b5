// Flow-controller parameter protocol for the FASST-CAT gas rig
// Copyright (C) 2026  FASST-CAT Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package propar implements the ASCII parameter protocol spoken by the
// mass-flow and pressure controllers on the rig's multi-drop bus. Each
// frame is a colon-prefixed hex string terminated by CRLF; parameters
// are addressed by node, process and parameter number and may be
// chained into a single request.
package propar

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Type identifies the on-wire encoding of a parameter.
type Type int

const (
	// TypeInt8 is a one-byte unsigned value.
	TypeInt8 Type = iota

	// TypeInt16 is a two-byte big-endian value.
	TypeInt16

	// TypeInt32 is a four-byte big-endian value.
	TypeInt32

	// TypeFloat32 is a four-byte big-endian IEEE float.
	TypeFloat32

	// TypeString is a length-prefixed byte string.
	TypeString
)

func (t Type) String() string {
	switch t {
	case TypeInt8:
		return "int8"
	case TypeInt16:
		return "int16"
	case TypeInt32:
		return "int32"
	case TypeFloat32:
		return "float32"
	case TypeString:
		return "string"
	default:
		return "unknown"
	}
}

// typeBits returns the two type bits packed into a parameter byte.
func (t Type) typeBits() (byte, error) {
	switch t {
	case TypeInt8:
		return 0x00, nil
	case TypeInt16:
		return 0x20, nil
	case TypeInt32, TypeFloat32:
		return 0x40, nil
	case TypeString:
		return 0x60, nil
	default:
		return 0, fmt.Errorf("propar: unknown type %d", int(t))
	}
}

// Param addresses one device parameter. Data is only used on writes.
type Param struct {
	Node    byte
	Process byte
	Param   byte
	Type    Type
	Data    interface{}
}

// Value is a parameter read back from a device.
type Value struct {
	Node    byte
	Process byte
	Param   byte
	Type    Type
	Data    interface{}
}

// Float returns the value as float64, converting the integer
// encodings. It returns an error for string values.
func (v Value) Float() (float64, error) {
	switch d := v.Data.(type) {
	case float32:
		return float64(d), nil
	case uint8:
		return float64(d), nil
	case uint16:
		return float64(d), nil
	case uint32:
		return float64(d), nil
	default:
		return 0, fmt.Errorf("propar: value %T is not numeric", v.Data)
	}
}

// Int returns the value as int, converting the numeric encodings.
func (v Value) Int() (int, error) {
	switch d := v.Data.(type) {
	case uint8:
		return int(d), nil
	case uint16:
		return int(d), nil
	case uint32:
		return int(d), nil
	case float32:
		return int(d), nil
	default:
		return 0, fmt.Errorf("propar: value %T is not numeric", v.Data)
	}
}

// Wire command codes.
const (
	cmdStatus    = 0x00 // status answer
	cmdWrite     = 0x01 // write, no answer
	cmdWriteAck  = 0x02 // write with status answer; also carries read data
	cmdReadParam = 0x04 // read request
)

// Chain flag on the process byte: more parameters follow in this frame.
const chainFlag = 0x80

// Common errors.
var (
	ErrShortFrame   = errors.New("propar: short frame")
	ErrBadFrame     = errors.New("propar: malformed frame")
	ErrNoResponse   = errors.New("propar: no response")
	ErrTypeMismatch = errors.New("propar: response type mismatch")
)

// StatusError is a non-zero device status answer.
type StatusError struct {
	Node   byte
	Status byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("propar: node %d returned status %d (%s)",
		e.Node, e.Status, statusText(e.Status))
}

func statusText(code byte) string {
	switch code {
	case 0:
		return "ok"
	case 1:
		return "process claimed"
	case 3:
		return "command error"
	case 4:
		return "process number error"
	case 5:
		return "parameter number error"
	case 6:
		return "parameter type error"
	case 7:
		return "parameter value error"
	case 8:
		return "network not active"
	case 9:
		return "timeout start character"
	default:
		return "device error"
	}
}

// encodeData appends the wire bytes for one parameter value.
func encodeData(buf []byte, typ Type, data interface{}) ([]byte, error) {
	switch typ {
	case TypeInt8:
		v, err := toUint32(data)
		if err != nil {
			return nil, err
		}
		return append(buf, byte(v)), nil
	case TypeInt16:
		v, err := toUint32(data)
		if err != nil {
			return nil, err
		}
		return binary.BigEndian.AppendUint16(buf, uint16(v)), nil
	case TypeInt32:
		v, err := toUint32(data)
		if err != nil {
			return nil, err
		}
		return binary.BigEndian.AppendUint32(buf, v), nil
	case TypeFloat32:
		f, ok := toFloat64(data)
		if !ok {
			return nil, fmt.Errorf("propar: cannot encode %T as float32", data)
		}
		return binary.BigEndian.AppendUint32(buf, math.Float32bits(float32(f))), nil
	case TypeString:
		s, ok := data.(string)
		if !ok {
			return nil, fmt.Errorf("propar: cannot encode %T as string", data)
		}
		if len(s) > 255 {
			return nil, errors.New("propar: string parameter too long")
		}
		buf = append(buf, byte(len(s)))
		return append(buf, s...), nil
	default:
		return nil, fmt.Errorf("propar: unknown type %d", int(typ))
	}
}

// decodeData consumes the wire bytes for one parameter value.
func decodeData(buf []byte, typ Type) (interface{}, []byte, error) {
	switch typ {
	case TypeInt8:
		if len(buf) < 1 {
			return nil, nil, ErrShortFrame
		}
		return buf[0], buf[1:], nil
	case TypeInt16:
		if len(buf) < 2 {
			return nil, nil, ErrShortFrame
		}
		return binary.BigEndian.Uint16(buf), buf[2:], nil
	case TypeInt32:
		if len(buf) < 4 {
			return nil, nil, ErrShortFrame
		}
		return binary.BigEndian.Uint32(buf), buf[4:], nil
	case TypeFloat32:
		if len(buf) < 4 {
			return nil, nil, ErrShortFrame
		}
		return math.Float32frombits(binary.BigEndian.Uint32(buf)), buf[4:], nil
	case TypeString:
		if len(buf) < 1 {
			return nil, nil, ErrShortFrame
		}
		n := int(buf[0])
		if len(buf) < 1+n {
			return nil, nil, ErrShortFrame
		}
		return string(buf[1 : 1+n]), buf[1+n:], nil
	default:
		return nil, nil, fmt.Errorf("propar: unknown type %d", int(typ))
	}
}

func toUint32(data interface{}) (uint32, error) {
	switch v := data.(type) {
	case int:
		return uint32(v), nil
	case int8:
		return uint32(v), nil
	case int16:
		return uint32(v), nil
	case int32:
		return uint32(v), nil
	case int64:
		return uint32(v), nil
	case uint8:
		return uint32(v), nil
	case uint16:
		return uint32(v), nil
	case uint32:
		return v, nil
	case uint64:
		return uint32(v), nil
	case float64:
		return uint32(v), nil
	default:
		return 0, fmt.Errorf("propar: cannot encode %T as integer", data)
	}
}

func toFloat64(data interface{}) (float64, bool) {
	switch v := data.(type) {
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case int:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	default:
		return 0, false
	}
}
