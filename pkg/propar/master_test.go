package propar

import (
	"bytes"
	"errors"
	"io"
	"math"
	"testing"
)

// fakeConn scripts the device side of a request/response exchange.
type fakeConn struct {
	sent      bytes.Buffer
	responses [][]byte
}

func (c *fakeConn) Write(p []byte) (int, error) {
	c.sent.Write(p)
	return len(p), nil
}

func (c *fakeConn) Read(p []byte) (int, error) {
	if len(c.responses) == 0 {
		return 0, io.EOF
	}
	n := copy(p, c.responses[0])
	if n == len(c.responses[0]) {
		c.responses = c.responses[1:]
	} else {
		c.responses[0] = c.responses[0][n:]
	}
	return n, nil
}

func (c *fakeConn) queue(lines ...string) {
	for _, l := range lines {
		c.responses = append(c.responses, []byte(l))
	}
}

func TestWriteParametersFrame(t *testing.T) {
	conn := &fakeConn{}
	// Status answer: node 7, command 00, status 00, index 00.
	conn.queue(":0407000000\r\n")
	m := NewMaster(conn)

	curve := 1
	err := m.WriteParameters([]Param{
		{Node: 7, Process: 1, Param: 16, Type: TypeInt8, Data: curve},
		{Node: 7, Process: 1, Param: 1, Type: TypeInt16, Data: 8000},
	})
	if err != nil {
		t.Fatalf("WriteParameters: %v", err)
	}

	// Chained write: node 07, cmd 02, proc 81 (chain) parm 10 data 01,
	// proc 01 parm 21 data 1F40 (8000).
	want := ":09070281100101211F40\r\n"
	if got := conn.sent.String(); got != want {
		t.Errorf("frame = %q, want %q", got, want)
	}
}

func TestWriteParametersStatusError(t *testing.T) {
	conn := &fakeConn{}
	// Status 5: parameter number error.
	conn.queue(":0407000500\r\n")
	m := NewMaster(conn)

	err := m.Write(7, 1, 1, TypeInt16, 100)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("want StatusError, got %v", err)
	}
	if se.Status != 5 {
		t.Errorf("status = %d, want 5", se.Status)
	}
}

func TestReadParametersFloat(t *testing.T) {
	conn := &fakeConn{}
	// Answer: node 03, cmd 02, proc 21 parm 40, float 14.7.
	bits := math.Float32bits(14.7)
	resp := []byte{0x03, 0x02, 0x21, 0x40,
		byte(bits >> 24), byte(bits >> 16), byte(bits >> 8), byte(bits)}
	conn.responses = append(conn.responses, encodeFrame(resp))
	m := NewMaster(conn)

	v, err := m.Read(3, 33, 0, TypeFloat32)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	f, err := v.Float()
	if err != nil {
		t.Fatalf("Float: %v", err)
	}
	if math.Abs(f-14.7) > 1e-5 {
		t.Errorf("value = %v, want 14.7", f)
	}

	// Read request: node 03, cmd 04, proc 21 parm 40 (float, parm 0).
	want := ":0403042140\r\n"
	if got := conn.sent.String(); got != want {
		t.Errorf("frame = %q, want %q", got, want)
	}
}

func TestReadParametersChained(t *testing.T) {
	conn := &fakeConn{}
	measure := math.Float32bits(12.5)
	setpoint := math.Float32bits(15.0)
	resp := []byte{0x0A, 0x02,
		0xA1, 0x40, byte(measure >> 24), byte(measure >> 16), byte(measure >> 8), byte(measure),
		0xA1, 0x43, byte(setpoint >> 24), byte(setpoint >> 16), byte(setpoint >> 8), byte(setpoint),
		0x01, 0x10, 0x02,
	}
	conn.responses = append(conn.responses, encodeFrame(resp))
	m := NewMaster(conn)

	values, err := m.ReadParameters([]Param{
		{Node: 10, Process: 33, Param: 0, Type: TypeFloat32},
		{Node: 10, Process: 33, Param: 3, Type: TypeFloat32},
		{Node: 10, Process: 1, Param: 16, Type: TypeInt8},
	})
	if err != nil {
		t.Fatalf("ReadParameters: %v", err)
	}
	if len(values) != 3 {
		t.Fatalf("got %d values, want 3", len(values))
	}
	if f, _ := values[0].Float(); math.Abs(f-12.5) > 1e-5 {
		t.Errorf("measure = %v, want 12.5", f)
	}
	if f, _ := values[1].Float(); math.Abs(f-15.0) > 1e-5 {
		t.Errorf("setpoint = %v, want 15.0", f)
	}
	if i, _ := values[2].Int(); i != 2 {
		t.Errorf("fluid index = %d, want 2", i)
	}
}

func TestReadNoResponse(t *testing.T) {
	m := NewMaster(&fakeConn{})
	_, err := m.Read(3, 33, 0, TypeFloat32)
	if !errors.Is(err, ErrNoResponse) {
		t.Errorf("want ErrNoResponse, got %v", err)
	}
}

func TestChainedWriteSpanningNodesRejected(t *testing.T) {
	m := NewMaster(&fakeConn{})
	err := m.WriteParameters([]Param{
		{Node: 7, Process: 1, Param: 1, Type: TypeInt16, Data: 1},
		{Node: 8, Process: 1, Param: 1, Type: TypeInt16, Data: 1},
	})
	if err == nil {
		t.Error("chained write across nodes should be rejected")
	}
}

func TestDecodeFrameErrors(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"missing colon", "0403042140\r\n"},
		{"bad hex", ":04zz042140\r\n"},
		{"length mismatch", ":09070281\r\n"},
		{"empty", "\r\n"},
	}
	for _, tt := range tests {
		if _, err := decodeFrame(tt.line); err == nil {
			t.Errorf("%s: decodeFrame should fail", tt.name)
		}
	}
}
