package modbus

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestCRC16KnownFrame(t *testing.T) {
	// Read 1 register at address 0 for unit 1; wire bytes 84 0A.
	frame := []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x01}
	if got := crc16(frame); got != 0x0A84 {
		t.Errorf("crc16 = %#04x, want 0x0a84", got)
	}
}

// scriptedConn returns canned reads and captures writes.
type scriptedConn struct {
	sent      bytes.Buffer
	responses [][]byte
}

func (c *scriptedConn) Write(p []byte) (int, error) {
	c.sent.Write(p)
	return len(p), nil
}

func (c *scriptedConn) Read(p []byte) (int, error) {
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

// rtuFrame appends a valid CRC to a unit+PDU body.
func rtuFrame(body ...byte) []byte {
	crc := crc16(body)
	return append(body, byte(crc&0xFF), byte(crc>>8))
}

func TestRTUReadHoldingRegisters(t *testing.T) {
	conn := &scriptedConn{}
	// Unit 1, read answer: 2 bytes, register value 0x00C8 (20.0 C x10).
	conn.responses = append(conn.responses, rtuFrame(0x01, 0x03, 0x02, 0x00, 0xC8))
	c := NewRTUClient(conn, 1)

	regs, err := c.ReadHoldingRegisters(1, 1)
	if err != nil {
		t.Fatalf("ReadHoldingRegisters: %v", err)
	}
	if len(regs) != 1 || regs[0] != 200 {
		t.Errorf("regs = %v, want [200]", regs)
	}

	want := rtuFrame(0x01, 0x03, 0x00, 0x01, 0x00, 0x01)
	if !bytes.Equal(conn.sent.Bytes(), want) {
		t.Errorf("request = % x, want % x", conn.sent.Bytes(), want)
	}
}

func TestRTUWriteSingleRegister(t *testing.T) {
	conn := &scriptedConn{}
	// Write echo: register 2 value 200.
	conn.responses = append(conn.responses, rtuFrame(0x01, 0x06, 0x00, 0x02, 0x00, 0xC8))
	c := NewRTUClient(conn, 1)

	if err := c.WriteSingleRegister(2, 200); err != nil {
		t.Fatalf("WriteSingleRegister: %v", err)
	}
}

func TestRTUWriteEchoMismatch(t *testing.T) {
	conn := &scriptedConn{}
	conn.responses = append(conn.responses, rtuFrame(0x01, 0x06, 0x00, 0x02, 0x00, 0x64))
	c := NewRTUClient(conn, 1)

	if err := c.WriteSingleRegister(2, 200); err == nil {
		t.Error("mismatched write echo should fail")
	}
}

func TestRTUCRCMismatch(t *testing.T) {
	conn := &scriptedConn{}
	bad := rtuFrame(0x01, 0x03, 0x02, 0x00, 0xC8)
	bad[len(bad)-1] ^= 0xFF
	conn.responses = append(conn.responses, bad)
	c := NewRTUClient(conn, 1)

	_, err := c.ReadHoldingRegisters(1, 1)
	if !errors.Is(err, ErrCRC) {
		t.Errorf("want ErrCRC, got %v", err)
	}
}

func TestRTUExceptionResponse(t *testing.T) {
	conn := &scriptedConn{}
	// Exception: function 0x83, illegal data address (2).
	conn.responses = append(conn.responses, rtuFrame(0x01, 0x83, 0x02))
	c := NewRTUClient(conn, 1)

	_, err := c.ReadHoldingRegisters(9999, 1)
	var ex *ExceptionError
	if !errors.As(err, &ex) {
		t.Fatalf("want ExceptionError, got %v", err)
	}
	if ex.Code != 2 {
		t.Errorf("exception code = %d, want 2", ex.Code)
	}
}

func TestRTUWrongUnitRejected(t *testing.T) {
	conn := &scriptedConn{}
	conn.responses = append(conn.responses, rtuFrame(0x02, 0x03, 0x02, 0x00, 0xC8))
	c := NewRTUClient(conn, 1)

	if _, err := c.ReadHoldingRegisters(1, 1); err == nil {
		t.Error("answer from wrong unit should be rejected")
	}
}

func TestTCPReadHoldingRegisters(t *testing.T) {
	conn := &scriptedConn{}
	// MBAP: txn 1, proto 0, length 5, unit 1; PDU: read answer 200.
	conn.responses = append(conn.responses, []byte{
		0x00, 0x01, 0x00, 0x00, 0x00, 0x05, 0x01,
		0x03, 0x02, 0x00, 0xC8,
	})
	c := NewTCPClient(conn, 1)

	regs, err := c.ReadHoldingRegisters(1, 1)
	if err != nil {
		t.Fatalf("ReadHoldingRegisters: %v", err)
	}
	if len(regs) != 1 || regs[0] != 200 {
		t.Errorf("regs = %v, want [200]", regs)
	}

	want := []byte{
		0x00, 0x01, 0x00, 0x00, 0x00, 0x06, 0x01,
		0x03, 0x00, 0x01, 0x00, 0x01,
	}
	if !bytes.Equal(conn.sent.Bytes(), want) {
		t.Errorf("request = % x, want % x", conn.sent.Bytes(), want)
	}
}

func TestTCPTransactionMismatch(t *testing.T) {
	conn := &scriptedConn{}
	conn.responses = append(conn.responses, []byte{
		0x00, 0x09, 0x00, 0x00, 0x00, 0x05, 0x01,
		0x03, 0x02, 0x00, 0xC8,
	})
	c := NewTCPClient(conn, 1)

	if _, err := c.ReadHoldingRegisters(1, 1); err == nil {
		t.Error("stale transaction id should be rejected")
	}
}
