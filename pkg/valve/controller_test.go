// Copyright (C) 2026  FASST-CAT Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package valve

import (
	"fmt"
	"testing"
	"time"
)

// fakeBank simulates the valve bank: it tracks per-valve positions,
// honors CW/CC/TO/CP, and records every command it saw. stickFor
// makes a valve ignore a number of actuations, forcing mismatches.
type fakeBank struct {
	positions map[byte]Position
	commands  []string
	stick     map[byte]int
	reply     string
}

func newFakeBank() *fakeBank {
	return &fakeBank{
		positions: make(map[byte]Position),
		stick:     make(map[byte]int),
	}
}

func (b *fakeBank) stickFor(id byte, n int) { b.stick[id] = n }

func (b *fakeBank) WriteCommand(cmd string) error {
	b.commands = append(b.commands, cmd)
	if len(cmd) < 3 || cmd[0] != '/' {
		return fmt.Errorf("bad command %q", cmd)
	}
	id := cmd[1]
	switch cmd[2:] {
	case "CW":
		if b.stick[id] > 0 {
			b.stick[id]--
			return nil
		}
		b.positions[id] = Off
	case "CC":
		if b.stick[id] > 0 {
			b.stick[id]--
			return nil
		}
		b.positions[id] = On
	case "TO":
		if b.positions[id] == On {
			b.positions[id] = Off
		} else {
			b.positions[id] = On
		}
	case "CP":
		pos, ok := b.positions[id]
		if !ok {
			b.reply = "??"
			return nil
		}
		b.reply = fmt.Sprintf("%c*", pos.positionCode())
	default:
		return fmt.Errorf("bad command %q", cmd)
	}
	return nil
}

func (b *fakeBank) ReadReply() (string, error) {
	return b.reply, nil
}

// actuations returns the CW/CC commands seen, excluding queries.
func (b *fakeBank) actuations() []string {
	var out []string
	for _, cmd := range b.commands {
		if len(cmd) == 4 && (cmd[2:] == "CW" || cmd[2:] == "CC") {
			out = append(out, cmd)
		}
	}
	return out
}

func noSleep(time.Duration) {}

func newTestController(b *fakeBank) *Controller {
	return NewController(b, Options{Sleep: noSleep})
}

func TestMoveValveVerified(t *testing.T) {
	bank := newFakeBank()
	c := newTestController(bank)

	if err := c.MoveValve("A", On); err != nil {
		t.Fatalf("MoveValve: %v", err)
	}
	if got := bank.actuations(); len(got) != 1 || got[0] != "/ACC" {
		t.Fatalf("actuations = %v, want [/ACC]", got)
	}
	pos, err := c.ReadPosition("A")
	if err != nil {
		t.Fatalf("ReadPosition: %v", err)
	}
	if pos != On {
		t.Fatalf("position = %v, want ON", pos)
	}
}

func TestMoveValveResendsOnceOnMismatch(t *testing.T) {
	bank := newFakeBank()
	bank.positions['A'] = Off
	bank.stickFor('A', 1)
	c := newTestController(bank)

	if err := c.MoveValve("A", On); err != nil {
		t.Fatalf("MoveValve: %v", err)
	}
	if got := bank.actuations(); len(got) != 2 {
		t.Fatalf("actuations = %v, want first send plus one resend", got)
	}
	if bank.positions['A'] != On {
		t.Fatalf("valve did not reach ON after resend")
	}
}

func TestMoveValvePersistentMismatchNotEscalated(t *testing.T) {
	bank := newFakeBank()
	bank.positions['A'] = Off
	bank.stickFor('A', 10)
	c := newTestController(bank)

	// The valve never moves; MoveValve still returns nil after its
	// bounded resend.
	if err := c.MoveValve("A", On); err != nil {
		t.Fatalf("MoveValve: %v", err)
	}
	if got := bank.actuations(); len(got) != 2 {
		t.Fatalf("actuations = %v, want exactly 2", got)
	}
}

func TestMoveValveRejectsBadInput(t *testing.T) {
	c := newTestController(newFakeBank())
	if err := c.MoveValve("AB", On); err == nil {
		t.Fatal("expected error for multi-letter id")
	}
	if err := c.MoveValve("A", Unknown); err == nil {
		t.Fatal("expected error actuating to Unknown")
	}
}

func TestApplyModeFromAllOn(t *testing.T) {
	bank := newFakeBank()
	bank.positions['A'] = On
	bank.positions['B'] = On
	bank.positions['C'] = On
	c := newTestController(bank)

	if err := c.ApplyMode(ContinuousA); err != nil {
		t.Fatalf("ApplyMode: %v", err)
	}
	want := []string{"/ACW", "/BCW", "/CCW"}
	got := bank.actuations()
	if len(got) != len(want) {
		t.Fatalf("actuations = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("actuation %d = %q, want %q", i, got[i], want[i])
		}
	}
	positions, err := c.Positions([]string{"A", "B", "C"})
	if err != nil {
		t.Fatalf("Positions: %v", err)
	}
	for id, pos := range positions {
		if pos != Off {
			t.Fatalf("valve %s = %v, want OFF", id, pos)
		}
	}
}

func TestApplyModeIdempotent(t *testing.T) {
	bank := newFakeBank()
	c := newTestController(bank)

	if err := c.ApplyMode(PulsedLoopB); err != nil {
		t.Fatalf("first ApplyMode: %v", err)
	}
	first := len(bank.actuations())
	if err := c.ApplyMode(PulsedLoopB); err != nil {
		t.Fatalf("second ApplyMode: %v", err)
	}
	// Commands are re-sent but the verified positions do not change.
	if got := len(bank.actuations()); got != 2*first {
		t.Fatalf("actuation count = %d, want %d", got, 2*first)
	}
	for _, id := range []string{"A", "B", "C"} {
		pos, err := c.ReadPosition(id)
		if err != nil {
			t.Fatalf("ReadPosition(%s): %v", id, err)
		}
		if pos != On {
			t.Fatalf("valve %s = %v after pulsed-loop-B, want ON", id, pos)
		}
	}
}

func TestPulseValveSendsRawToggles(t *testing.T) {
	bank := newFakeBank()
	bank.positions['D'] = Off
	c := newTestController(bank)

	if err := c.PulseValve("D", 4, time.Millisecond); err != nil {
		t.Fatalf("PulseValve: %v", err)
	}
	count := 0
	for _, cmd := range bank.commands {
		if cmd == "/DTO" {
			count++
		}
	}
	if count != 4 {
		t.Fatalf("toggle count = %d, want 4", count)
	}
	// Even pulse count returns the valve to its start position.
	if bank.positions['D'] != Off {
		t.Fatalf("valve D = %v after even pulse count, want OFF", bank.positions['D'])
	}
}

func TestPulseValveRejectsZeroCount(t *testing.T) {
	c := newTestController(newFakeBank())
	if err := c.PulseValve("D", 0, time.Millisecond); err == nil {
		t.Fatal("expected error for zero pulse count")
	}
}

func TestReadPositionUnknownReply(t *testing.T) {
	bank := newFakeBank()
	c := newTestController(bank)

	// No position recorded for E; the bank answers garbage.
	pos, err := c.ReadPosition("E")
	if err != nil {
		t.Fatalf("ReadPosition: %v", err)
	}
	if pos != Unknown {
		t.Fatalf("position = %v, want Unknown", pos)
	}
}

func TestDecodePosition(t *testing.T) {
	cases := []struct {
		reply string
		want  Position
	}{
		{"A*", Off},
		{"B*", On},
		{"0123A*", Off},
		{"X*", Unknown},
		{"", Unknown},
		{"B", Unknown},
	}
	for _, tc := range cases {
		if got := decodePosition(tc.reply); got != tc.want {
			t.Errorf("decodePosition(%q) = %v, want %v", tc.reply, got, tc.want)
		}
	}
}

func TestFeedGasUsesBinding(t *testing.T) {
	bank := newFakeBank()
	c := newTestController(bank)

	if err := c.BindGasFeed("H2_A", "D", On); err != nil {
		t.Fatalf("BindGasFeed: %v", err)
	}
	if err := c.FeedGas("H2_A"); err != nil {
		t.Fatalf("FeedGas: %v", err)
	}
	if bank.positions['D'] != On {
		t.Fatalf("feed valve D = %v, want ON", bank.positions['D'])
	}
	// A gas with no binding needs no path selection.
	before := len(bank.commands)
	if err := c.FeedGas("Ar_A"); err != nil {
		t.Fatalf("FeedGas unbound: %v", err)
	}
	if len(bank.commands) != before {
		t.Fatal("unbound gas must not touch the valve bank")
	}
}

func TestParsePosition(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want Position
		ok   bool
	}{
		{"ON", On, true},
		{"off", Off, true},
		{" On ", On, true},
		{"open", Unknown, false},
	} {
		got, err := ParsePosition(tc.in)
		if tc.ok != (err == nil) {
			t.Errorf("ParsePosition(%q) err = %v", tc.in, err)
			continue
		}
		if tc.ok && got != tc.want {
			t.Errorf("ParsePosition(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
