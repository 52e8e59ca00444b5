// Copyright (C) 2026  FASST-CAT Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package valve

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Default actuation timing for the stock rotary actuators.
const (
	// DefaultSettleDelay is the wait between actuation and readback.
	DefaultSettleDelay = 300 * time.Millisecond

	// DefaultQueryDelay is the wait between a position query and its
	// reply.
	DefaultQueryDelay = 10 * time.Millisecond
)

// Options tunes a Controller. Zero values take the defaults above.
type Options struct {
	SettleDelay time.Duration
	QueryDelay  time.Duration

	// VerifyResends is the number of resends after a position
	// mismatch. The stock behavior is exactly one.
	VerifyResends int

	// Sleep replaces time.Sleep in tests.
	Sleep func(time.Duration)

	Logger *zerolog.Logger
}

// Controller drives the selector valves over one shared line.
type Controller struct {
	conn     Conn
	settle   time.Duration
	query    time.Duration
	resends  int
	sleep    func(time.Duration)
	logger   zerolog.Logger
	bindings map[string]Target
}

// NewController wraps a connection to the valve bank.
func NewController(conn Conn, opts Options) *Controller {
	c := &Controller{
		conn:     conn,
		settle:   opts.SettleDelay,
		query:    opts.QueryDelay,
		resends:  opts.VerifyResends,
		sleep:    opts.Sleep,
		logger:   zerolog.Nop(),
		bindings: make(map[string]Target),
	}
	if c.settle == 0 {
		c.settle = DefaultSettleDelay
	}
	if c.query == 0 {
		c.query = DefaultQueryDelay
	}
	if c.resends == 0 {
		c.resends = 1
	}
	if c.sleep == nil {
		c.sleep = time.Sleep
	}
	if opts.Logger != nil {
		c.logger = *opts.Logger
	}
	return c
}

// ReadPosition queries a valve and maps the device code to a
// Position. A missing or unparseable reply maps to Unknown.
func (c *Controller) ReadPosition(id string) (Position, error) {
	if err := validID(id); err != nil {
		return Unknown, err
	}
	if err := c.conn.WriteCommand("/" + id + "CP"); err != nil {
		return Unknown, err
	}
	c.sleep(c.query)
	reply, err := c.conn.ReadReply()
	if err != nil {
		return Unknown, err
	}
	return decodePosition(reply), nil
}

// decodePosition extracts the position letter from a query reply. The
// device encodes it in the reply's next-to-last character.
func decodePosition(reply string) Position {
	if len(reply) < 2 {
		return Unknown
	}
	switch reply[len(reply)-2] {
	case 'A':
		return Off
	case 'B':
		return On
	default:
		return Unknown
	}
}

// MoveValve actuates a valve toward target, waits the settle delay,
// and verifies by readback. On mismatch the command is resent a
// bounded number of times (stock: once); the final attempt's outcome
// is not verified. A mismatch is logged, never escalated.
func (c *Controller) MoveValve(id string, target Position) error {
	if err := validID(id); err != nil {
		return err
	}
	cmd, err := target.command()
	if err != nil {
		return err
	}

	if err := c.conn.WriteCommand("/" + id + cmd); err != nil {
		return err
	}
	c.sleep(c.settle)

	for resend := 0; resend < c.resends; resend++ {
		pos, err := c.ReadPosition(id)
		if err != nil {
			return err
		}
		if pos == target {
			return nil
		}
		c.logger.Warn().
			Str("valve", id).
			Stringer("target", target).
			Stringer("readback", pos).
			Msg("valve position mismatch, resending")
		if err := c.conn.WriteCommand("/" + id + cmd); err != nil {
			return err
		}
		c.sleep(c.settle)
	}
	return nil
}

// ApplyMode drives every target of a mode in listed order. A
// concurrent reader may observe a transitional mix of positions.
func (c *Controller) ApplyMode(m Mode) error {
	for _, t := range m.Targets {
		if err := c.MoveValve(t.Valve, t.Position); err != nil {
			return fmt.Errorf("valve: mode %s: %w", m.Name, err)
		}
	}
	c.logger.Info().Str("mode", m.Name).Msg("operating mode applied")
	return nil
}

// Toggle flips a valve to its other position without verification.
func (c *Controller) Toggle(id string) error {
	if err := validID(id); err != nil {
		return err
	}
	return c.conn.WriteCommand("/" + id + "TO")
}

// PulseValve toggles a valve count times with interval sleeps in
// between. Pulses are raw commands with no per-pulse verification;
// readback would break the pulse timing.
func (c *Controller) PulseValve(id string, count int, interval time.Duration) error {
	if err := validID(id); err != nil {
		return err
	}
	if count < 1 {
		return fmt.Errorf("valve: pulse count %d", count)
	}
	for i := 0; i < count; i++ {
		if err := c.conn.WriteCommand("/" + id + "TO"); err != nil {
			return fmt.Errorf("valve: pulse %d/%d: %w", i+1, count, err)
		}
		c.logger.Debug().Str("valve", id).Int("pulse", i+1).Int("of", count).Msg("pulse sent")
		c.sleep(interval)
	}
	return nil
}

// Positions queries the listed valves and returns their states.
func (c *Controller) Positions(ids []string) (map[string]Position, error) {
	out := make(map[string]Position, len(ids))
	for _, id := range ids {
		pos, err := c.ReadPosition(id)
		if err != nil {
			return nil, err
		}
		out[id] = pos
	}
	return out, nil
}

// BindGasFeed binds a gas name to the valve target that routes its
// physical line.
func (c *Controller) BindGasFeed(gasName, valveID string, target Position) error {
	if err := validID(valveID); err != nil {
		return err
	}
	c.bindings[gasName] = Target{Valve: valveID, Position: target}
	return nil
}

// FeedGas drives the valve bound to a gas. The command is sent even
// when the valve is already in position. Gases with no binding need
// no path selection and are a no-op.
func (c *Controller) FeedGas(gasName string) error {
	t, ok := c.bindings[gasName]
	if !ok {
		return nil
	}
	c.logger.Info().Str("gas", gasName).Str("valve", t.Valve).
		Stringer("position", t.Position).Msg("routing feed line")
	return c.MoveValve(t.Valve, t.Position)
}
