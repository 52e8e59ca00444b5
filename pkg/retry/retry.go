// Bounded-retry helper for register writes on the gas rig
// Copyright (C) 2026  FASST-CAT Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package retry wraps a single device write in a bounded retry loop.
// A falsy acknowledgement and a transport error retry identically: the
// devices on this rig do not let us tell a rejected value apart from a
// lost frame, so the wrapper reports only success or exhaustion.
package retry

import (
	"time"

	"github.com/rs/zerolog"
)

// Default bounds used when Options fields are zero.
const (
	DefaultMaxRetries = 5
	DefaultDelay      = 1 * time.Second
)

// Options controls the retry bounds for one call site.
type Options struct {
	// MaxRetries is the total number of attempts (default 5).
	MaxRetries int

	// Delay is the sleep between attempts (default 1s).
	Delay time.Duration

	// Sleep replaces time.Sleep in tests. Nil means time.Sleep.
	Sleep func(time.Duration)

	// Logger for per-attempt diagnostics. Nil disables logging.
	Logger *zerolog.Logger
}

func (o Options) withDefaults() Options {
	if o.MaxRetries <= 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.Delay <= 0 {
		o.Delay = DefaultDelay
	}
	if o.Sleep == nil {
		o.Sleep = time.Sleep
	}
	return o
}

// Do runs attempt until it reports success or the retry bound is
// exhausted. It sleeps opts.Delay between attempts and returns true on
// the first success, false after MaxRetries failures.
func Do(desc string, opts Options, attempt func() bool) bool {
	opts = opts.withDefaults()

	for try := 1; try <= opts.MaxRetries; try++ {
		if attempt() {
			return true
		}
		if opts.Logger != nil {
			opts.Logger.Warn().
				Str("write", desc).
				Int("attempt", try).
				Int("max", opts.MaxRetries).
				Msg("write failed, retrying")
		}
		if try < opts.MaxRetries {
			opts.Sleep(opts.Delay)
		}
	}
	if opts.Logger != nil {
		opts.Logger.Error().
			Str("write", desc).
			Int("attempts", opts.MaxRetries).
			Msg("write abandoned after retries")
	}
	return false
}

// RegisterWriter is the single-register write surface of a device
// transport (the Modbus-style temperature controller).
type RegisterWriter interface {
	WriteSingleRegister(addr, value uint16) error
}

// Write attempts a single register write through w with bounded
// retries. It returns true on the first acknowledged write, false
// after exhaustion; it never returns an error.
func Write(w RegisterWriter, addr, value uint16, desc string, opts Options) bool {
	return Do(desc, opts, func() bool {
		return w.WriteSingleRegister(addr, value) == nil
	})
}
