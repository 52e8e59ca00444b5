// Pressure safety watchdog for the FASST-CAT gas rig
// Copyright (C) 2026  FASST-CAT Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package safety guards long-running rig operations with a concurrent
// pressure watchdog. A breach of the line pressure window zeroes all
// gas flows, takes the reactor temperature to its safe state and
// flags the operation as aborted.
package safety

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// AlarmState is the watchdog's view of the rig.
type AlarmState int

const (
	// Nominal means both line pressures are inside the window.
	Nominal AlarmState = iota

	// HighPressure means a line exceeded the high threshold, usually
	// a serious flow restriction.
	HighPressure

	// LowPressure means a line fell below the low threshold, usually
	// a loss of feed or a leak to vacuum.
	LowPressure

	// Aborted means the safe state has been commanded and the guarded
	// operation should wind down.
	Aborted
)

func (s AlarmState) String() string {
	switch s {
	case Nominal:
		return "nominal"
	case HighPressure:
		return "high_pressure"
	case LowPressure:
		return "low_pressure"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// ErrPressureAlarm is wrapped into the error RunGuarded returns after
// a breach.
var ErrPressureAlarm = errors.New("safety: pressure alarm")

// PressureSampler reads both line pressures as one sample.
type PressureSampler interface {
	SamplePressures() (lineA, lineB float64, err error)
}

// FlowZeroer shuts every gas flow down.
type FlowZeroer interface {
	ZeroAll() error
}

// TempSetback commands the reactor temperature safe state.
type TempSetback interface {
	SafeShutdown() error
}

// Alarm records the breach that tripped the watchdog.
type Alarm struct {
	State AlarmState // HighPressure or LowPressure
	Line  string
	Value float64
	Time  time.Time
}

// Default pressure window and poll cadence, in psia and wall time.
const (
	DefaultLowThreshold  = 10.0
	DefaultHighThreshold = 30.0
	DefaultInterval      = time.Second
)

// Config tunes a Monitor. Zero values take the defaults above.
type Config struct {
	LowThreshold  float64
	HighThreshold float64
	Interval      time.Duration

	// Sleep replaces time.Sleep in tests.
	Sleep func(time.Duration)

	Logger *zerolog.Logger
}

// Monitor supervises guarded operations. One Monitor serves the whole
// rig; guarded calls must not overlap.
type Monitor struct {
	mu    sync.RWMutex
	state AlarmState
	alarm *Alarm

	aborted atomic.Bool

	sampler PressureSampler
	flows   FlowZeroer
	temp    TempSetback

	low      float64
	high     float64
	interval time.Duration
	sleep    func(time.Duration)
	logger   zerolog.Logger
}

// NewMonitor wires the watchdog to the rig. temp may be nil when no
// temperature controller is attached.
func NewMonitor(sampler PressureSampler, flows FlowZeroer, temp TempSetback, cfg Config) *Monitor {
	m := &Monitor{
		sampler:  sampler,
		flows:    flows,
		temp:     temp,
		low:      cfg.LowThreshold,
		high:     cfg.HighThreshold,
		interval: cfg.Interval,
		sleep:    cfg.Sleep,
		logger:   zerolog.Nop(),
	}
	if m.low == 0 {
		m.low = DefaultLowThreshold
	}
	if m.high == 0 {
		m.high = DefaultHighThreshold
	}
	if m.interval == 0 {
		m.interval = DefaultInterval
	}
	if m.sleep == nil {
		m.sleep = time.Sleep
	}
	if cfg.Logger != nil {
		m.logger = *cfg.Logger
	}
	return m
}

// State returns the current alarm state.
func (m *Monitor) State() AlarmState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// LastAlarm returns the breach that tripped the current or most
// recent guarded call, or nil.
func (m *Monitor) LastAlarm() *Alarm {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.alarm
}

// Aborted reports whether the running guarded operation should wind
// down. Long operations poll this between steps for an early exit.
func (m *Monitor) Aborted() bool {
	return m.aborted.Load()
}

// RunGuarded runs op with the pressure watchdog alongside it. The
// watchdog samples every interval; on a breach it zeroes all flows,
// commands the temperature safe state and keeps re-issuing both until
// op returns. The watcher is joined before RunGuarded returns. The
// alarm state resets at the start of every call.
func (m *Monitor) RunGuarded(op func() error) error {
	m.mu.Lock()
	m.state = Nominal
	m.alarm = nil
	m.mu.Unlock()
	m.aborted.Store(false)

	done := make(chan struct{})
	finished := make(chan struct{})
	go m.watch(done, finished)

	err := op()
	close(done)
	<-finished

	if m.aborted.Load() {
		alarmErr := m.alarmError()
		if err != nil {
			return fmt.Errorf("%w (operation error: %v)", alarmErr, err)
		}
		return alarmErr
	}
	return err
}

func (m *Monitor) alarmError() error {
	m.mu.RLock()
	a := m.alarm
	m.mu.RUnlock()
	if a == nil {
		return ErrPressureAlarm
	}
	return fmt.Errorf("%w: %s on line %s at %.2f psia", ErrPressureAlarm, a.State, a.Line, a.Value)
}

// watch is the watchdog loop. Cancellation is only observed at
// iteration boundaries; the interval sleep is not interruptible.
func (m *Monitor) watch(done <-chan struct{}, finished chan<- struct{}) {
	defer close(finished)
	for {
		select {
		case <-done:
			return
		default:
		}

		if m.aborted.Load() {
			m.issueSafeState()
		} else if a, b, err := m.sampler.SamplePressures(); err != nil {
			m.logger.Warn().Err(err).Msg("pressure sample failed")
		} else {
			m.evaluate(a, b)
		}

		m.sleep(m.interval)
	}
}

// evaluate checks one sample against the window. The high threshold
// is checked first on both lines, matching the rig's historic
// behavior.
func (m *Monitor) evaluate(a, b float64) {
	switch {
	case a > m.high:
		m.trip(HighPressure, "A", a)
	case b > m.high:
		m.trip(HighPressure, "B", b)
	case a < m.low:
		m.trip(LowPressure, "A", a)
	case b < m.low:
		m.trip(LowPressure, "B", b)
	}
}

// trip records the breach, commands the safe state and flags the
// abort. The watchdog stays alive to re-issue the safe state.
func (m *Monitor) trip(state AlarmState, line string, value float64) {
	m.mu.Lock()
	m.state = state
	m.alarm = &Alarm{State: state, Line: line, Value: value, Time: time.Now()}
	m.mu.Unlock()

	m.logger.Error().
		Stringer("alarm", state).
		Str("line", line).
		Float64("pressure", value).
		Msg("PRESSURE ALARM, zeroing flows and commanding temperature safe state")

	m.issueSafeState()

	m.aborted.Store(true)
	m.mu.Lock()
	m.state = Aborted
	m.mu.Unlock()
}

// issueSafeState zeroes the flows and commands the temperature
// setback. Failures are logged and retried on the next interval.
func (m *Monitor) issueSafeState() {
	if err := m.flows.ZeroAll(); err != nil {
		m.logger.Error().Err(err).Msg("flow zeroing failed")
	}
	if m.temp != nil {
		if err := m.temp.SafeShutdown(); err != nil {
			m.logger.Error().Err(err).Msg("temperature safe state failed")
		}
	}
}
