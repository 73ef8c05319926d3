// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package energymon

import (
	"errors"
	"log/slog"
	"runtime"
)

// State is the lifecycle state of a Monitor
type State int

const (
	Unconstructed State = iota
	Active
	Finalized
)

func (s State) String() string {
	switch s {
	case Unconstructed:
		return "unconstructed"
	case Active:
		return "active"
	case Finalized:
		return "finalized"
	default:
		return "invalid"
	}
}

// Monitor owns exactly one native energy monitor. It is created Active by
// New and must be released with Close once it is no longer needed; a
// finalizer is installed as a safety net, but relying on it delays the
// native cleanup until the next garbage collection.
//
// Monitor does not synchronize access to the native backend. A Monitor has
// a single owner; use a Coordinator to share one between goroutines.
type Monitor struct {
	logger *slog.Logger
	table  Table
	state  State
}

type Opts struct {
	logger *slog.Logger
}

// DefaultOpts returns the default options
func DefaultOpts() Opts {
	return Opts{
		logger: slog.Default(),
	}
}

// OptionFn is a function sets one or more options in Opts struct
type OptionFn func(*Opts)

// WithLogger sets the logger used by the Monitor
func WithLogger(logger *slog.Logger) OptionFn {
	return func(o *Opts) {
		o.logger = logger
	}
}

// New discovers a native monitor through get and initializes it.
//
// A failing discovery returns ErrAcquisitionFailed and a failing init entry
// point returns ErrInitializationFailed; in neither case is the finish entry
// point called. A backend without an init entry point needs no
// initialization.
func New(get GetFunc, applyOpts ...OptionFn) (*Monitor, error) {
	m, err := newMonitor(get, applyOpts...)
	if err != nil {
		return nil, err
	}
	runtime.SetFinalizer(m, (*Monitor).finalize)
	return m, nil
}

// NewDummy returns an Active Monitor bound to DummyTable.
func NewDummy(applyOpts ...OptionFn) *Monitor {
	m, err := New(GetDummy, applyOpts...)
	if err != nil {
		// DummyTable can neither fail discovery nor init
		panic(err)
	}
	return m
}

func newMonitor(get GetFunc, applyOpts ...OptionFn) (*Monitor, error) {
	opts := DefaultOpts()
	for _, apply := range applyOpts {
		apply(&opts)
	}

	m := &Monitor{
		logger: opts.logger.With("service", "energymon"),
		state:  Unconstructed,
	}

	if code := get(&m.table); code != 0 {
		m.logger.Debug("energy monitor discovery failed", "status", code)
		return nil, ErrAcquisitionFailed{Code: code}
	}

	if m.table.Init != nil {
		if code := m.table.Init(); code != 0 {
			m.logger.Debug("energy monitor init failed", "status", code)
			return nil, ErrInitializationFailed{Code: code}
		}
	}

	m.state = Active
	m.logger.Debug("energy monitor initialized")
	return m, nil
}

// Use creates a Monitor through get, passes it to fn and closes it
// afterwards, whatever fn returns.
func Use(get GetFunc, fn func(*Monitor) error, applyOpts ...OptionFn) error {
	m, err := New(get, applyOpts...)
	if err != nil {
		return err
	}

	fnErr := fn(m)
	closeErr := m.Close()
	if fnErr != nil && closeErr != nil {
		return errors.Join(fnErr, closeErr)
	}
	if fnErr != nil {
		return fnErr
	}
	return closeErr
}

// State returns the lifecycle state of the monitor
func (m *Monitor) State() State {
	return m.state
}

// ReadTotal returns the cumulative energy reported by the backend
func (m *Monitor) ReadTotal() (Energy, error) {
	// m must outlive the native call; its finalizer releases the native state
	defer runtime.KeepAlive(m)
	if m.state != Active {
		return 0, ErrClosed{}
	}
	if m.table.ReadTotal == nil {
		return 0, ErrUnsupportedOperation{Op: "read_total_energy"}
	}
	return Energy(m.table.ReadTotal()), nil
}

// Source returns a human readable name of the backend, or UnknownSource
func (m *Monitor) Source() string {
	defer runtime.KeepAlive(m)
	if m.state != Active {
		return UnknownSource
	}
	return describeSource(m.table.Source)
}

// Interval returns the backend refresh interval in microseconds; 0 if the
// backend does not report one.
func (m *Monitor) Interval() uint64 {
	defer runtime.KeepAlive(m)
	if m.state != Active || m.table.Interval == nil {
		return 0
	}
	return m.table.Interval()
}

// Precision returns the precision of a reading; 0 if the backend does not
// report one.
func (m *Monitor) Precision() Energy {
	defer runtime.KeepAlive(m)
	if m.state != Active || m.table.Precision == nil {
		return 0
	}
	return Energy(m.table.Precision())
}

// Exclusive reports whether the backend requires exclusive access to its
// sensor; false if the backend does not say.
func (m *Monitor) Exclusive() bool {
	defer runtime.KeepAlive(m)
	if m.state != Active || m.table.Exclusive == nil {
		return false
	}
	return m.table.Exclusive() != 0
}

// Close finalizes the native monitor. Only the first call on an Active
// monitor reaches the backend; every other call is a no-op.
func (m *Monitor) Close() error {
	if m == nil || m.state != Active {
		return nil
	}
	runtime.SetFinalizer(m, nil)
	return m.finish()
}

func (m *Monitor) finish() error {
	m.state = Finalized
	if m.table.Finish == nil {
		return nil
	}

	if code := m.table.Finish(); code != 0 {
		m.logger.Warn("energy monitor finalization failed", "status", code)
		return ErrFinalizationFailed{Code: code}
	}
	m.logger.Debug("energy monitor finalized")
	return nil
}

func (m *Monitor) finalize() {
	if m.state != Active {
		return
	}
	m.logger.Warn("energy monitor was not closed; finalizing")
	_ = m.finish()
}
