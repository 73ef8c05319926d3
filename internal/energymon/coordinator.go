// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package energymon

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// Coordinator lazily constructs one Monitor and hands it out, wrapped in a
// Shared, to every caller of Instance.
//
// Construction is attempted exactly once. If it fails, the failure is
// remembered and every later call to Instance reports it; discovery is
// never retried.
type Coordinator struct {
	get    GetFunc
	opts   []OptionFn
	logger *slog.Logger

	once   sync.Once
	shared *Shared
	err    error
}

// NewCoordinator returns a Coordinator that constructs its Monitor through get
func NewCoordinator(get GetFunc, applyOpts ...OptionFn) *Coordinator {
	opts := DefaultOpts()
	for _, apply := range applyOpts {
		apply(&opts)
	}

	return &Coordinator{
		get:    get,
		opts:   applyOpts,
		logger: opts.logger.With("service", "energymon-coordinator"),
	}
}

// Instance returns the shared monitor, constructing it on the first call.
// Callers racing the first call wait for its construction to complete.
func (c *Coordinator) Instance() (*Shared, error) {
	c.once.Do(c.construct)

	if c.err != nil {
		return nil, ErrInstanceUnavailable{Cause: c.err}
	}
	return c.shared, nil
}

func (c *Coordinator) construct() {
	c.logger.Info("Initializing shared energy monitor")

	// no finalizer: holders going away must never finalize the monitor
	m, err := newMonitor(c.get, c.opts...)
	if err != nil {
		c.logger.Error("Failed to initialize shared energy monitor", "error", err)
		c.err = err
		return
	}

	c.shared = &Shared{monitor: m, logger: c.logger}
	c.logger.Info("Shared energy monitor initialized", "source", m.Source())
}

// Shared is a Monitor that is safe to hand out to any number of holders.
// Holders may query it concurrently; the monitor is only finalized by an
// explicit call to Destroy.
type Shared struct {
	logger    *slog.Logger
	monitor   *Monitor
	destroyed atomic.Bool
}

// Read returns the cumulative energy reported by the backend
func (s *Shared) Read() (Energy, error) {
	if s.destroyed.Load() {
		return 0, ErrClosed{}
	}
	return s.monitor.ReadTotal()
}

// Source returns a human readable name of the backend
func (s *Shared) Source() string {
	if s.destroyed.Load() {
		return UnknownSource
	}
	return s.monitor.Source()
}

// Interval returns the backend refresh interval in microseconds
func (s *Shared) Interval() uint64 {
	if s.destroyed.Load() {
		return 0
	}
	return s.monitor.Interval()
}

// Precision returns the precision of a reading
func (s *Shared) Precision() Energy {
	if s.destroyed.Load() {
		return 0
	}
	return s.monitor.Precision()
}

// Exclusive reports whether the backend requires exclusive sensor access
func (s *Shared) Exclusive() bool {
	if s.destroyed.Load() {
		return false
	}
	return s.monitor.Exclusive()
}

// Destroy finalizes the shared monitor for every holder. Only the first
// call reaches the backend.
//
// Destroy must not race with queries still in flight on other goroutines;
// ordering it after them, e.g. during process shutdown, is up to the caller.
// Queries issued after Destroy returns report ErrClosed or their defaults.
func (s *Shared) Destroy() error {
	if !s.destroyed.CompareAndSwap(false, true) {
		return nil
	}
	s.logger.Info("Finishing shared energy monitor")
	return s.monitor.Close()
}
