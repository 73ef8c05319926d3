// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"log/slog"
	"math/rand"
	"sync"

	"github.com/sustainable-computing-io/energymon/internal/energymon"
)

// NOTE: the fake meter is not intended to be used in production and is for
// development and testing only

const (
	fakeSource   = "Fake energy meter"
	fakeInterval = 1000 // µs
)

// FakeMeter is a synthetic energy counter. Every read advances the counter
// by a fixed increment plus a random component.
type FakeMeter struct {
	logger *slog.Logger

	mu           sync.Mutex
	energy       energymon.Energy
	increment    energymon.Energy
	randomFactor float64
	running      bool
}

// FakeOptFn is a functional option for configuring FakeMeter
type FakeOptFn func(*FakeMeter)

// WithFakeIncrement sets the energy added on every read
func WithFakeIncrement(e energymon.Energy) FakeOptFn {
	return func(m *FakeMeter) {
		m.increment = e
	}
}

// WithFakeRandomFactor sets the share of the increment that is randomized;
// 0 makes the meter deterministic
func WithFakeRandomFactor(f float64) FakeOptFn {
	return func(m *FakeMeter) {
		m.randomFactor = f
	}
}

// WithFakeLogger sets the logger for the fake meter
func WithFakeLogger(l *slog.Logger) FakeOptFn {
	return func(m *FakeMeter) {
		m.logger = l.With("meter", "fake")
	}
}

// NewFakeMeter creates a new fake energy meter
func NewFakeMeter(opts ...FakeOptFn) *FakeMeter {
	m := &FakeMeter{
		logger:       slog.Default().With("meter", "fake"),
		increment:    100 * energymon.MilliJoule,
		randomFactor: 0.5,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get binds t to the fake meter
func (m *FakeMeter) Get(t *energymon.Table) int {
	*t = energymon.Table{
		Init:      m.init,
		ReadTotal: m.read,
		Finish:    m.finish,
		Source: func(buf []byte) bool {
			return energymon.WriteSource(buf, fakeSource)
		},
		Interval:  func() uint64 { return fakeInterval },
		Precision: func() uint64 { return 1 },
	}
	return 0
}

func (m *FakeMeter) init() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.energy = 0
	m.running = true
	m.logger.Debug("fake meter started", "increment", m.increment)
	return 0
}

func (m *FakeMeter) read() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return uint64(m.energy)
	}
	randomComponent := energymon.Energy(rand.Float64() * float64(m.increment) * m.randomFactor)
	m.energy += m.increment + randomComponent
	return uint64(m.energy)
}

func (m *FakeMeter) finish() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.running = false
	m.logger.Debug("fake meter stopped", "energy", m.energy)
	return 0
}

// Running reports whether the meter is between init and finish
func (m *FakeMeter) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}
