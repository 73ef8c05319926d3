// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package energymon

import (
	"errors"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingBackend records how often each entry point is called
type countingBackend struct {
	getCode    int
	initCode   int
	finishCode int
	energy     uint64
	noInit     bool

	gets, inits, reads, finishes int
}

func (b *countingBackend) Get(t *Table) int {
	b.gets++
	if b.getCode != 0 {
		return b.getCode
	}
	*t = Table{
		ReadTotal: func() uint64 {
			b.reads++
			return b.energy
		},
		Finish: func() int {
			b.finishes++
			return b.finishCode
		},
		Source: func(buf []byte) bool {
			return WriteSource(buf, "counting")
		},
		Interval:  func() uint64 { return 1000 },
		Precision: func() uint64 { return 10 },
		Exclusive: func() int { return 1 },
	}
	if !b.noInit {
		t.Init = func() int {
			b.inits++
			return b.initCode
		}
	}
	return 0
}

func TestNew(t *testing.T) {
	b := &countingBackend{energy: 1234}
	m, err := New(b.Get)
	require.NoError(t, err)
	require.NotNil(t, m)

	assert.Equal(t, Active, m.State())
	assert.Equal(t, 1, b.gets)
	assert.Equal(t, 1, b.inits)
	assert.Equal(t, 0, b.finishes)

	e, err := m.ReadTotal()
	require.NoError(t, err)
	assert.Equal(t, Energy(1234), e)
	assert.Equal(t, "counting", m.Source())
	assert.Equal(t, uint64(1000), m.Interval())
	assert.Equal(t, Energy(10), m.Precision())
	assert.True(t, m.Exclusive())

	require.NoError(t, m.Close())
	assert.Equal(t, Finalized, m.State())
	assert.Equal(t, 1, b.finishes)
}

func TestNew_DiscoveryFailure(t *testing.T) {
	b := &countingBackend{getCode: 7}
	m, err := New(b.Get)
	assert.Nil(t, m)

	var acqErr ErrAcquisitionFailed
	require.ErrorAs(t, err, &acqErr)
	assert.Equal(t, 7, acqErr.Code)
	assert.Equal(t, 0, b.inits)
	assert.Equal(t, 0, b.finishes)
}

func TestNew_InitFailure(t *testing.T) {
	b := &countingBackend{initCode: -3}
	m, err := New(b.Get)
	assert.Nil(t, m)

	var initErr ErrInitializationFailed
	require.ErrorAs(t, err, &initErr)
	assert.Equal(t, -3, initErr.Code)
	assert.Equal(t, 1, b.inits)
	assert.Equal(t, 0, b.finishes, "finish must not run after a failed init")
}

func TestNew_WithoutInit(t *testing.T) {
	b := &countingBackend{noInit: true}
	m, err := New(b.Get)
	require.NoError(t, err)
	assert.Equal(t, Active, m.State())

	require.NoError(t, m.Close())
	assert.Equal(t, 1, b.finishes)
}

func TestClose_Idempotent(t *testing.T) {
	b := &countingBackend{}
	m, err := New(b.Get)
	require.NoError(t, err)

	for range 3 {
		assert.NoError(t, m.Close())
	}
	assert.Equal(t, 1, b.finishes)

	var nilMonitor *Monitor
	assert.NoError(t, nilMonitor.Close())
}

func TestClose_FinishFailure(t *testing.T) {
	b := &countingBackend{finishCode: 5}
	m, err := New(b.Get)
	require.NoError(t, err)

	err = m.Close()
	var finErr ErrFinalizationFailed
	require.ErrorAs(t, err, &finErr)
	assert.Equal(t, 5, finErr.Code)
	assert.Equal(t, Finalized, m.State())

	assert.NoError(t, m.Close())
	assert.Equal(t, 1, b.finishes)
}

func TestClosedMonitor(t *testing.T) {
	b := &countingBackend{energy: 99}
	m, err := New(b.Get)
	require.NoError(t, err)
	require.NoError(t, m.Close())

	_, err = m.ReadTotal()
	assert.ErrorAs(t, err, &ErrClosed{})
	assert.Equal(t, 0, b.reads)
	assert.Equal(t, UnknownSource, m.Source())
	assert.Zero(t, m.Interval())
	assert.Zero(t, m.Precision())
	assert.False(t, m.Exclusive())
}

func TestMissingEntryPoints(t *testing.T) {
	finishes := 0
	get := func(t *Table) int {
		*t = Table{Finish: func() int { finishes++; return 0 }}
		return 0
	}

	m, err := New(get)
	require.NoError(t, err)

	_, err = m.ReadTotal()
	var unsupported ErrUnsupportedOperation
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "read_total_energy", unsupported.Op)

	assert.Equal(t, UnknownSource, m.Source())
	assert.Zero(t, m.Interval())
	assert.Zero(t, m.Precision())
	assert.False(t, m.Exclusive())

	require.NoError(t, m.Close())
	assert.Equal(t, 1, finishes)
}

func TestDummy(t *testing.T) {
	m := NewDummy()
	defer func() { assert.NoError(t, m.Close()) }()

	e, err := m.ReadTotal()
	require.NoError(t, err)
	assert.Zero(t, e)
	assert.Equal(t, UnknownSource, m.Source())
	assert.Equal(t, DummyInterval, m.Interval())
	assert.Equal(t, Energy(DummyPrecision), m.Precision())
	assert.False(t, m.Exclusive())
}

func TestUse(t *testing.T) {
	fnErr := errors.New("fn failed")

	tt := []struct {
		name       string
		finishCode int
		fnErr      error
		check      func(t *testing.T, err error)
	}{{
		name:  "success",
		check: func(t *testing.T, err error) { assert.NoError(t, err) },
	}, {
		name:  "fn error",
		fnErr: fnErr,
		check: func(t *testing.T, err error) {
			assert.ErrorIs(t, err, fnErr)
			assert.False(t, errors.As(err, &ErrFinalizationFailed{}))
		},
	}, {
		name:       "close error",
		finishCode: 4,
		check: func(t *testing.T, err error) {
			assert.ErrorAs(t, err, &ErrFinalizationFailed{})
		},
	}, {
		name:       "both fail",
		finishCode: 4,
		fnErr:      fnErr,
		check: func(t *testing.T, err error) {
			assert.ErrorIs(t, err, fnErr)
			assert.ErrorAs(t, err, &ErrFinalizationFailed{})
		},
	}}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			b := &countingBackend{energy: 5, finishCode: tc.finishCode}
			called := false
			err := Use(b.Get, func(m *Monitor) error {
				called = true
				e, err := m.ReadTotal()
				assert.NoError(t, err)
				assert.Equal(t, Energy(5), e)
				return tc.fnErr
			})
			tc.check(t, err)
			assert.True(t, called)
			assert.Equal(t, 1, b.finishes)
		})
	}
}

func TestUse_ConstructionFailure(t *testing.T) {
	b := &countingBackend{getCode: 1}
	called := false
	err := Use(b.Get, func(*Monitor) error {
		called = true
		return nil
	})
	assert.ErrorAs(t, err, &ErrAcquisitionFailed{})
	assert.False(t, called)
	assert.Equal(t, 0, b.finishes)
}

func TestFinalize(t *testing.T) {
	b := &countingBackend{}
	m, err := New(b.Get)
	require.NoError(t, err)

	m.finalize()
	assert.Equal(t, Finalized, m.State())
	assert.Equal(t, 1, b.finishes)

	// an explicit close after the safety net is a no-op
	assert.NoError(t, m.Close())
	m.finalize()
	assert.Equal(t, 1, b.finishes)
}

// readUnreferenced reads a monitor that nothing references after the call
func readUnreferenced(get GetFunc) (Energy, error) {
	m, err := New(get)
	if err != nil {
		return 0, err
	}
	return m.ReadTotal()
}

func TestReadTotal_MonitorOutlivesNativeCall(t *testing.T) {
	var finishedDuringRead, reading atomic.Bool
	get := func(tbl *Table) int {
		*tbl = Table{
			ReadTotal: func() uint64 {
				reading.Store(true)
				defer reading.Store(false)
				for range 5 {
					runtime.GC()
					time.Sleep(time.Millisecond)
				}
				return 42
			},
			Finish: func() int {
				if reading.Load() {
					finishedDuringRead.Store(true)
				}
				return 0
			},
		}
		return 0
	}

	e, err := readUnreferenced(get)
	require.NoError(t, err)
	assert.Equal(t, Energy(42), e)
	assert.False(t, finishedDuringRead.Load(), "monitor finalized while its read was running")
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "unconstructed", Unconstructed.String())
	assert.Equal(t, "active", Active.String())
	assert.Equal(t, "finalized", Finalized.String())
	assert.Equal(t, "invalid", State(42).String())
}
