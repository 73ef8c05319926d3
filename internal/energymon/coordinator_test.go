// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package energymon

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// lockedBackend is a countingBackend safe for concurrent use
type lockedBackend struct {
	mu       sync.Mutex
	getCode  int
	energy   uint64
	gets     atomic.Int32
	inits    atomic.Int32
	finishes atomic.Int32
}

func (b *lockedBackend) Get(t *Table) int {
	b.gets.Add(1)
	if b.getCode != 0 {
		return b.getCode
	}
	*t = Table{
		Init: func() int {
			b.inits.Add(1)
			return 0
		},
		ReadTotal: func() uint64 {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.energy++
			return b.energy
		},
		Finish: func() int {
			b.finishes.Add(1)
			return 0
		},
		Source: func(buf []byte) bool {
			return WriteSource(buf, "locked")
		},
	}
	return 0
}

func TestCoordinator_ConcurrentInstance(t *testing.T) {
	b := &lockedBackend{}
	c := NewCoordinator(b.Get)

	const holders = 32
	instances := make([]*Shared, holders)

	var g errgroup.Group
	for i := range holders {
		g.Go(func() error {
			s, err := c.Instance()
			if err != nil {
				return err
			}
			instances[i] = s
			_, err = s.Read()
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), b.gets.Load(), "discovery runs once")
	assert.Equal(t, int32(1), b.inits.Load())
	for _, s := range instances {
		assert.Same(t, instances[0], s)
	}
	assert.Equal(t, "locked", instances[0].Source())
	assert.Equal(t, int32(0), b.finishes.Load())
}

func TestCoordinator_FailureIsPermanent(t *testing.T) {
	b := &lockedBackend{getCode: 3}
	c := NewCoordinator(b.Get)

	for range 3 {
		s, err := c.Instance()
		assert.Nil(t, s)

		var unavailable ErrInstanceUnavailable
		require.ErrorAs(t, err, &unavailable)

		var acqErr ErrAcquisitionFailed
		require.ErrorAs(t, err, &acqErr)
		assert.Equal(t, 3, acqErr.Code)
	}
	assert.Equal(t, int32(1), b.gets.Load(), "discovery is never retried")
	assert.Equal(t, int32(0), b.finishes.Load())
}

func TestShared_Destroy(t *testing.T) {
	b := &lockedBackend{}
	c := NewCoordinator(b.Get)

	s, err := c.Instance()
	require.NoError(t, err)

	e, err := s.Read()
	require.NoError(t, err)
	assert.Equal(t, Energy(1), e)

	var g errgroup.Group
	for range 8 {
		g.Go(s.Destroy)
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(1), b.finishes.Load(), "finish runs exactly once")

	_, err = s.Read()
	assert.ErrorAs(t, err, &ErrClosed{})
	assert.Equal(t, UnknownSource, s.Source())
	assert.Zero(t, s.Interval())
	assert.Zero(t, s.Precision())
	assert.False(t, s.Exclusive())

	// the coordinator keeps handing out the destroyed instance
	again, err := c.Instance()
	require.NoError(t, err)
	assert.Same(t, s, again)
	assert.Equal(t, int32(1), b.gets.Load())
}

func TestShared_Metadata(t *testing.T) {
	c := NewCoordinator(GetDummy)
	s, err := c.Instance()
	require.NoError(t, err)
	defer func() { assert.NoError(t, s.Destroy()) }()

	assert.Equal(t, UnknownSource, s.Source())
	assert.Equal(t, DummyInterval, s.Interval())
	assert.Equal(t, Energy(DummyPrecision), s.Precision())
	assert.False(t, s.Exclusive())
}
