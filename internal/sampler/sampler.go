// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

// Package sampler periodically reads the shared energy monitor and keeps
// the latest sample for exporters.
package sampler

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/sustainable-computing-io/energymon/internal/energymon"
	"github.com/sustainable-computing-io/energymon/internal/service"
	"golang.org/x/sync/singleflight"
	"k8s.io/utils/clock"
)

// Monitor is the part of energymon.Shared the sampler reads
type Monitor interface {
	Read() (energymon.Energy, error)
	Source() string
	Interval() uint64
	Precision() energymon.Energy
	Exclusive() bool
}

var _ Monitor = (*energymon.Shared)(nil)

// DataProvider gives access to the latest sample
type DataProvider interface {
	// Snapshot returns the latest sample, taking a new one if it is stale
	Snapshot() (*Snapshot, error)

	// Info describes the sampled backend
	Info() Info

	// DataChannel signals when a new sample is available
	DataChannel() <-chan struct{}
}

// Sampler reads a Monitor periodically and on demand
type Sampler struct {
	logger  *slog.Logger
	monitor Monitor

	interval     time.Duration
	clock        clock.WithTicker
	maxStaleness time.Duration

	info     Info
	dataCh   chan struct{}
	refresh  singleflight.Group
	snapshot atomic.Pointer[Snapshot]

	collectionCtx    context.Context
	collectionCancel context.CancelFunc
}

var (
	_ service.Initializer  = (*Sampler)(nil)
	_ service.Runner       = (*Sampler)(nil)
	_ service.Shutdowner   = (*Sampler)(nil)
	_ service.LiveChecker  = (*Sampler)(nil)
	_ service.ReadyChecker = (*Sampler)(nil)
	_ DataProvider         = (*Sampler)(nil)
)

// NewSampler creates a new Sampler reading m
func NewSampler(m Monitor, applyOpts ...OptionFn) *Sampler {
	opts := DefaultOpts()
	for _, apply := range applyOpts {
		apply(&opts)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Sampler{
		logger:           opts.logger.With("service", "sampler"),
		monitor:          m,
		interval:         opts.interval,
		clock:            opts.clock,
		maxStaleness:     opts.maxStaleness,
		dataCh:           make(chan struct{}, 1),
		collectionCtx:    ctx,
		collectionCancel: cancel,
	}
}

func (s *Sampler) Name() string {
	return "sampler"
}

// Init caches the backend description and takes the first sample
func (s *Sampler) Init() error {
	s.info = Info{
		Source:    s.monitor.Source(),
		Interval:  time.Duration(s.monitor.Interval()) * time.Microsecond,
		Precision: s.monitor.Precision(),
		Exclusive: s.monitor.Exclusive(),
	}
	s.logger.Info("Sampling energy monitor",
		"source", s.info.Source,
		"refresh", s.info.Interval,
		"precision", s.info.Precision,
		"exclusive", s.info.Exclusive,
		"interval", s.interval)

	if err := s.synchronizedRefresh(); err != nil {
		return fmt.Errorf("initial sample failed: %w", err)
	}
	return nil
}

// Run samples the monitor every interval until ctx is done or the sampler
// is shut down. Samples are taken on the calling goroutine, so no read of
// the monitor is in flight once Run returns.
func (s *Sampler) Run(ctx context.Context) error {
	s.logger.Info("Sampler is running...")
	defer s.logger.Info("Sampler has terminated.")
	defer s.collectionCancel()

	if s.interval <= 0 {
		select {
		case <-ctx.Done():
		case <-s.collectionCtx.Done():
		}
		return nil
	}

	for {
		select {
		case <-s.clock.After(s.interval):
			if err := s.synchronizedRefresh(); err != nil {
				s.logger.Error("Failed to sample energy monitor", "error", err)
			}

		case <-ctx.Done():
			return nil

		case <-s.collectionCtx.Done():
			s.logger.Debug("Sampling loop terminated")
			return nil
		}
	}
}

func (s *Sampler) Shutdown() error {
	s.logger.Info("shutting down sampler")
	s.collectionCancel()
	return nil
}

// IsLive reports whether the sampler has not been shut down
func (s *Sampler) IsLive() bool {
	return s.collectionCtx.Err() == nil
}

// IsReady reports whether a sample has been taken
func (s *Sampler) IsReady() bool {
	return s.snapshot.Load() != nil
}

func (s *Sampler) Info() Info {
	return s.info
}

func (s *Sampler) DataChannel() <-chan struct{} {
	return s.dataCh
}

func (s *Sampler) Snapshot() (*Snapshot, error) {
	if !s.isFresh() {
		if err := s.synchronizedRefresh(); err != nil {
			return nil, err
		}
	}

	snapshot := s.snapshot.Load()
	if snapshot == nil {
		return nil, fmt.Errorf("no energy sample available")
	}
	return snapshot.Clone(), nil
}

// synchronizedRefresh takes a new sample unless one is already being taken
func (s *Sampler) synchronizedRefresh() error {
	_, err, _ := s.refresh.Do("sample", func() (any, error) {
		// callers that waited on an in-flight sample see it as fresh
		if s.isFresh() {
			return nil, nil
		}
		return nil, s.takeSample()
	})
	return err
}

func (s *Sampler) isFresh() bool {
	snapshot := s.snapshot.Load()
	if snapshot == nil || snapshot.Timestamp.IsZero() {
		return false
	}
	return s.clock.Since(snapshot.Timestamp) <= s.maxStaleness
}

func (s *Sampler) takeSample() error {
	reading, err := s.monitor.Read()
	if err != nil {
		return fmt.Errorf("failed to read energy monitor: %w", err)
	}

	now := s.clock.Now()
	next := &Snapshot{Timestamp: now, Reading: reading, EnergyTotal: reading}

	if prev := s.snapshot.Load(); prev != nil {
		delta := reading - prev.Reading
		next.Resets = prev.Resets
		if reading < prev.Reading {
			// the backend restarted its counter; count it from zero
			s.logger.Warn("Energy counter went backwards", "previous", prev.Reading, "current", reading)
			delta = reading
			next.Resets++
		}
		next.EnergyTotal = prev.EnergyTotal + delta
		next.Power = energymon.PowerFrom(delta, now.Sub(prev.Timestamp))
	}

	s.snapshot.Store(next)
	s.signalNewData()
	s.logger.Debug("Sampled energy monitor", "energy", next.EnergyTotal, "power", next.Power)
	return nil
}

func (s *Sampler) signalNewData() {
	select {
	case s.dataCh <- struct{}{}:
	default:
	}
}
