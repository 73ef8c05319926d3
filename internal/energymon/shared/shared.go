// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

// Package shared holds the process-wide energy monitor.
package shared

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/sustainable-computing-io/energymon/internal/backend/native"
	"github.com/sustainable-computing-io/energymon/internal/energymon"
)

// ErrAlreadyConstructed is returned by Use once the process-wide monitor has
// been requested
var ErrAlreadyConstructed = errors.New("process-wide energy monitor already requested")

var (
	mu      sync.Mutex
	get     energymon.GetFunc = native.Get
	logger  *slog.Logger
	coord   *energymon.Coordinator
	created bool
)

// Use selects the discovery function and logger for the process-wide
// monitor. It must be called before the first Instance.
func Use(fn energymon.GetFunc, l *slog.Logger) error {
	mu.Lock()
	defer mu.Unlock()

	if created {
		return ErrAlreadyConstructed
	}
	get = fn
	logger = l
	return nil
}

func coordinator() *energymon.Coordinator {
	mu.Lock()
	defer mu.Unlock()

	if !created {
		var opts []energymon.OptionFn
		if logger != nil {
			opts = append(opts, energymon.WithLogger(logger))
		}
		coord = energymon.NewCoordinator(get, opts...)
		created = true
	}
	return coord
}

// Instance returns the process-wide monitor, constructing it on first use.
// A failed construction is permanent for the lifetime of the process.
func Instance() (*energymon.Shared, error) {
	return coordinator().Instance()
}

// Destroy finalizes the process-wide monitor if it was constructed
// successfully. It does not construct a monitor that was never requested.
func Destroy() error {
	mu.Lock()
	c := coord
	mu.Unlock()

	if c == nil {
		return nil
	}
	s, err := c.Instance()
	if err != nil {
		return nil
	}
	return s.Destroy()
}
