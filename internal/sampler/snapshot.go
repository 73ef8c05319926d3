// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package sampler

import (
	"time"

	"github.com/sustainable-computing-io/energymon/internal/energymon"
)

// Snapshot is one sample of the shared energy monitor
type Snapshot struct {
	Timestamp time.Time

	// Reading is the raw cumulative value reported by the backend
	Reading energymon.Energy

	// EnergyTotal is monotonic for the lifetime of the Sampler, even when
	// the backend's counter goes backwards
	EnergyTotal energymon.Energy

	// Power is the average power since the previous sample
	Power energymon.Power

	// Resets counts how often the backend's counter went backwards
	Resets uint64
}

// Clone returns a copy of the snapshot
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// Info describes the backend of the shared energy monitor. It does not
// change for the lifetime of the monitor.
type Info struct {
	Source    string
	Interval  time.Duration
	Precision energymon.Energy
	Exclusive bool
}
