// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package energymon

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEnergyConversions(t *testing.T) {
	e := 2500 * MilliJoule
	assert.Equal(t, uint64(2_500_000), e.MicroJoules())
	assert.Equal(t, 2500.0, e.MilliJoules())
	assert.Equal(t, 2.5, e.Joules())
	assert.Equal(t, "2.50J", e.String())
}

func TestPowerConversions(t *testing.T) {
	p := 1500 * MilliWatt
	assert.Equal(t, 1_500_000.0, p.MicroWatts())
	assert.Equal(t, 1500.0, p.MilliWatts())
	assert.Equal(t, 1.5, p.Watts())
	assert.Equal(t, "1.50W", p.String())
}

func TestPowerFrom(t *testing.T) {
	tt := []struct {
		name  string
		delta Energy
		d     time.Duration
		want  Power
	}{
		{"one watt", Joule, time.Second, Watt},
		{"half second", Joule, 500 * time.Millisecond, 2 * Watt},
		{"no energy", 0, time.Second, 0},
		{"zero duration", Joule, 0, 0},
		{"negative duration", Joule, -time.Second, 0},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want.MicroWatts(), PowerFrom(tc.delta, tc.d).MicroWatts(), 1e-6)
		})
	}
}
