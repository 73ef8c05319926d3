// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

// Package nvidia implements an energy monitor backend that sums the energy
// counters of NVIDIA GPUs read through NVML.
package nvidia

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
	"github.com/sustainable-computing-io/energymon/config"
	"github.com/sustainable-computing-io/energymon/internal/backend"
	"github.com/sustainable-computing-io/energymon/internal/energymon"
)

// StatusNoDevices is returned by init when NVML reports no usable GPU
const StatusNoDevices = 1000

// NVML reports energy in millijoules
const precision = energymon.MilliJoule

// Meter binds the GPUs visible to NVML to an energymon.Table
type Meter struct {
	logger  *slog.Logger
	lib     nvmlLib
	devices []int
}

type OptionFn func(*Meter)

// WithLogger sets the logger for the meter
func WithLogger(logger *slog.Logger) OptionFn {
	return func(m *Meter) {
		m.logger = logger.With("meter", "nvml")
	}
}

// WithDevices restricts the meter to the GPUs at the given NVML indices
func WithDevices(indices []int) OptionFn {
	return func(m *Meter) {
		m.devices = indices
	}
}

func withLib(lib nvmlLib) OptionFn {
	return func(m *Meter) {
		m.lib = lib
	}
}

// NewMeter creates a new NVML meter
func NewMeter(opts ...OptionFn) *Meter {
	m := &Meter{
		logger: slog.Default().With("meter", "nvml"),
		lib:    newRealNvmlLib(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func init() {
	backend.Register(config.BackendNvidia, func(cfg *config.Config, logger *slog.Logger) (energymon.GetFunc, error) {
		return NewMeter(WithLogger(logger), WithDevices(cfg.Nvidia.Devices)).Get, nil
	})
}

// Get binds t to a fresh GPU state. NVML is only loaded by the table's init
// entry point.
func (m *Meter) Get(t *energymon.Table) int {
	g := &gpus{logger: m.logger, lib: m.lib, wanted: m.devices}
	*t = energymon.Table{
		Init:      g.init,
		ReadTotal: g.read,
		Finish:    g.finish,
		Source:    g.source,
		Precision: func() uint64 { return uint64(precision) },
	}
	return 0
}

type gpu struct {
	index  int
	name   string
	handle nvmlDeviceHandle

	// last is the counter value at the previous successful read
	last energymon.Energy
	seen bool
}

type gpus struct {
	logger *slog.Logger
	lib    nvmlLib
	wanted []int

	mu      sync.Mutex
	devices []gpu
	total   energymon.Energy
}

func (g *gpus) init() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	if ret := g.lib.Init(); ret != nvml.SUCCESS {
		g.logger.Debug("NVML init failed", "error", g.lib.ErrorString(ret))
		return int(ret)
	}

	count, ret := g.lib.DeviceGetCount()
	if ret != nvml.SUCCESS {
		g.logger.Debug("failed to get device count", "error", g.lib.ErrorString(ret))
		_ = g.lib.Shutdown()
		return int(ret)
	}

	g.total = 0
	g.devices = make([]gpu, 0, count)
	for i := 0; i < count; i++ {
		if !g.isWanted(i) {
			continue
		}
		handle, ret := g.lib.DeviceGetHandleByIndex(i)
		if ret != nvml.SUCCESS {
			g.logger.Warn("failed to get device handle", "index", i, "error", g.lib.ErrorString(ret))
			continue
		}

		name, ret := handle.GetName()
		if ret != nvml.SUCCESS {
			name = "Unknown NVIDIA GPU"
		}
		g.devices = append(g.devices, gpu{index: i, name: name, handle: handle})
		g.logger.Info("discovered GPU", "index", i, "name", name)
	}

	if len(g.devices) == 0 {
		_ = g.lib.Shutdown()
		return StatusNoDevices
	}

	g.logger.Info("NVML initialized", "device_count", len(g.devices))
	return 0
}

func (g *gpus) isWanted(index int) bool {
	if len(g.wanted) == 0 {
		return true
	}
	for _, w := range g.wanted {
		if w == index {
			return true
		}
	}
	return false
}

// read accumulates the energy counters of all GPUs into a monotonic total.
// A GPU whose counter cannot be read adds nothing to this reading and is
// caught up on its next successful read.
func (g *gpus) read() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	for i := range g.devices {
		d := &g.devices[i]
		mj, ret := d.handle.GetTotalEnergyConsumption()
		if ret != nvml.SUCCESS {
			g.logger.Debug("failed to get total energy", "index", d.index, "error", g.lib.ErrorString(ret))
			continue
		}

		current := energymon.Energy(mj) * energymon.MilliJoule
		switch {
		case !d.seen:
			g.total += current
		case current >= d.last:
			g.total += current - d.last
		default:
			// driver reloaded; the counter restarted from zero
			g.total += current
		}
		d.last = current
		d.seen = true
	}
	return uint64(g.total)
}

func (g *gpus) finish() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.devices = nil
	if ret := g.lib.Shutdown(); ret != nvml.SUCCESS {
		g.logger.Warn("NVML shutdown failed", "error", g.lib.ErrorString(ret))
		return int(ret)
	}
	g.logger.Info("NVML shutdown complete")
	return 0
}

func (g *gpus) source(buf []byte) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch len(g.devices) {
	case 0:
		return false
	case 1:
		return energymon.WriteSource(buf, "NVML: "+g.devices[0].name)
	default:
		return energymon.WriteSource(buf, fmt.Sprintf("NVML: %d GPUs", len(g.devices)))
	}
}
