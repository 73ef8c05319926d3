// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

// Package rapl implements an energy monitor backend on top of the Linux
// powercap RAPL interface exposed in sysfs.
package rapl

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/prometheus/procfs/sysfs"
	"github.com/sustainable-computing-io/energymon/config"
	"github.com/sustainable-computing-io/energymon/internal/backend"
	"github.com/sustainable-computing-io/energymon/internal/energymon"
)

// Discovery and init failure codes
const (
	StatusNoSysFS  = 1
	StatusNoZones  = 2
	StatusReadFail = 3
)

const (
	source = "RAPL (powercap sysfs)"

	// powercap energy counters are refreshed roughly every millisecond
	refreshInterval = 1000 // µs
)

// defaultZones are summed when no zone filter is configured. Package zones
// already include core and uncore, so adding those would double count.
var defaultZones = []string{"package"}

// zone is a single RAPL energy counter
type zone interface {
	Name() string
	Index() int
	Path() string
	Energy() (energymon.Energy, error)
	MaxEnergy() energymon.Energy
}

// zoneReader lists RAPL zones; it is an interface to mock sysfs in tests
type zoneReader interface {
	Zones() ([]zone, error)
}

// Meter discovers RAPL zones and binds them to an energymon.Table
type Meter struct {
	logger     *slog.Logger
	sysfsPath  string
	reader     zoneReader
	zoneFilter []string
}

type OptionFn func(*Meter)

// WithLogger sets the logger for the meter
func WithLogger(logger *slog.Logger) OptionFn {
	return func(m *Meter) {
		m.logger = logger.With("meter", "rapl")
	}
}

// WithZoneFilter sets the zone names summed into a reading. A name matches
// every zone whose name starts with it, e.g. "package" matches "package-0".
func WithZoneFilter(zones []string) OptionFn {
	return func(m *Meter) {
		if len(zones) != 0 {
			m.zoneFilter = zones
		}
	}
}

func withReader(r zoneReader) OptionFn {
	return func(m *Meter) {
		m.reader = r
	}
}

// NewMeter creates a RAPL meter reading from the sysfs mounted at sysfsPath
func NewMeter(sysfsPath string, opts ...OptionFn) *Meter {
	m := &Meter{
		logger:     slog.Default().With("meter", "rapl"),
		sysfsPath:  sysfsPath,
		zoneFilter: defaultZones,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func init() {
	backend.Register(config.BackendRapl, func(cfg *config.Config, logger *slog.Logger) (energymon.GetFunc, error) {
		return NewMeter(cfg.Host.SysFS, WithLogger(logger), WithZoneFilter(cfg.Rapl.Zones)).Get, nil
	})
}

// Get discovers the RAPL zones and binds t to them. Each call binds a fresh
// counter state, so monitors created from the same Meter are independent.
func (m *Meter) Get(t *energymon.Table) int {
	reader := m.reader
	if reader == nil {
		fs, err := sysfs.NewFS(m.sysfsPath)
		if err != nil {
			m.logger.Debug("failed to open sysfs", "path", m.sysfsPath, "error", err)
			return StatusNoSysFS
		}
		reader = sysfsRaplReader{fs: fs}
	}

	zones, err := reader.Zones()
	if err != nil {
		m.logger.Debug("failed to read RAPL zones", "error", err)
		return StatusNoZones
	}

	zones = m.filterZones(dedupZones(zones))
	if len(zones) == 0 {
		m.logger.Debug("no RAPL zones found after filtering", "filter", m.zoneFilter)
		return StatusNoZones
	}

	c := &counter{logger: m.logger, zones: zones}
	*t = energymon.Table{
		Init:      c.init,
		ReadTotal: c.read,
		Finish:    c.finish,
		Source: func(buf []byte) bool {
			return energymon.WriteSource(buf, source)
		},
		Interval:  func() uint64 { return refreshInterval },
		Precision: func() uint64 { return uint64(energymon.MicroJoule) },
	}
	return 0
}

func (m *Meter) filterZones(zones []zone) []zone {
	var included, excluded []string
	filtered := make([]zone, 0, len(zones))
	for _, z := range zones {
		if m.wanted(z.Name()) {
			filtered = append(filtered, z)
			included = append(included, z.Name())
		} else {
			excluded = append(excluded, z.Name())
		}
	}
	m.logger.Debug("Filtered RAPL zones", "included", included, "excluded", excluded)
	return filtered
}

func (m *Meter) wanted(name string) bool {
	name = strings.ToLower(name)
	for _, prefix := range m.zoneFilter {
		if strings.HasPrefix(name, strings.ToLower(prefix)) {
			return true
		}
	}
	return false
}

// dedupZones drops non-standard zones (e.g. intel-rapl-mmio) that duplicate
// a zone with the same name and index.
func dedupZones(zones []zone) []zone {
	byKey := map[string]zone{}
	order := []string{}
	for _, z := range zones {
		key := fmt.Sprintf("%s-%d", z.Name(), z.Index())
		existing, exists := byKey[key]
		if !exists {
			order = append(order, key)
		} else if isStandardRaplPath(existing.Path()) {
			continue
		}
		byKey[key] = z
	}

	ret := make([]zone, 0, len(order))
	for _, key := range order {
		ret = append(ret, byKey[key])
	}
	return ret
}

func isStandardRaplPath(path string) bool {
	return strings.Contains(path, "/intel-rapl:")
}

// counter accumulates the readings of several zones into one monotonic
// total, handling the wrap-around of each zone's counter.
type counter struct {
	logger *slog.Logger
	zones  []zone

	mu    sync.Mutex
	last  []energymon.Energy
	total energymon.Energy
}

func (c *counter) init() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.last = make([]energymon.Energy, len(c.zones))
	for i, z := range c.zones {
		e, err := z.Energy()
		if err != nil {
			c.logger.Debug("failed to read RAPL zone", "zone", z.Name(), "error", err)
			return StatusReadFail
		}
		c.last[i] = e
	}
	c.total = 0
	return 0
}

// read returns the energy consumed since init. A zone that cannot be read
// contributes nothing to this reading.
func (c *counter) read() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, z := range c.zones {
		current, err := z.Energy()
		if err != nil {
			c.logger.Debug("failed to read RAPL zone", "zone", z.Name(), "error", err)
			continue
		}
		c.total += delta(c.last[i], current, z.MaxEnergy())
		c.last[i] = current
	}
	return uint64(c.total)
}

func (c *counter) finish() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = nil
	return 0
}

func delta(last, current, maxEnergy energymon.Energy) energymon.Energy {
	if current >= last {
		return current - last
	}
	if maxEnergy == 0 || last > maxEnergy {
		// counter reset without a known range; restart from current
		return current
	}
	return (maxEnergy - last) + current
}

type sysfsRaplReader struct {
	fs sysfs.FS
}

func (r sysfsRaplReader) Zones() ([]zone, error) {
	raplZones, err := sysfs.GetRaplZones(r.fs)
	if err != nil {
		return nil, fmt.Errorf("failed to read rapl zones: %w", err)
	}

	zones := make([]zone, 0, len(raplZones))
	for _, z := range raplZones {
		zones = append(zones, sysfsRaplZone{z})
	}
	return zones, nil
}

// sysfsRaplZone adapts sysfs.RaplZone to zone
type sysfsRaplZone struct {
	zone sysfs.RaplZone
}

func (s sysfsRaplZone) Name() string {
	return s.zone.Name
}

func (s sysfsRaplZone) Index() int {
	return s.zone.Index
}

func (s sysfsRaplZone) Path() string {
	return s.zone.Path
}

func (s sysfsRaplZone) Energy() (energymon.Energy, error) {
	uj, err := s.zone.GetEnergyMicrojoules()
	return energymon.Energy(uj), err
}

func (s sysfsRaplZone) MaxEnergy() energymon.Energy {
	return energymon.Energy(s.zone.MaxMicrojoules)
}
