// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package collector

import (
	"log/slog"
	"strconv"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/sustainable-computing-io/energymon/internal/sampler"
)

const monitorSubsystem = "monitor"

// EnergyCollector exports the latest sample of the shared energy monitor.
// Every metric in a scrape comes from the same snapshot.
type EnergyCollector struct {
	provider sampler.DataProvider
	backend  string
	logger   *slog.Logger

	info        *prom.Desc
	joules      *prom.Desc
	watts       *prom.Desc
	resets      *prom.Desc
	timestamp   *prom.Desc
	refresh     *prom.Desc
	precision   *prom.Desc
	scrapeError *prom.Desc
}

var _ prom.Collector = (*EnergyCollector)(nil)

func monitorDesc(name, help string, labels ...string) *prom.Desc {
	return prom.NewDesc(prom.BuildFQName(energymonNS, monitorSubsystem, name), help, labels, nil)
}

// NewEnergyCollector creates a collector reading provider; backend is the
// configured backend name exported as a label
func NewEnergyCollector(provider sampler.DataProvider, backend string, logger *slog.Logger) *EnergyCollector {
	if logger == nil {
		logger = slog.Default()
	}
	return &EnergyCollector{
		provider: provider,
		backend:  backend,
		logger:   logger.With("collector", "energy"),

		info: monitorDesc("info",
			"A metric with a constant '1' value labeled with the energy monitor backend",
			"source", "backend", "exclusive"),
		joules: monitorDesc("energy_joules_total",
			"Energy consumed since the exporter started in joules", "source"),
		watts: monitorDesc("power_watts",
			"Average power between the two latest samples in watts", "source"),
		resets: monitorDesc("counter_resets_total",
			"Number of times the backend energy counter went backwards", "source"),
		timestamp: monitorDesc("sample_timestamp_seconds",
			"Unix time of the latest sample", "source"),
		refresh: monitorDesc("refresh_interval_seconds",
			"Refresh interval reported by the backend; 0 if unknown", "source"),
		precision: monitorDesc("precision_joules",
			"Precision of a reading reported by the backend; 0 if unknown", "source"),
		scrapeError: monitorDesc("scrape_error",
			"1 if the latest scrape failed to sample the energy monitor"),
	}
}

func (c *EnergyCollector) Describe(ch chan<- *prom.Desc) {
	ch <- c.info
	ch <- c.joules
	ch <- c.watts
	ch <- c.resets
	ch <- c.timestamp
	ch <- c.refresh
	ch <- c.precision
	ch <- c.scrapeError
}

func (c *EnergyCollector) Collect(ch chan<- prom.Metric) {
	info := c.provider.Info()
	source := info.Source

	ch <- prom.MustNewConstMetric(c.info, prom.GaugeValue, 1,
		source, c.backend, strconv.FormatBool(info.Exclusive))
	ch <- prom.MustNewConstMetric(c.refresh, prom.GaugeValue, info.Interval.Seconds(), source)
	ch <- prom.MustNewConstMetric(c.precision, prom.GaugeValue, info.Precision.Joules(), source)

	snapshot, err := c.provider.Snapshot()
	if err != nil {
		c.logger.Error("Failed to get energy snapshot", "error", err)
		ch <- prom.MustNewConstMetric(c.scrapeError, prom.GaugeValue, 1)
		return
	}
	ch <- prom.MustNewConstMetric(c.scrapeError, prom.GaugeValue, 0)

	ch <- prom.MustNewConstMetric(c.joules, prom.CounterValue, snapshot.EnergyTotal.Joules(), source)
	ch <- prom.MustNewConstMetric(c.watts, prom.GaugeValue, snapshot.Power.Watts(), source)
	ch <- prom.MustNewConstMetric(c.resets, prom.CounterValue, float64(snapshot.Resets), source)
	ch <- prom.MustNewConstMetric(c.timestamp, prom.GaugeValue,
		float64(snapshot.Timestamp.UnixNano())/1e9, source)
}
