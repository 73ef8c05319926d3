// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

// Package prometheus exports energy monitor samples as Prometheus metrics
package prometheus

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sustainable-computing-io/energymon/internal/exporter/prometheus/collector"
	"github.com/sustainable-computing-io/energymon/internal/sampler"
	"github.com/sustainable-computing-io/energymon/internal/service"
)

// APIRegistry is where the exporter registers its /metrics handler
type APIRegistry interface {
	Register(endpoint, summary, description string, handler http.Handler) error
}

type Opts struct {
	logger          *slog.Logger
	debugCollectors map[string]bool
	collectors      map[string]prom.Collector
}

// DefaultOpts returns a new Opts with defaults set
func DefaultOpts() Opts {
	return Opts{
		logger: slog.Default(),
		debugCollectors: map[string]bool{
			"go": true,
		},
		collectors: map[string]prom.Collector{},
	}
}

// OptionFn is a function sets one or more options in Opts struct
type OptionFn func(*Opts)

// WithLogger sets the logger for the Exporter
func WithLogger(logger *slog.Logger) OptionFn {
	return func(o *Opts) {
		o.logger = logger
	}
}

// WithDebugCollectors replaces the enabled debug collectors ("go", "process")
func WithDebugCollectors(c []string) OptionFn {
	return func(o *Opts) {
		o.debugCollectors = make(map[string]bool, len(c))
		for _, name := range c {
			o.debugCollectors[name] = true
		}
	}
}

// WithCollectors sets the energymon collectors, keyed by name
func WithCollectors(c map[string]prom.Collector) OptionFn {
	return func(o *Opts) {
		o.collectors = c
	}
}

// Exporter serves the energymon metrics on the API server's /metrics
type Exporter struct {
	logger          *slog.Logger
	registry        *prom.Registry
	server          APIRegistry
	debugCollectors map[string]bool
	collectors      map[string]prom.Collector
}

var _ service.Initializer = (*Exporter)(nil)

// NewExporter creates a new Exporter registering its handler on s
func NewExporter(s APIRegistry, applyOpts ...OptionFn) *Exporter {
	opts := DefaultOpts()
	for _, apply := range applyOpts {
		apply(&opts)
	}

	return &Exporter{
		server:          s,
		logger:          opts.logger.With("service", "prometheus"),
		debugCollectors: opts.debugCollectors,
		collectors:      opts.collectors,
		registry:        prom.NewRegistry(),
	}
}

// CreateCollectors returns the energymon collectors for the sampled monitor
func CreateCollectors(p sampler.DataProvider, backend string, logger *slog.Logger) map[string]prom.Collector {
	return map[string]prom.Collector{
		"build_info": collector.NewBuildInfoCollector(),
		"energy":     collector.NewEnergyCollector(p, backend, logger),
	}
}

func collectorForName(name string) (prom.Collector, error) {
	switch name {
	case "go":
		return collectors.NewGoCollector(), nil
	case "process":
		return collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}), nil
	default:
		return nil, fmt.Errorf("unknown debug collector: %s", name)
	}
}

func (e *Exporter) Name() string {
	return "prometheus"
}

func (e *Exporter) Init() error {
	e.logger.Info("Initializing Prometheus exporter")

	for _, name := range sortedKeys(e.debugCollectors) {
		c, err := collectorForName(name)
		if err != nil {
			return err
		}
		if err := e.registry.Register(c); err != nil {
			return fmt.Errorf("failed to register debug collector %s: %w", name, err)
		}
		e.logger.Info("Enabled debug collector", "collector", name)
	}

	for _, name := range sortedKeys(e.collectors) {
		if err := e.registry.Register(e.collectors[name]); err != nil {
			return fmt.Errorf("failed to register collector %s: %w", name, err)
		}
		e.logger.Info("Enabled collector", "collector", name)
	}

	return e.server.Register("/metrics", "Metrics", "Prometheus metrics",
		promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
			Registry:          e.registry,
		}))
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
