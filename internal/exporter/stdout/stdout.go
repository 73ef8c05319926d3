// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

// Package stdout periodically prints the sampled energy monitor as a table
package stdout

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/sustainable-computing-io/energymon/internal/sampler"
	"github.com/sustainable-computing-io/energymon/internal/service"
	"k8s.io/utils/clock"
)

// Exporter writes the latest snapshot to out on every tick
type Exporter struct {
	logger   *slog.Logger
	provider sampler.DataProvider
	out      io.Writer
	clock    clock.WithTicker
	interval time.Duration
}

var (
	_ service.Initializer = (*Exporter)(nil)
	_ service.Runner      = (*Exporter)(nil)
)

type Opts struct {
	logger   *slog.Logger
	out      io.Writer
	clock    clock.WithTicker
	interval time.Duration
}

// DefaultOpts returns a new Opts with defaults set
func DefaultOpts() Opts {
	return Opts{
		logger:   slog.Default(),
		out:      os.Stdout,
		clock:    clock.RealClock{},
		interval: 2 * time.Second,
	}
}

// OptionFn is a function sets one more more options in Opts struct
type OptionFn func(*Opts)

// WithLogger sets the logger for the exporter
func WithLogger(logger *slog.Logger) OptionFn {
	return func(o *Opts) {
		o.logger = logger
	}
}

// WithOutput sets where readings are printed
func WithOutput(out io.Writer) OptionFn {
	return func(o *Opts) {
		o.out = out
	}
}

// WithInterval sets the time between two printed readings
func WithInterval(interval time.Duration) OptionFn {
	return func(o *Opts) {
		o.interval = interval
	}
}

// WithClock sets the clock driving the exporter
func WithClock(c clock.WithTicker) OptionFn {
	return func(o *Opts) {
		o.clock = c
	}
}

// NewExporter creates a stdout exporter printing the snapshots of p
func NewExporter(p sampler.DataProvider, applyOpts ...OptionFn) *Exporter {
	opts := DefaultOpts()
	for _, apply := range applyOpts {
		apply(&opts)
	}

	return &Exporter{
		logger:   opts.logger.With("service", "stdout"),
		provider: p,
		out:      opts.out,
		clock:    opts.clock,
		interval: opts.interval,
	}
}

func (e *Exporter) Name() string {
	return "stdout"
}

func (e *Exporter) Init() error {
	if e.interval <= 0 {
		return fmt.Errorf("invalid stdout interval: %s", e.interval)
	}
	return nil
}

func (e *Exporter) Run(ctx context.Context) error {
	ticker := e.clock.NewTicker(e.interval)
	defer ticker.Stop()

	info := e.provider.Info()
	for {
		select {
		case <-ticker.C():
			snapshot, err := e.provider.Snapshot()
			if err != nil {
				e.logger.Warn("Failed to read energy monitor", "error", err)
				continue
			}
			if err := write(e.out, info, snapshot); err != nil {
				e.logger.Error("Failed to write reading", "error", err)
			}

		case <-ctx.Done():
			e.logger.Info("Exiting ticker")
			return nil
		}
	}
}

func write(out io.Writer, info sampler.Info, s *sampler.Snapshot) error {
	table := tablewriter.NewWriter(out)
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Formatting.Alignment = tw.AlignRight
	})
	table.Header([]string{"Source", "Time", "Energy(J)", "Power(W)", "Resets"})
	if err := table.Bulk([][]string{{
		info.Source,
		s.Timestamp.UTC().Format(time.RFC3339),
		fmt.Sprintf("%.6f", s.EnergyTotal.Joules()),
		fmt.Sprintf("%.3f", s.Power.Watts()),
		fmt.Sprintf("%d", s.Resets),
	}}); err != nil {
		return err
	}
	return table.Render()
}
