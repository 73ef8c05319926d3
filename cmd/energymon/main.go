// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/sustainable-computing-io/energymon/config"
	"github.com/sustainable-computing-io/energymon/internal/backend"
	"github.com/sustainable-computing-io/energymon/internal/energymon"
	"github.com/sustainable-computing-io/energymon/internal/energymon/shared"
	"github.com/sustainable-computing-io/energymon/internal/exporter/prometheus"
	"github.com/sustainable-computing-io/energymon/internal/exporter/stdout"
	"github.com/sustainable-computing-io/energymon/internal/logger"
	"github.com/sustainable-computing-io/energymon/internal/sampler"
	"github.com/sustainable-computing-io/energymon/internal/server"
	"github.com/sustainable-computing-io/energymon/internal/service"
	"github.com/sustainable-computing-io/energymon/internal/version"
	"k8s.io/utils/ptr"

	// backends register themselves with the backend registry
	_ "github.com/sustainable-computing-io/energymon/internal/backend/native"
	_ "github.com/sustainable-computing-io/energymon/internal/backend/nvidia"
	_ "github.com/sustainable-computing-io/energymon/internal/backend/rapl"
)

const (
	cmdInfo  = "info"
	cmdServe = "serve"
)

func main() {
	cmd, cfg, err := parseArgsAndConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	slog.SetDefault(log)

	if err := selectBackend(cfg, log); err != nil {
		log.Error("failed to select energy monitor backend", "error", err)
		os.Exit(1)
	}

	switch cmd {
	case cmdServe:
		err = serve(cfg, log, shared.Instance, shared.Destroy)
	default:
		err = printInfo(os.Stdout)
	}
	if err != nil {
		log.Error("energymon terminated with an error", "error", err)
		os.Exit(1)
	}
}

func parseArgsAndConfig(args []string) (string, *config.Config, error) {
	app := kingpin.New("energymon", "Energy monitor for the host it runs on.")
	app.Version(version.Info().String())

	configFiles := app.Flag("config.file", "Path to YAML configuration file; may be repeated, later files win").Strings()
	updateConfig := config.RegisterFlags(app)

	app.Command(cmdInfo, "Print the energy monitor's properties and a reading").Default()
	app.Command(cmdServe, "Sample the energy monitor and serve its metrics")

	cmd, err := app.Parse(args)
	if err != nil {
		return "", nil, err
	}

	b := &config.Builder{}
	if err := b.MergeFiles(*configFiles...); err != nil {
		return "", nil, err
	}
	cfg, err := b.Build()
	if err != nil {
		return "", nil, err
	}

	// command line flags override config file settings
	if err := updateConfig(cfg); err != nil {
		return "", nil, err
	}
	return cmd, cfg, nil
}

func selectBackend(cfg *config.Config, log *slog.Logger) error {
	get, err := backend.Lookup(cfg.Monitor.Backend, cfg, log)
	if err != nil {
		return err
	}
	return shared.Use(get, log)
}

func printInfo(w io.Writer) error {
	em, err := shared.Instance()
	if err != nil {
		return err
	}
	defer func() {
		_ = shared.Destroy()
	}()

	uj, err := em.Read()
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, `Source:    %s
Interval:  %d us
Precision: %d uJ
Exclusive: %t
Reading:   %d uJ
`, em.Source(), em.Interval(), uint64(em.Precision()), em.Exclusive(), uint64(uj))
	return err
}

// serve runs the services on the monitor returned by acquire. release
// finishes that monitor on every return path once it was acquired.
func serve(cfg *config.Config, log *slog.Logger, acquire func() (*energymon.Shared, error), release func() error) error {
	logVersionInfo(log)
	log.Debug("Configuration", "config", cfg.String())

	em, err := acquire()
	if err != nil {
		return err
	}
	defer func() {
		if err := release(); err != nil {
			log.Warn("failed to release energy monitor", "error", err)
		}
	}()

	services := createServices(cfg, em, release, log)
	if err := service.Init(log, services); err != nil {
		return err
	}

	log.Info("Starting energymon")
	if err := service.Run(context.Background(), log, services); err != nil {
		return err
	}
	log.Info("Graceful shutdown completed")
	return nil
}

func createServices(cfg *config.Config, em sampler.Monitor, release func() error, log *slog.Logger) []service.Service {
	smp := sampler.NewSampler(em,
		sampler.WithLogger(log),
		sampler.WithInterval(cfg.Monitor.Interval),
		sampler.WithMaxStaleness(cfg.Monitor.Staleness),
	)
	apiServer := server.NewAPIServer(
		server.WithLogger(log),
		server.WithListen(cfg.Web.ListenAddresses, cfg.Web.Config),
	)

	services := []service.Service{smp, apiServer}

	if ptr.Deref(cfg.Exporter.Prometheus.Enabled, false) {
		services = append(services, prometheus.NewExporter(apiServer,
			prometheus.WithLogger(log),
			prometheus.WithDebugCollectors(cfg.Exporter.Prometheus.DebugCollectors),
			prometheus.WithCollectors(prometheus.CreateCollectors(smp, cfg.Monitor.Backend, log)),
		))
	}
	if ptr.Deref(cfg.Exporter.Stdout.Enabled, false) {
		services = append(services, stdout.NewExporter(smp,
			stdout.WithLogger(log),
			stdout.WithInterval(cfg.Exporter.Stdout.Interval),
		))
	}
	if ptr.Deref(cfg.Debug.Pprof.Enabled, false) {
		services = append(services, server.NewPprof(apiServer, log))
	}

	services = append(services,
		server.NewHealthProbe(apiServer, []service.Service{smp}, log),
		service.NewSignalHandler(log, os.Interrupt, syscall.SIGTERM),
		// runs after every runner has stopped
		service.NewReleaser("energymon", release),
	)
	return services
}

func logVersionInfo(log *slog.Logger) {
	v := version.Info()
	log.Info("energymon version information",
		"version", v.Version,
		"buildTime", v.BuildTime,
		"gitBranch", v.GitBranch,
		"gitCommit", v.GitCommit,
		"goVersion", v.GoVersion,
		"goOS", v.GoOS,
		"goArch", v.GoArch,
	)
}
