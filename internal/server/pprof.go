// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"log/slog"
	"net/http"
	"net/http/pprof"

	"github.com/sustainable-computing-io/energymon/internal/service"
)

// pprofPath is the prefix every profiling endpoint is served under
const pprofPath = "/debug/pprof/"

// Profiler serves the runtime profiles of the daemon on the API server
type Profiler struct {
	logger *slog.Logger
	api    APIService
}

var _ service.Initializer = (*Profiler)(nil)

// NewPprof returns a service registering the profiling endpoints on api
func NewPprof(api APIService, logger *slog.Logger) *Profiler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Profiler{
		logger: logger.With("service", "pprof"),
		api:    api,
	}
}

func (p *Profiler) Name() string {
	return "pprof"
}

func (p *Profiler) Init() error {
	if err := p.api.Register(pprofPath, "pprof", "Profiling data", profileMux()); err != nil {
		return err
	}
	p.logger.Warn("Profiling endpoints enabled; do not expose them publicly", "path", pprofPath)
	return nil
}

// profileMux routes the named profiles (heap, goroutine, ...) through
// pprof.Index and the ones that need their own handler explicitly
func profileMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(pprofPath, pprof.Index)
	for name, h := range map[string]http.HandlerFunc{
		"cmdline": pprof.Cmdline,
		"profile": pprof.Profile,
		"symbol":  pprof.Symbol,
		"trace":   pprof.Trace,
	} {
		mux.HandleFunc(pprofPath+name, h)
	}
	return mux
}
