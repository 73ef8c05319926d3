// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"log/slog"

	"github.com/oklog/run"
)

// Run runs every Runner in its own goroutine until the first one returns or
// outer is canceled, then interrupts the rest. A Runner that is also a
// Shutdowner is shut down when it is interrupted.
//
// Services that are Shutdowners but not Runners are shut down in reverse
// order after every Runner has returned, so they may release resources the
// Runners were using.
func Run(outer context.Context, logger *slog.Logger, services []Service) error {
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(outer)
	defer cancel()

	var g run.Group
	var deferred []Service
	for _, s := range services {
		runner, ok := s.(Runner)
		if !ok {
			if _, ok := s.(Shutdowner); ok {
				deferred = append(deferred, s)
			}
			continue
		}

		g.Add(
			func() error {
				logger.Info("Running service", "service", s.Name())
				return runner.Run(ctx)
			},
			func(err error) {
				cancel()
				if err != nil {
					logger.Warn("Service terminated", "service", s.Name(), "reason", err)
				}

				shutdowner, ok := s.(Shutdowner)
				if !ok {
					return
				}
				logger.Info("Shutting down service", "service", s.Name())
				if err := shutdowner.Shutdown(); err != nil {
					logger.Warn("Service shutdown failed", "service", s.Name(), "error", err)
				}
			},
		)
	}

	logger.Info("Running all services")
	err := g.Run()
	shutdownAll(logger, deferred)
	return err
}
