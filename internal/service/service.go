// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

// Package service drives the lifecycle of the long running parts of the
// energymon daemon: initialization, running and shutdown.
package service

import "context"

// Service is a named part of the daemon
type Service interface {
	Name() string
}

// Initializer is a service that must be prepared before anything runs
type Initializer interface {
	Service
	Init() error
}

// Runner is a service that runs in the background until its context is
// canceled. Run must block and be safe to call from its own goroutine.
type Runner interface {
	Service
	Run(ctx context.Context) error
}

// Shutdowner is a service that releases resources when the daemon stops
type Shutdowner interface {
	Service
	Shutdown() error
}

// LiveChecker is a service that can report whether it is still working
type LiveChecker interface {
	Service
	IsLive() bool
}

// ReadyChecker is a service that can report whether it can serve requests
type ReadyChecker interface {
	Service
	IsReady() bool
}
