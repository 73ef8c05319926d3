// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

// Package native binds the energymon C library (libenergymon-default).
//
// The binding is only compiled with cgo enabled and the "energymon" build
// tag; otherwise discovery fails with StatusNotBuilt.
package native

import (
	"log/slog"

	"github.com/sustainable-computing-io/energymon/config"
	"github.com/sustainable-computing-io/energymon/internal/backend"
	"github.com/sustainable-computing-io/energymon/internal/energymon"
)

const (
	// StatusNotBuilt is returned by Get when the binding is not compiled in
	StatusNotBuilt = -1

	// StatusNoMemory is returned by Get when the native struct cannot be allocated
	StatusNoMemory = -2
)

func init() {
	backend.Register(config.BackendNative, func(*config.Config, *slog.Logger) (energymon.GetFunc, error) {
		return Get, nil
	})
}
