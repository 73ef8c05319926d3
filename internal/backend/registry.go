// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

// Package backend keeps the registry of energy monitor backends. Each
// backend contributes a discovery function that populates an
// energymon.Table; backends register themselves from init.
package backend

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/sustainable-computing-io/energymon/config"
	"github.com/sustainable-computing-io/energymon/internal/energymon"
)

// Factory returns the discovery function of a backend configured from cfg.
// It returns an error only for an unusable configuration; a backend whose
// hardware is missing reports that through a failing discovery instead.
type Factory func(cfg *config.Config, logger *slog.Logger) (energymon.GetFunc, error)

// ErrBackendNotRegistered is returned when no backend is registered under a name
type ErrBackendNotRegistered struct {
	Name string
}

func (e ErrBackendNotRegistered) Error() string {
	return fmt.Sprintf("energy monitor backend not registered: %s", e.Name)
}

var (
	registry   = make(map[string]Factory)
	registryMu sync.RWMutex
)

// Register adds a backend factory under name, replacing any previous one.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Lookup returns the discovery function of the backend registered under name
func Lookup(name string, cfg *config.Config, logger *slog.Logger) (energymon.GetFunc, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()

	if !ok {
		return nil, ErrBackendNotRegistered{Name: name}
	}

	if logger == nil {
		logger = slog.Default()
	}
	get, err := factory(cfg, logger.With("backend", name))
	if err != nil {
		return nil, fmt.Errorf("failed to configure backend %s: %w", name, err)
	}
	return get, nil
}

// Registered returns the sorted names of all registered backends.
func Registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ClearRegistry removes all registered backends.
// This is primarily useful for testing.
func ClearRegistry() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]Factory)
}

func init() {
	Register(config.BackendDummy, func(*config.Config, *slog.Logger) (energymon.GetFunc, error) {
		return energymon.GetDummy, nil
	})
	Register(config.BackendFake, func(cfg *config.Config, logger *slog.Logger) (energymon.GetFunc, error) {
		return NewFakeMeter(WithFakeIncrement(energymon.Energy(cfg.Dev.FakeMeter.Increment)),
			WithFakeLogger(logger)).Get, nil
	})
}
