// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"sync"
)

// recorder collects lifecycle events in the order they happen
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(event string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type mockService struct {
	name string
	rec  *recorder
}

func (m *mockService) Name() string {
	return m.name
}

type mockInitializer struct {
	mockService
	initFn    func() error
	initCount int
}

func (m *mockInitializer) Init() error {
	m.initCount++
	m.rec.add("init:" + m.name)
	if m.initFn != nil {
		return m.initFn()
	}
	return nil
}

type mockShutdowner struct {
	mockService
	shutdownFn    func() error
	shutdownCount int
}

func (m *mockShutdowner) Shutdown() error {
	m.shutdownCount++
	m.rec.add("shutdown:" + m.name)
	if m.shutdownFn != nil {
		return m.shutdownFn()
	}
	return nil
}

type mockInitShutdownService struct {
	mockShutdowner
	initFn    func() error
	initCount int
}

func (m *mockInitShutdownService) Init() error {
	m.initCount++
	m.rec.add("init:" + m.name)
	if m.initFn != nil {
		return m.initFn()
	}
	return nil
}

type mockRunner struct {
	mockService
	runFn    func(ctx context.Context) error
	runCount int
}

func (m *mockRunner) Run(ctx context.Context) error {
	m.runCount++
	if m.runFn != nil {
		return m.runFn(ctx)
	}
	return nil
}

type mockRunShutdownService struct {
	mockShutdowner
	runFn    func(ctx context.Context) error
	runCount int
}

func (m *mockRunShutdownService) Run(ctx context.Context) error {
	m.runCount++
	err := error(nil)
	if m.runFn != nil {
		err = m.runFn(ctx)
	}
	m.rec.add("stopped:" + m.name)
	return err
}
