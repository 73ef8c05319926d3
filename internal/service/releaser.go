// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package service

import "sync"

// Releaser is a Shutdowner that calls a release function exactly once. Run
// shuts it down only after every Runner has returned.
type Releaser struct {
	name    string
	release func() error

	once sync.Once
	err  error
}

var _ Shutdowner = (*Releaser)(nil)

// NewReleaser returns a Releaser named name that calls release on shutdown
func NewReleaser(name string, release func() error) *Releaser {
	return &Releaser{name: name, release: release}
}

func (r *Releaser) Name() string {
	return r.name
}

func (r *Releaser) Shutdown() error {
	r.once.Do(func() {
		r.err = r.release()
	})
	return r.err
}
