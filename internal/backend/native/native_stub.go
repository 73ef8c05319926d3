// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !cgo || !energymon

package native

import "github.com/sustainable-computing-io/energymon/internal/energymon"

// Built reports whether the native binding was compiled in
const Built = false

// Get always fails with StatusNotBuilt. Build with cgo and the "energymon"
// tag to link against libenergymon-default.
func Get(*energymon.Table) int {
	return StatusNotBuilt
}
