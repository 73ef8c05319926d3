// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package energymon

// Table holds the entry points of a native energy monitor. Every entry is
// bound to the backend's native state when the table is populated, and any
// entry may be nil when the backend does not provide it.
type Table struct {
	// Init prepares the native state. Zero means success.
	Init func() int

	// ReadTotal returns the cumulative energy in microjoules.
	ReadTotal func() uint64

	// Finish releases the native state. Zero means success.
	Finish func() int

	// Source writes a NUL terminated, human readable identifier of the
	// backend into buf. It returns false when the backend reports no source.
	Source func(buf []byte) bool

	// Interval returns the refresh interval of the backend in microseconds.
	Interval func() uint64

	// Precision returns the precision of a reading in microjoules.
	Precision func() uint64

	// Exclusive returns nonzero when the backend requires exclusive access
	// to the underlying sensor.
	Exclusive func() int
}

// GetFunc discovers a native energy monitor and populates t with its entry
// points. It returns 0 on success; any other value is an opaque failure code.
type GetFunc func(t *Table) int

// DummyTable is a table whose entries are all no-op stand-ins. It lets the
// lifecycle logic be exercised without any real backend.
var DummyTable = Table{
	Init:      func() int { return 0 },
	ReadTotal: func() uint64 { return 0 },
	Finish:    func() int { return 0 },
	Source:    func([]byte) bool { return false },
	Interval:  func() uint64 { return DummyInterval },
	Precision: func() uint64 { return DummyPrecision },
	Exclusive: func() int { return 0 },
}

const (
	// DummyInterval is the refresh interval reported by DummyTable in
	// microseconds.
	DummyInterval uint64 = 1

	// DummyPrecision is the precision reported by DummyTable in microjoules.
	DummyPrecision uint64 = 1
)

// GetDummy populates t with DummyTable and always succeeds.
func GetDummy(t *Table) int {
	*t = DummyTable
	return 0
}
