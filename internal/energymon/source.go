// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package energymon

import (
	"bytes"
	"strings"

	"golang.org/x/text/encoding/unicode"
)

const (
	// UnknownSource is reported when a backend cannot describe itself
	UnknownSource = "UNKNOWN"

	// SourceBufferSize is the size of the scratch buffer handed to a
	// backend's Source entry point
	SourceBufferSize = 100
)

// describeSource calls fn with a fresh scratch buffer and decodes whatever
// the backend wrote into it.
func describeSource(fn func([]byte) bool) string {
	if fn == nil {
		return UnknownSource
	}

	buf := make([]byte, SourceBufferSize)
	if !fn(buf) {
		return UnknownSource
	}
	return decodeSource(buf)
}

// decodeSource decodes buf up to the first NUL byte (or its end), replacing
// malformed UTF-8 instead of rejecting it.
func decodeSource(buf []byte) string {
	if i := bytes.IndexByte(buf, 0); i >= 0 {
		buf = buf[:i]
	}
	if len(buf) == 0 {
		return UnknownSource
	}

	decoded, err := unicode.UTF8.NewDecoder().Bytes(buf)
	if err != nil {
		return strings.ToValidUTF8(string(buf), "\uFFFD")
	}
	return string(decoded)
}

// WriteSource copies name into buf as a NUL terminated string, truncating
// it when it does not fit. Backends implemented in Go use it to satisfy the
// Source entry point.
func WriteSource(buf []byte, name string) bool {
	if len(buf) == 0 || name == "" {
		return false
	}
	n := copy(buf[:len(buf)-1], name)
	buf[n] = 0
	return true
}
