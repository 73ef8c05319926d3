// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfo(t *testing.T) {
	info := Info()
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS, info.GoOS)
	assert.Equal(t, runtime.GOARCH, info.GoArch)
}

func TestVersionValues(t *testing.T) {
	saved := []string{version, buildTime, gitBranch, gitCommit}
	t.Cleanup(func() {
		version, buildTime, gitBranch, gitCommit = saved[0], saved[1], saved[2], saved[3]
	})

	tt := []struct {
		name   string
		values [4]string // version, build time, branch, commit
		want   [4]string
	}{{
		name: "empty values",
		want: [4]string{"unknown", "unknown", "unknown", "unknown"},
	}, {
		name:   "typical values",
		values: [4]string{"v0.1.0", "2025-04-01T12:00:00Z", "main", "abcdef123456"},
		want:   [4]string{"v0.1.0", "2025-04-01T12:00:00Z", "main", "abcdef123456"},
	}}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			version, buildTime, gitBranch, gitCommit = tc.values[0], tc.values[1], tc.values[2], tc.values[3]

			info := Info()
			assert.Equal(t, tc.want, [4]string{info.Version, info.BuildTime, info.GitBranch, info.GitCommit})
			assert.Contains(t, info.String(), "energymon "+tc.want[0])
		})
	}
}
