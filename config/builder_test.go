// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/utils/ptr"
)

func TestBuilder(t *testing.T) {
	t.Run("Build", func(t *testing.T) {
		b := &Builder{}
		got, err := b.Build()
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig().String(), got.String())
	})

	t.Run("Use", func(t *testing.T) {
		b := &Builder{}
		exp := DefaultConfig()
		exp.Log.Level = "warn"

		got, err := b.Use(exp).Build()
		require.NoError(t, err)
		assert.Equal(t, exp.String(), got.String())
	})

	t.Run("MergeWithInvalidYAML", func(t *testing.T) {
		b := &Builder{}
		cfg, err := b.Merge(`invalid yaml: [invalid`).Build()
		assert.ErrorContains(t, err, "failed to parse inline")
		assert.Nil(t, cfg)
	})

	t.Run("MultipleMerges", func(t *testing.T) {
		b := &Builder{}
		cfg, err := b.Merge(`
log:
  level: debug
`, `
monitor:
  backend: Fake
  interval: 3h
`, `
log:
  level: info
`).Build()
		require.NoError(t, err)

		exp := DefaultConfig()
		exp.Log.Level = "info"
		exp.Monitor.Backend = BackendFake
		exp.Monitor.Interval = 3 * time.Hour
		assert.Equal(t, exp.String(), cfg.String())
	})

	t.Run("MergeFalseOverridesTrue", func(t *testing.T) {
		b := &Builder{}
		cfg, err := b.Merge(`
exporter:
  prometheus:
    enabled: false
`).Build()
		require.NoError(t, err)

		exp := DefaultConfig()
		exp.Exporter.Prometheus.Enabled = ptr.To(false)
		assert.Equal(t, exp.String(), cfg.String())
	})

	t.Run("MissingBoolKeepsBase", func(t *testing.T) {
		b := &Builder{}
		cfg, err := b.Merge(`
exporter:
  prometheus:
    debugCollectors: ["go", "process"]
`).Build()
		require.NoError(t, err)
		assert.True(t, *cfg.Exporter.Prometheus.Enabled)
		assert.Equal(t, []string{"go", "process"}, cfg.Exporter.Prometheus.DebugCollectors)
	})

	t.Run("InvalidResult", func(t *testing.T) {
		b := &Builder{}
		_, err := b.Merge("monitor:\n  backend: perf\n").Build()
		assert.ErrorContains(t, err, "invalid monitor backend")
	})
}

func TestBuilder_MergeFiles(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.yaml")
	override := filepath.Join(dir, "override.yaml")
	require.NoError(t, os.WriteFile(base, []byte("monitor:\n  backend: fake\n  interval: 1s\n"), 0o644))
	require.NoError(t, os.WriteFile(override, []byte("monitor:\n  interval: 2s\n"), 0o644))

	b := &Builder{}
	require.NoError(t, b.MergeFiles(base, override))
	cfg, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, BackendFake, cfg.Monitor.Backend)
	assert.Equal(t, 2*time.Second, cfg.Monitor.Interval)

	err = (&Builder{}).MergeFiles(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("log: [unterminated"), 0o644))
	b = &Builder{}
	require.NoError(t, b.MergeFiles(bad))
	_, err = b.Build()
	assert.ErrorContains(t, err, "failed to parse "+bad)
}
