package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", home)
	t.Setenv("GITTER_LOG_LEVEL", "")
	t.Setenv("GITTER_DIFF_RENDERER", "")
	t.Setenv("GITTER_COLOR", "")
	return home
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadLayers(t *testing.T) {
	home := isolate(t)
	meta := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(home, "gitter"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(home, "gitter", "config.yml"), []byte(`
core:
  log_level: info
objects:
  compression: zstd
ui:
  color: never
`), 0644))

	require.NoError(t, os.WriteFile(filepath.Join(meta, RepoFile), []byte(`
[core]
log_level = "debug"

[diff]
renderer = "external"
`), 0644))

	t.Setenv("GITTER_COLOR", "always")

	cfg, err := Load(meta)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Core.LogLevel)
	assert.Equal(t, "zstd", cfg.Objects.Compression)
	assert.Equal(t, "external", cfg.Diff.Renderer)
	assert.Equal(t, "always", cfg.UI.Color)
	assert.Equal(t, 3, cfg.Diff.ContextLines)
}

func TestWriteRepoRoundTrip(t *testing.T) {
	isolate(t)
	meta := t.TempDir()

	want := Default()
	want.Objects.Compression = "zstd"
	require.NoError(t, WriteRepo(meta, want))

	got, err := Load(meta)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"compression", func(c *Config) { c.Objects.Compression = "lz4" }},
		{"renderer", func(c *Config) { c.Diff.Renderer = "vimdiff" }},
		{"color", func(c *Config) { c.UI.Color = "sometimes" }},
		{"cache", func(c *Config) { c.Objects.CacheSize = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
