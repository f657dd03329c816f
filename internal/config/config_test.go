package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/dispatch/internal/parallel"
)

func TestParseEmptyIsDefault(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
backend: cpu
trace: true
parallel:
  enabled: true
  workers: 4
  min_chunk: 16
`))
	require.NoError(t, err)
	assert.Equal(t, "cpu", cfg.Backend)
	assert.True(t, cfg.Trace)
	assert.Equal(t, parallel.Config{Enabled: true, NumWorkers: 4, MinChunkSize: 16}, cfg.Parallel)
}

func TestParsePartialKeepsDefaults(t *testing.T) {
	cfg, err := Parse([]byte("trace: true\n"))
	require.NoError(t, err)
	assert.True(t, cfg.Trace)
	assert.Equal(t, Default().Backend, cfg.Backend)
	assert.Equal(t, Default().Parallel, cfg.Parallel)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown key", "backends: cpu\n", "field backends not found"},
		{"empty backend", "backend: \"\"\n", "backend must not be empty"},
		{"zero workers", "parallel:\n  enabled: true\n  workers: 0\n", "workers must be >= 1"},
		{"bad chunk", "parallel:\n  enabled: true\n  min_chunk: -1\n", "min_chunk must be >= 1"},
		{"not yaml", "backend: [cpu\n", "parsing config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte("parallel:\n  enabled: false\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.Parallel.Enabled)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config")
}
