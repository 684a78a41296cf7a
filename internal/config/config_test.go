package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Setenv("XLSTREAM_LOG_LEVEL", "debug")
	t.Setenv("XLSTREAM_BUFFER_SIZE", "not a number")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 0, cfg.BufferSize)
	assert.False(t, cfg.FastMode)
}

func TestLoadFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "test.env")
	err := os.WriteFile(file, []byte("XLSTREAM_FAST_MODE=true\nXLSTREAM_CULTURE=fr-BE\n"), 0644)
	require.NoError(t, err)
	t.Cleanup(func() {
		os.Unsetenv("XLSTREAM_FAST_MODE")
		os.Unsetenv("XLSTREAM_CULTURE")
	})

	cfg, err := Load(file)
	require.NoError(t, err)
	assert.True(t, cfg.FastMode)
	assert.Equal(t, "fr-BE", cfg.Culture)
	assert.Equal(t, "warn", cfg.LogLevel)
}
