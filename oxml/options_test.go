package oxml

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOptions(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		file := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(file, []byte(content), 0644))
		return file
	}

	t.Run("partial", func(t *testing.T) {
		file := write("partial.yml", "culture: fr-BE\nfast_mode: true\nmax_column_width: 1\n")
		opts, err := LoadOptions(file)
		require.NoError(t, err)
		assert.Equal(t, "fr-BE", opts.Culture)
		assert.True(t, opts.FastMode)
		assert.Equal(t, DefaultBufferSize, opts.BufferSize)
		assert.Equal(t, DefaultDateFormat, opts.DateFormat)
		assert.Equal(t, opts.MinColumnWidth, opts.MaxColumnWidth)
	})
	t.Run("culture", func(t *testing.T) {
		file := write("culture.yml", "culture: \"@@@\"\n")
		_, err := LoadOptions(file)
		assert.ErrorIs(t, err, ErrFormat)
	})
	t.Run("date-format", func(t *testing.T) {
		file := write("date.yml", "date_format: \"0.0.0;0;0;@;0\"\n")
		_, err := LoadOptions(file)
		assert.ErrorIs(t, err, ErrFormat)
	})
	t.Run("missing", func(t *testing.T) {
		_, err := LoadOptions(filepath.Join(dir, "missing.yml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestInfer(t *testing.T) {
	opts := DefaultOptions()
	tests := []struct {
		Input string
		Want  any
	}{
		{Input: "", Want: nil},
		{Input: "  ", Want: nil},
		{Input: "TRUE", Want: true},
		{Input: "false", Want: false},
		{Input: "42", Want: 42.0},
		{Input: "1,500.5", Want: 1500.5},
		{Input: "2021-03-15", Want: time.Date(2021, time.March, 15, 0, 0, 0, 0, time.UTC)},
		{Input: "foobar", Want: "foobar"},
		{Input: "1 2", Want: "1 2"},
	}
	for _, c := range tests {
		assert.Equal(t, c.Want, opts.Infer(c.Input), "input %q", c.Input)
	}

	opts.Culture = "fr-FR"
	assert.Equal(t, 1234.5, opts.Infer("1 234,5"))
	assert.Equal(t, time.Date(2021, time.March, 15, 0, 0, 0, 0, time.UTC), opts.Infer("15/03/2021"))
}
