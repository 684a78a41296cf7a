package logger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogging(t *testing.T) {
	file := filepath.Join(t.TempDir(), "xlstream.log")
	InitLogging("debug", file)

	ctx := WithLogger(context.Background(), map[string]any{
		"cmd": "test",
	})
	l := zerolog.Ctx(ctx)
	assert.Equal(t, zerolog.DebugLevel, l.GetLevel())
	l.Debug().Msg("hello")

	buf, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(buf), `"cmd":"test"`)
	assert.Contains(t, string(buf), `"message":"hello"`)

	assert.NotNil(t, Get(context.Background()))
}
