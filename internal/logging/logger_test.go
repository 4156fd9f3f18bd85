package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestDisabledByDefault(t *testing.T) {
	require.NoError(t, Initialize(Options{}))
	defer CloseAll()

	for _, cat := range AllCategories {
		assert.False(t, Get(cat).Enabled(), "category %s should be a no-op", cat)
	}
	// No-op loggers must not panic
	Shell("activate %s", "RPN")
	Get(CategoryKeys).With("key", 11).Debug("ignored")
}

func TestSetBaseRoutesCategories(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	require.NoError(t, Initialize(Options{}))
	SetBase(zap.New(core))
	defer SetBase(nil)

	Shell("activate %s", "RPN")
	KeysDebug("key %d resolved", 11)
	Get(CategoryBus).With("msg", 1).Warn("declined")

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, "shell", entries[0].LoggerName)
	assert.Equal(t, "activate RPN", entries[0].Message)
	assert.Equal(t, "keys", entries[1].LoggerName)
	assert.Equal(t, zapcore.DebugLevel, entries[1].Level)
	assert.Equal(t, "bus", entries[2].LoggerName)
	assert.Equal(t, int64(1), entries[2].ContextMap()["msg"])
}

func TestCategoryFilterAndFileOutput(t *testing.T) {
	dir := t.TempDir()
	err := Initialize(Options{
		DebugMode:  true,
		Level:      "debug",
		Categories: map[string]bool{"keys": false},
		Dir:        dir,
	})
	require.NoError(t, err)

	assert.False(t, Get(CategoryKeys).Enabled())
	assert.True(t, Get(CategoryBuffer).Enabled())

	Buffer("packed %d registers", 12)
	CloseAll()

	files, err := filepath.Glob(filepath.Join(dir, "*_os4.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "packed 12 registers"))

	require.NoError(t, Initialize(Options{}))
}

func TestInvalidLevel(t *testing.T) {
	err := Initialize(Options{DebugMode: true, Level: "chatty"})
	assert.Error(t, err)
	require.NoError(t, Initialize(Options{}))
}

func TestTimerThreshold(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetBase(zap.New(core))
	defer SetBase(nil)

	timer := StartTimer(CategoryBuffer, "Pack")
	timer.StopWithThreshold(0)

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, zapcore.WarnLevel, logs.All()[0].Level)
}
