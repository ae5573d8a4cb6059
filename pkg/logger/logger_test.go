package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "enginectl.log")
	require.NoError(t, Init(Config{Level: "debug", OutputFile: path, MaxSize: 1}))
	t.Cleanup(func() { _ = Close() })

	assert.Equal(t, logrus.DebugLevel, Logger.GetLevel())
	assert.Equal(t, path, CurrentFile())

	// 组件 entry 走标准 logger，同样落盘
	logrus.WithField("component", "test").Info("hello from test")
	require.NoError(t, Close())
	assert.Empty(t, CurrentFile())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello from test")
	assert.Contains(t, string(data), "component=test")
}

func TestInit_UnknownLevelFallsBackToInfo(t *testing.T) {
	require.NoError(t, Init(Config{Level: "chatty"}))
	assert.Equal(t, logrus.InfoLevel, Logger.GetLevel())
}
