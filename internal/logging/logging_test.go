package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigure_AppliesLevelAndFormat(t *testing.T) {
	logger := logrus.New()
	cfg := Config{Level: "debug", Format: FormatJSON, Output: "stdout"}

	require.NoError(t, Configure(logger, &cfg))

	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)
	assert.Equal(t, os.Stdout, logger.Out)
}

func TestConfigure_RejectsUnknownFormat(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Format = "xml"

	err := Configure(logrus.New(), &cfg)

	assert.EqualError(t, err, "logger format xml is invalid")
}

func TestConfigure_RejectsUnknownLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Level = "chatty"

	assert.Error(t, Configure(logrus.New(), &cfg))
}

func TestConfigure_RequiresOutput(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Output = ""

	assert.ErrorIs(t, Configure(logrus.New(), &cfg), ErrLogOutputRequired)
}

func TestConfigure_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dotprod.log")
	logger := logrus.New()
	cfg := Config{Level: "info", Format: FormatText, Output: path}

	require.NoError(t, Configure(logger, &cfg))
	logger.Info("hello")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
}
