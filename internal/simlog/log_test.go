package simlog

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/erst-labs/simulate/internal/simconfig"
)

func TestNewDefaultsToTextFormatter(t *testing.T) {
	entry := New(&simconfig.Config{LogFormat: simconfig.LogFormatText, LogLevel: "info"})
	_, ok := entry.Logger.Formatter.(*logrus.TextFormatter)
	require.True(t, ok)
}

func TestNewJSONFormatter(t *testing.T) {
	entry := New(&simconfig.Config{LogFormat: simconfig.LogFormatJSON, LogLevel: "info"})
	_, ok := entry.Logger.Formatter.(*logrus.JSONFormatter)
	require.True(t, ok)
}

func TestNewAppliesLevel(t *testing.T) {
	entry := New(&simconfig.Config{LogFormat: simconfig.LogFormatText, LogLevel: "debug"})
	require.Equal(t, logrus.DebugLevel, entry.Logger.Level)
}

func TestNewFallsBackToInfoOnInvalidLevel(t *testing.T) {
	entry := New(&simconfig.Config{LogFormat: simconfig.LogFormatText, LogLevel: "not-a-level"})
	require.Equal(t, logrus.InfoLevel, entry.Logger.Level)
}
