package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		development bool
		level       string
		wantDebug   bool
	}{
		{name: "development default level", development: true},
		{name: "production debug", level: "debug", wantDebug: true},
		{name: "production warn", level: "warn"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			logger, err := New(tt.development, tt.level)
			require.NoError(t, err)
			require.Equal(t, tt.wantDebug, logger.Core().Enabled(zapcore.DebugLevel))
		})
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	_, err := New(false, "chatty")
	require.Error(t, err)
}

func TestForSource(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	ForSource(zap.New(core), "npb").Info("page fetched")

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "npb", entries[0].ContextMap()["source"])
}
