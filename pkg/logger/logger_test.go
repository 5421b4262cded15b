package logger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "default config", cfg: DefaultConfig()},
		{name: "json to stdout", cfg: Config{Level: "debug", Format: "json", Output: "stdout"}},
		{name: "empty output", cfg: Config{Level: "warn"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New(tt.cfg)
			require.NoError(t, err)
			require.NotNil(t, log)
		})
	}
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hunter.log")
	log, err := New(Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)

	log.Info("search finished", zap.String("query", "kindle"))
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"search finished"`)
	assert.Contains(t, string(data), `"query":"kindle"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("bogus"))
}

func TestDeduplicator(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	d := NewDeduplicator(zap.New(core), time.Hour)

	d.Warnf("source %s: price %q unparseable", "ebay", "call")
	d.Warnf("source %s: price %q unparseable", "ebay", "call")
	d.Warnf("source %s: price %q unparseable", "ebay", "call")
	assert.Equal(t, 0, logs.Len())

	d.Warnf("source %s timed out", "walmart")
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, `source ebay: price "call" unparseable (3)`, logs.All()[0].Message)

	d.Flush()
	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "source walmart timed out", logs.All()[1].Message)

	d.Flush()
	assert.Equal(t, 2, logs.Len())
}

func TestDeduplicator_FlushesAfterDelay(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	d := NewDeduplicator(zap.New(core), 10*time.Millisecond)

	d.Warnf("same")
	d.Warnf("same")

	assert.Eventually(t, func() bool { return logs.Len() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "same (2)", logs.All()[0].Message)
}
