package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger(t *testing.T) {
	cfg := NewDefaultConfig()

	logger, err := NewLogger(cfg, &bytes.Buffer{})
	require.NoError(t, err)
	require.NotNil(t, logger)

	assert.NotNil(t, logger.zap)
	assert.Equal(t, cfg, logger.config)
}

func TestNewLogger_InvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Format = "xml"

	_, err := NewLogger(cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestNewLogger_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	cfg := NewDefaultConfig()
	cfg.Level = zapcore.InfoLevel
	cfg.Format = FormatJSON
	cfg.Fields = map[string]string{"service": "promptlint"}

	logger, err := NewLogger(cfg, &buf)
	require.NoError(t, err)

	ctx := WithDocument(context.Background(), "agents/router.md")
	logger.Info(ctx, "document validated", zap.Int("errors", 2))
	logger.Debug(ctx, "filtered out")
	require.NoError(t, logger.Sync())

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "document validated", entry["msg"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "agents/router.md", entry["document.path"])
	assert.Equal(t, "promptlint", entry["service"])
	assert.EqualValues(t, 2, entry["errors"])
	assert.Contains(t, entry, "ts")
}

func TestNewLogger_ConsoleOutput(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(NewDefaultConfig(), &buf)
	require.NoError(t, err)

	logger.Warn(context.Background(), "tokenizer unavailable")
	logger.Info(context.Background(), "below default level")

	out := buf.String()
	assert.Contains(t, out, "WARN")
	assert.Contains(t, out, "tokenizer unavailable")
	assert.NotContains(t, out, "below default level")
}

func TestLogger_ContextAwareMethods(t *testing.T) {
	core, observed := observer.New(TraceLevel)
	logger := &Logger{
		zap:    zap.New(core),
		config: NewDefaultConfig(),
	}

	ctx := context.Background()

	tests := []struct {
		name    string
		logFunc func()
		level   zapcore.Level
		message string
	}{
		{
			name:    "trace",
			logFunc: func() { logger.Trace(ctx, "trace message", zap.String("key", "val")) },
			level:   TraceLevel,
			message: "trace message",
		},
		{
			name:    "debug",
			logFunc: func() { logger.Debug(ctx, "debug message", zap.String("key", "val")) },
			level:   zapcore.DebugLevel,
			message: "debug message",
		},
		{
			name:    "info",
			logFunc: func() { logger.Info(ctx, "info message", zap.String("key", "val")) },
			level:   zapcore.InfoLevel,
			message: "info message",
		},
		{
			name:    "warn",
			logFunc: func() { logger.Warn(ctx, "warn message", zap.String("key", "val")) },
			level:   zapcore.WarnLevel,
			message: "warn message",
		},
		{
			name:    "error",
			logFunc: func() { logger.Error(ctx, "error message", zap.String("key", "val")) },
			level:   zapcore.ErrorLevel,
			message: "error message",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			observed.TakeAll()
			tt.logFunc()

			logs := observed.All()
			require.Len(t, logs, 1)
			assert.Equal(t, tt.level, logs[0].Level)
			assert.Equal(t, tt.message, logs[0].Message)
			assert.Len(t, logs[0].Context, 1)
		})
	}
}

func TestLogger_With(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	logger := &Logger{
		zap:    zap.New(core),
		config: NewDefaultConfig(),
	}

	child := logger.With(zap.String("component", "linter"))
	child.Info(context.Background(), "child log")
	logger.Info(context.Background(), "parent log")

	logs := observed.All()
	require.Len(t, logs, 2)
	assert.Equal(t, "linter", logs[0].ContextMap()["component"])
	assert.NotContains(t, logs[1].ContextMap(), "component")
}

func TestLogger_Named(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	logger := &Logger{
		zap:    zap.New(core),
		config: NewDefaultConfig(),
	}

	logger.Named("watch").Info(context.Background(), "named log")

	logs := observed.All()
	require.Len(t, logs, 1)
	assert.Equal(t, "watch", logs[0].LoggerName)
}

func TestLogger_Enabled(t *testing.T) {
	core, _ := observer.New(zapcore.WarnLevel)
	logger := &Logger{zap: zap.New(core), config: NewDefaultConfig()}

	assert.False(t, logger.Enabled(TraceLevel))
	assert.False(t, logger.Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Enabled(zapcore.WarnLevel))
	assert.True(t, logger.Enabled(zapcore.ErrorLevel))
}

func TestLogger_TraceSkippedWhenDisabled(t *testing.T) {
	core, observed := observer.New(zapcore.DebugLevel)
	logger := &Logger{zap: zap.New(core), config: NewDefaultConfig()}

	logger.Trace(context.Background(), "raw event")
	assert.Empty(t, observed.All())
}

func TestLogger_AutoInjectContextFields(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	logger := &Logger{zap: zap.New(core), config: NewDefaultConfig()}

	ctx := WithMode(context.Background(), "watch")
	ctx = WithDocument(ctx, "commands/run.md")
	logger.Info(ctx, "revalidated", zap.String("key", "value"))

	logs := observed.All()
	require.Len(t, logs, 1)
	fields := logs[0].ContextMap()
	assert.Equal(t, "commands/run.md", fields["document.path"])
	assert.Equal(t, "watch", fields["run.mode"])
	assert.Equal(t, "value", fields["key"])
}

func TestNewNop(t *testing.T) {
	logger := NewNop()
	logger.Error(context.Background(), "discarded")
	assert.False(t, logger.Enabled(zapcore.ErrorLevel))
	assert.NoError(t, logger.Sync())
}
