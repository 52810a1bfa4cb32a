package logger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/host-collector/pkg/config"
	"github.com/host-collector/pkg/logger"
)

// mockFatalHook 替代 fatal 的退出动作，只记录被调用
type mockFatalHook struct {
	called bool
}

func (h *mockFatalHook) OnWrite(ce *zapcore.CheckedEntry, _ []zapcore.Field) {
	if ce.Level == zapcore.FatalLevel {
		h.called = true
	}
}

func TestInit_Levels(t *testing.T) {
	cfg := config.ZapLogConfig{
		Level:   "debug",
		Format:  "console",
		Path:    t.TempDir(),
		MaxSize: 1,
		MaxAge:  1,
	}
	require.NoError(t, logger.Init(cfg))

	logger.Debug("debug msg")
	logger.Info("info msg")
	logger.Warn("warn msg")
	logger.Error("error msg")

	// 自定义 fatal hook 不会 os.Exit
	hook := &mockFatalHook{}
	l := logger.GetLogger().WithOptions(zap.WithFatalHook(hook))
	l.Fatal("fatal msg")
	assert.True(t, hook.called, "fatal hook was not triggered")

	_ = logger.Sync()
}

func TestSetLogger_DefaultFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger.SetLogger(zap.New(core))
	logger.SetDefaultCollector("collector")

	logger.Debug("dropped")
	logger.Info("cycle done", zap.Int("run", 3))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "cycle done", entry.Message)
	fields := entry.ContextMap()
	assert.Equal(t, "collector", fields["collector"])
	assert.Contains(t, fields, "goid")
	assert.EqualValues(t, 3, fields["run"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, logger.ParseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, logger.ParseLevel("warn"))
	assert.Equal(t, zapcore.InfoLevel, logger.ParseLevel("bogus"))
}
