package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/host-collector/pkg/config"
	"github.com/host-collector/pkg/goid"
)

type Logger = zap.Logger

var (
	baseLogger        *zap.Logger
	defaultCollector  string
	loggerInitOnce    sync.Once
	loggerInitialized bool
	mu                sync.RWMutex
)

// ParseLevel 将配置字符串转换为 zap 日志级别，未知值按 info 处理
func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "dbg", "debug":
		return zapcore.DebugLevel
	case "war", "warn":
		return zapcore.WarnLevel
	case "err", "error":
		return zapcore.ErrorLevel
	case "dpanic":
		return zapcore.DPanicLevel
	case "pan", "panic":
		return zapcore.PanicLevel
	case "fat", "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// Init 初始化全局日志（只执行一次）：控制台 + 按天切割的 JSON 文件
func Init(cfg config.ZapLogConfig) error {
	var err error
	loggerInitOnce.Do(func() {
		level := ParseLevel(cfg.Level)

		if err = os.MkdirAll(cfg.Path, 0755); err != nil {
			return
		}

		opts := []rotatelogs.Option{
			rotatelogs.WithRotationTime(24 * time.Hour),
			rotatelogs.WithRotationSize(int64(cfg.MaxSize) * 1024 * 1024),
		}
		// rotatelogs 不允许同时设置 MaxAge 和 RotationCount
		if cfg.MaxBackup > 0 {
			opts = append(opts, rotatelogs.WithRotationCount(uint(cfg.MaxBackup)))
		} else {
			opts = append(opts, rotatelogs.WithMaxAge(time.Duration(cfg.MaxAge)*24*time.Hour))
		}

		writer, wErr := rotatelogs.New(filepath.Join(cfg.Path, "collector-%Y%m%d.log"), opts...)
		if wErr != nil {
			err = wErr
			return
		}

		stdoutEncoder := zapcore.NewJSONEncoder(jsonEncoderConfig())
		if cfg.Format == "console" {
			stdoutEncoder = zapcore.NewConsoleEncoder(consoleEncoderConfig())
		}

		core := zapcore.NewTee(
			zapcore.NewCore(stdoutEncoder, zapcore.AddSync(os.Stdout), level),
			zapcore.NewCore(zapcore.NewJSONEncoder(jsonEncoderConfig()), zapcore.AddSync(writer), level),
		)

		mu.Lock()
		baseLogger = zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
		loggerInitialized = true
		mu.Unlock()
	})
	return err
}

func consoleEncoderConfig() zapcore.EncoderConfig {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.ConsoleSeparator = " "
	encCfg.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(fmt.Sprintf("\033[34m%s\033[0m", t.Format("2006-01-02 15:04:05.000 -07:00")))
	}
	encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	// Caller 两级路径
	encCfg.EncodeCaller = func(c zapcore.EntryCaller, enc zapcore.PrimitiveArrayEncoder) {
		rel := filepath.Join(filepath.Base(filepath.Dir(c.File)), filepath.Base(c.File))
		enc.AppendString(fmt.Sprintf("%s:%d", rel, c.Line))
	}
	return encCfg
}

func jsonEncoderConfig() zapcore.EncoderConfig {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.Format("2006-01-02 15:04:05.000 -07:00"))
	}
	encCfg.EncodeLevel = zapcore.LowercaseLevelEncoder
	return encCfg
}

// SetLogger 替换全局日志实例（测试或嵌入场景使用）
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	baseLogger = l
	loggerInitialized = l != nil
}

// SetDefaultCollector 设置日志默认 collector 字段
func SetDefaultCollector(collector string) {
	mu.Lock()
	defer mu.Unlock()
	defaultCollector = collector
}

// GetDefaultCollector 返回日志默认 collector 字段
func GetDefaultCollector() string {
	mu.RLock()
	defer mu.RUnlock()
	return defaultCollector
}

func defaultFields() []zapcore.Field {
	return []zapcore.Field{
		zap.String("collector", GetDefaultCollector()),
		zap.String("goid", strconv.FormatUint(goid.GetGID(), 10)),
	}
}

func log(level zapcore.Level, msg string, fields ...zapcore.Field) {
	l := GetLogger().WithOptions(zap.AddCallerSkip(2))
	if ce := l.Check(level, msg); ce != nil {
		ce.Write(append(defaultFields(), fields...)...)
	}
}

func Debug(msg string, fields ...zapcore.Field) { log(zap.DebugLevel, msg, fields...) }
func Info(msg string, fields ...zapcore.Field)  { log(zap.InfoLevel, msg, fields...) }
func Warn(msg string, fields ...zapcore.Field)  { log(zap.WarnLevel, msg, fields...) }
func Error(msg string, fields ...zapcore.Field) { log(zap.ErrorLevel, msg, fields...) }

// Sync 刷盘
func Sync() error {
	mu.RLock()
	defer mu.RUnlock()
	if !loggerInitialized {
		return nil
	}
	return baseLogger.Sync()
}

// GetLogger 返回全局 zap.Logger（必须先调用 Init 或 SetLogger）
func GetLogger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if !loggerInitialized {
		panic("logger not initialized: call logger.Init() first")
	}
	return baseLogger
}

// Named 返回带组件名与默认字段的子日志，供注入到各组件使用
func Named(component string) *zap.Logger {
	return GetLogger().Named(component).With(zap.String("collector", component))
}
