package logger

import (
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// Logger 结构化日志接口
//
// 服务通过构造参数注入 Logger，并用 Named 标注组件名，例如 lggr.Named("request")。
// 测试使用 Test / TestObserved，运行时使用 New。
//
// 级别约定：
//   - Error：基础设施故障（存储写入失败、节点不可达）
//   - Warn：可恢复异常（RPC 重试、签名格式非法）
//   - Info：请求创建、签名附加、请求清除
//   - Debug：读取、状态计算
type Logger interface {
	// Name 返回完整的 logger 名
	Name() string
	// Named 返回带子名称的 logger
	Named(name string) Logger
	// With 返回附带固定键值对的 logger
	With(keysAndValues ...any) Logger

	Debugw(msg string, keysAndValues ...any)
	Infow(msg string, keysAndValues ...any)
	Warnw(msg string, keysAndValues ...any)
	Errorw(msg string, keysAndValues ...any)

	// Sync 刷新缓冲日志
	Sync() error
}

// Config 日志配置
type Config struct {
	Level zapcore.Level
}

var defaultConfig Config

// New 使用默认配置（Info 级别、JSON 输出）创建 Logger
func New() (Logger, error) { return defaultConfig.New() }

// New 按配置创建 Logger
func (c *Config) New() (Logger, error) {
	return NewWith(func(cfg *zap.Config) {
		cfg.Level.SetLevel(c.Level)
	})
}

// NewWith 基于修改后的 zap.Config 创建 Logger
func NewWith(cfgFn func(*zap.Config)) (Logger, error) {
	cfg := zap.NewProductionConfig()
	cfgFn(&cfg)
	core, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build zap logger: %w", err)
	}

	return &logger{core.Sugar()}, nil
}

// ParseLevel 解析配置中的日志级别文本（debug/info/warn/error），空串为 info
func ParseLevel(s string) (zapcore.Level, error) {
	if strings.TrimSpace(s) == "" {
		return zapcore.InfoLevel, nil
	}
	lvl, err := zapcore.ParseLevel(strings.ToLower(s))
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return lvl, nil
}

// Test 返回写入 tb 的测试 Logger
func Test(tb testing.TB) Logger {
	tb.Helper()
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000000000")
	lggr := zap.New(
		zapcore.NewCore(
			zapcore.NewConsoleEncoder(cfg),
			zaptest.NewTestingWriter(tb),
			zapcore.DebugLevel,
		),
	)

	return &logger{lggr.Sugar()}
}

// TestObserved 返回测试 Logger 以及指定级别的日志观察器
func TestObserved(tb testing.TB, lvl zapcore.Level) (Logger, *observer.ObservedLogs) {
	tb.Helper()
	oCore, logs := observer.New(lvl)
	observe := zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, oCore)
	})

	return &logger{zaptest.NewLogger(tb, zaptest.WrapOptions(observe, zap.AddCaller())).Sugar()}, logs
}

// Nop 返回丢弃所有输出的 Logger
func Nop() Logger {
	return &logger{zap.New(zapcore.NewNopCore()).Sugar()}
}

type logger struct {
	*zap.SugaredLogger
}

func (l *logger) Name() string {
	return l.Desugar().Name()
}

func (l *logger) Named(name string) Logger {
	return &logger{l.SugaredLogger.Named(name)}
}

func (l *logger) With(keysAndValues ...any) Logger {
	return &logger{l.SugaredLogger.With(keysAndValues...)}
}
