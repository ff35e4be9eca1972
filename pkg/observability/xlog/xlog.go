// xlog.go 定义核心接口：Logger、Leveler、LoggerWithLevel
//
// 设计理念：
//   - 强制 context 传递，确保 feature/correlation_id 传播
//   - 动态级别控制，支持运行时调整
//   - 类型安全，方法签名只接受 slog.Attr
package xlog

import (
	"context"
	"log/slog"
	"sync"
)

// Logger 日志接口
//
// 所有方法都需要 context.Context 参数，确保追踪信息正确传播。
type Logger interface {
	Debug(ctx context.Context, msg string, attrs ...slog.Attr)
	Info(ctx context.Context, msg string, attrs ...slog.Attr)
	Warn(ctx context.Context, msg string, attrs ...slog.Attr)
	Error(ctx context.Context, msg string, attrs ...slog.Attr)

	// With 返回带额外属性的派生 Logger
	//
	// 派生 logger 共享父级的 LevelVar，动态级别变更会同步生效。
	With(attrs ...slog.Attr) Logger

	// WithGroup 返回带分组的派生 Logger
	WithGroup(name string) Logger
}

// Leveler 级别控制接口
//
// 与 Logger 分离，避免污染核心日志接口。
type Leveler interface {
	SetLevel(level Level)
	GetLevel() Level
	Enabled(ctx context.Context, level Level) bool
}

// LoggerWithLevel 组合接口：Logger + Leveler
type LoggerWithLevel interface {
	Logger
	Leveler
}

var (
	defaultOnce   sync.Once
	defaultLogger LoggerWithLevel
)

// Default 返回进程级默认 Logger（惰性初始化：stderr、Info 级别、text 格式）。
//
// 仅作为组件未注入 Logger 时的兜底，服务端推荐显式注入。
func Default() LoggerWithLevel {
	defaultOnce.Do(func() {
		// 默认配置不会产生 Build 错误
		defaultLogger, _, _ = New().Build()
	})
	return defaultLogger
}

// Discard 返回丢弃全部输出的 Logger，用于测试与静默场景。
func Discard() LoggerWithLevel {
	return newLogger(slog.DiscardHandler, new(slog.LevelVar), nil)
}
