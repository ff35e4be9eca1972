package xfault

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrCircuitOpen 熔断器打开（或半开探测名额已满），请求被拒绝
	ErrCircuitOpen = errors.New("xfault: circuit breaker open")

	// ErrNilOperation 传入的操作函数为 nil
	ErrNilOperation = errors.New("xfault: nil operation")

	// ErrInvalidHistorySize 错误历史容量必须大于 0
	ErrInvalidHistorySize = errors.New("xfault: history size must be positive")

	// ErrInvalidThreshold 熔断阈值必须在 (0, 1] 区间
	ErrInvalidThreshold = errors.New("xfault: failure threshold must be in (0, 1]")
)

// Error 经 Handler 处理后的错误，携带分类与调用上下文。
//
// 设计决策: 字段导出，便于调用方在日志、告警与 OnError 回调中直接读取。
type Error struct {
	Kind          Kind
	Severity      Severity
	Recoverable   bool
	Op            string
	Key           string
	CorrelationID string
	Time          time.Time
	Err           error
}

// Error 实现 error 接口
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("xfault: [")
	b.WriteString(string(e.Kind))
	b.WriteString("]")
	if e.Op != "" {
		b.WriteString(" ")
		b.WriteString(e.Op)
	}
	if e.Key != "" {
		fmt.Fprintf(&b, " key=%q", e.Key)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap 支持 errors.Is/As
func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable 与重试器约定一致：可恢复即可重试
func (e *Error) Retryable() bool {
	return e.Recoverable
}
