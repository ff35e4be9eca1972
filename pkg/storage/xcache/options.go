package xcache

import (
	"context"
	"time"

	"github.com/omeyang/xcachekit/pkg/observability/xlog"
	"github.com/omeyang/xcachekit/pkg/observability/xmetrics"
)

// ErrorHandler 处理缓存操作中的错误，返回交给调用方的错误。
//
// *xfault.Handler 实现此接口，也是默认实现。
type ErrorHandler interface {
	Handle(ctx context.Context, err error, op, key string) error
}

// ErrorHandler 的可选扩展，Provider 在构造时通过类型断言识别。

// SuccessRecorder 接收成功操作的报告，使熔断器的失败率反映真实流量。
type SuccessRecorder interface {
	RecordSuccess()
}

// LocalErrorRecorder 记录与存储健康无关的错误（缓存已关闭、空 key），不计入熔断器。
// 未实现时这类错误同样交给 Handle。
type LocalErrorRecorder interface {
	Record(ctx context.Context, err error, op, key string) error
}

// CircuitReporter 报告熔断器是否打开。打开期间 Provider 的数据操作以
// xfault.ErrCircuitOpen 拒绝。
type CircuitReporter interface {
	IsOpen() bool
}

// Option Provider 配置选项
type Option[T any] func(*options[T])

type options[T any] struct {
	storage          Storage[T]
	stats            Statistics
	strategy         EvictionStrategy
	cleanup          CleanupManager
	errs             ErrorHandler
	listeners        []Listener[T]
	logger           xlog.Logger
	observer         xmetrics.Observer
	name             string
	now              func() time.Time
	trackEntryAccess bool
}

func defaultOptions[T any]() options[T] {
	return options[T]{
		name:             "xcache",
		now:              time.Now,
		trackEntryAccess: true,
	}
}

// WithStorage 注入存储实现，默认 NewShardedStorage(DefaultShards)。
func WithStorage[T any](s Storage[T]) Option[T] {
	return func(o *options[T]) {
		if s != nil {
			o.storage = s
		}
	}
}

// WithStatistics 注入统计实现。
func WithStatistics[T any](s Statistics) Option[T] {
	return func(o *options[T]) {
		if s != nil {
			o.stats = s
		}
	}
}

// WithEvictionStrategy 注入淘汰策略，默认 LRUStrategy。
func WithEvictionStrategy[T any](s EvictionStrategy) Option[T] {
	return func(o *options[T]) {
		if s != nil {
			o.strategy = s
		}
	}
}

// WithCleanupManager 注入清理管理器。
func WithCleanupManager[T any](c CleanupManager) Option[T] {
	return func(o *options[T]) {
		if c != nil {
			o.cleanup = c
		}
	}
}

// WithErrorHandler 注入错误处理器，默认 xfault.Handler。
func WithErrorHandler[T any](h ErrorHandler) Option[T] {
	return func(o *options[T]) {
		if h != nil {
			o.errs = h
		}
	}
}

// WithListener 注册事件监听器，可多次调用。
func WithListener[T any](l Listener[T]) Option[T] {
	return func(o *options[T]) {
		if l != nil {
			o.listeners = append(o.listeners, l)
		}
	}
}

// WithLogger 设置日志记录器，默认 xlog.Default()。
func WithLogger[T any](l xlog.Logger) Option[T] {
	return func(o *options[T]) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithObserver 设置可观测性 Observer，默认不观测。
func WithObserver[T any](obs xmetrics.Observer) Option[T] {
	return func(o *options[T]) {
		o.observer = obs
	}
}

// WithName 设置缓存名称，用于日志、span 属性与熔断器名称。
func WithName[T any](name string) Option[T] {
	return func(o *options[T]) {
		if name != "" {
			o.name = name
		}
	}
}

// WithClock 替换时间源，用于测试过期行为。
func WithClock[T any](now func() time.Time) Option[T] {
	return func(o *options[T]) {
		if now != nil {
			o.now = now
		}
	}
}

// WithEntryAccessTracking 设置 GetEntry 是否算作一次 LRU 访问，默认 true。
func WithEntryAccessTracking[T any](enabled bool) Option[T] {
	return func(o *options[T]) {
		o.trackEntryAccess = enabled
	}
}

// SetOption Set 的单次写入选项
type SetOption func(*setOptions)

type setOptions struct {
	ttl    time.Duration
	hasTTL bool
}

// WithTTL 指定本次写入的 TTL，覆盖 DefaultTTL；<= 0 表示写入即过期。
func WithTTL(d time.Duration) SetOption {
	return func(o *setOptions) {
		o.ttl = d
		o.hasTTL = true
	}
}
