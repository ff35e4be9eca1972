package xcache

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/omeyang/xcachekit/pkg/observability/xlog"
)

// Listener 缓存事件监听器。
//
// 回调在触发事件的 goroutine 中同步执行，且不持有缓存内部锁，
// 可以安全地回调缓存本身。回调中的 panic 会被恢复并记录日志。
type Listener[T any] interface {
	OnHit(ctx context.Context, key string, data T)
	OnMiss(ctx context.Context, key string)
	OnEvict(ctx context.Context, key string, data T)
	OnError(ctx context.Context, err error, op, key string)
}

// ListenerFuncs 以函数字段实现 Listener，未设置的字段忽略对应事件。
type ListenerFuncs[T any] struct {
	Hit   func(ctx context.Context, key string, data T)
	Miss  func(ctx context.Context, key string)
	Evict func(ctx context.Context, key string, data T)
	Error func(ctx context.Context, err error, op, key string)
}

// OnHit 实现 Listener
func (f ListenerFuncs[T]) OnHit(ctx context.Context, key string, data T) {
	if f.Hit != nil {
		f.Hit(ctx, key, data)
	}
}

// OnMiss 实现 Listener
func (f ListenerFuncs[T]) OnMiss(ctx context.Context, key string) {
	if f.Miss != nil {
		f.Miss(ctx, key)
	}
}

// OnEvict 实现 Listener
func (f ListenerFuncs[T]) OnEvict(ctx context.Context, key string, data T) {
	if f.Evict != nil {
		f.Evict(ctx, key, data)
	}
}

// OnError 实现 Listener
func (f ListenerFuncs[T]) OnError(ctx context.Context, err error, op, key string) {
	if f.Error != nil {
		f.Error(ctx, err, op, key)
	}
}

// notifier 向所有监听器分发事件
type notifier[T any] struct {
	listeners []Listener[T]
	logger    xlog.Logger
}

func (n *notifier[T]) each(ctx context.Context, event string, fn func(Listener[T])) {
	for _, l := range n.listeners {
		n.safe(ctx, event, l, fn)
	}
}

func (n *notifier[T]) safe(ctx context.Context, event string, l Listener[T], fn func(Listener[T])) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error(ctx, "cache listener panicked",
				xlog.Component("xcache"), slog.String("event", event), slogPanic(r))
		}
	}()
	fn(l)
}

func (n *notifier[T]) hit(ctx context.Context, key string, data T) {
	n.each(ctx, "hit", func(l Listener[T]) { l.OnHit(ctx, key, data) })
}

func (n *notifier[T]) miss(ctx context.Context, key string) {
	n.each(ctx, "miss", func(l Listener[T]) { l.OnMiss(ctx, key) })
}

func (n *notifier[T]) evict(ctx context.Context, key string, data T) {
	n.each(ctx, "evict", func(l Listener[T]) { l.OnEvict(ctx, key, data) })
}

func (n *notifier[T]) failure(ctx context.Context, err error, op, key string) {
	n.each(ctx, "error", func(l Listener[T]) { l.OnError(ctx, err, op, key) })
}

func slogPanic(r any) slog.Attr {
	return xlog.Err(fmt.Errorf("panic: %v", r))
}
