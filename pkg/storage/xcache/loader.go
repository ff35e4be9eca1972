package xcache

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"
)

// defaultLoadTimeout 是脱离调用方取消链后回源的默认超时，防止 loadFn 挂起导致 goroutine 泄漏。
const defaultLoadTimeout = 30 * time.Second

// LoadFunc 回源函数
type LoadFunc[T any] func(ctx context.Context) (T, error)

// LoaderOption Loader 配置选项
type LoaderOption func(*loaderOptions)

type loaderOptions struct {
	timeout time.Duration
}

// WithLoadTimeout 设置回源超时。
//
//   - timeout == 0: 禁用超时（需确保 loadFn 不会无限阻塞）
//   - timeout < 0: 使用默认超时 30s
//   - timeout > 0: 使用指定超时
func WithLoadTimeout(timeout time.Duration) LoaderOption {
	return func(o *loaderOptions) {
		o.timeout = timeout
	}
}

// Loader 缓存回源加载器（Cache-Aside）。
//
// 未命中时调用 loadFn 并写回缓存；同一 key 的并发加载通过 singleflight 合并为一次。
// 回源在脱离调用方取消链的 context 中执行，首个调用方取消不会影响其他等待者。
type Loader[T any] struct {
	cache   Provider[T]
	group   singleflight.Group
	timeout time.Duration
}

// NewLoader 创建 Loader
func NewLoader[T any](cache Provider[T], opts ...LoaderOption) (*Loader[T], error) {
	if cache == nil {
		return nil, ErrNilCache
	}
	o := loaderOptions{timeout: -1}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return &Loader[T]{cache: cache, timeout: o.timeout}, nil
}

// Load 先查缓存，未命中时回源并写回。
//
// 写回失败只影响缓存，不影响返回值。
func (l *Loader[T]) Load(ctx context.Context, key string, loadFn LoadFunc[T], setOpts ...SetOption) (T, error) {
	var zero T
	if ctx == nil {
		ctx = context.Background()
	}
	if loadFn == nil {
		return zero, ErrNilLoader
	}

	v, ok, err := l.cache.Get(ctx, key)
	if err != nil {
		return zero, err
	}
	if ok {
		return v, nil
	}

	ch := l.group.DoChan(key, func() (any, error) {
		loadCtx, cancel := l.detach(ctx)
		defer cancel()

		// 二次检查：等待期间其他 goroutine 可能已写入
		if v, ok, err := l.cache.Get(loadCtx, key); err == nil && ok {
			return v, nil
		}
		v, err := safeLoad(loadCtx, loadFn)
		if err != nil {
			return zero, err
		}
		_ = l.cache.Set(loadCtx, key, v, setOpts...) //nolint:errcheck // 写回失败不影响本次结果
		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		// T 为接口类型且加载值为 nil 时断言失败，此时返回零值即 nil
		v, _ := res.Val.(T)
		return v, nil
	}
}

// Forget 使 key 的下一次 Load 不再复用进行中的回源。
func (l *Loader[T]) Forget(key string) {
	l.group.Forget(key)
}

func (l *Loader[T]) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	switch {
	case l.timeout == 0:
		return context.WithCancel(detached)
	case l.timeout < 0:
		return context.WithTimeout(detached, defaultLoadTimeout)
	default:
		return context.WithTimeout(detached, l.timeout)
	}
}

func safeLoad[T any](ctx context.Context, fn LoadFunc[T]) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrLoadPanic, r)
		}
	}()
	return fn(ctx)
}
