package xfault

import (
	"context"
	"fmt"
)

// Execute 经熔断器执行一次操作。
//
// 熔断器拒绝时返回包装了 ErrCircuitOpen 的 *Error；操作失败（含 panic）时返回 *Error。
// 两种情况都会记录统计并通知 OnError。h 为 nil 时直接执行 fn。
func Execute[T any](ctx context.Context, h *Handler, op, key string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if ctx == nil {
		ctx = context.Background()
	}
	if fn == nil {
		if h == nil {
			return zero, ErrNilOperation
		}
		return zero, h.record(ctx, ErrNilOperation, op, key)
	}
	if h == nil {
		return safeCall(ctx, fn)
	}

	done, err := h.breaker().Allow()
	if err != nil {
		return zero, h.record(ctx, fmt.Errorf("%w: %w", ErrCircuitOpen, err), op, key)
	}

	v, err := safeCall(ctx, fn)
	done(err)
	if err != nil {
		return zero, h.record(ctx, err, op, key)
	}
	return v, nil
}

// HandleOperation 执行操作，失败时返回 fallback 而不是错误，仍会通知 OnError。
func HandleOperation[T any](ctx context.Context, h *Handler, op, key string, fallback T, fn func(context.Context) (T, error)) T {
	v, err := Execute(ctx, h, op, key, fn)
	if err != nil {
		return fallback
	}
	return v
}

// HandleSyncOperation 是 HandleOperation 的无 context 版本，适用于纯内存的同步调用。
func HandleSyncOperation[T any](h *Handler, op, key string, fallback T, fn func() (T, error)) T {
	if fn == nil {
		return HandleOperation[T](context.Background(), h, op, key, fallback, nil)
	}
	return HandleOperation(context.Background(), h, op, key, fallback, func(context.Context) (T, error) {
		return fn()
	})
}

// safeCall 将 panic 转换为错误，缓存故障不得击穿宿主程序
func safeCall[T any](ctx context.Context, fn func(context.Context) (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("xfault: operation panicked: %v", r)
		}
	}()
	return fn(ctx)
}
