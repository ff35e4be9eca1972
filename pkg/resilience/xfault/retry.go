package xfault

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v5"

	"github.com/omeyang/xcachekit/pkg/observability/xlog"
)

// RetryOptions 重试配置
type RetryOptions struct {
	// MaxRetries 首次调用之外的最大重试次数，负值按 0 处理
	MaxRetries int
	// RetryDelay 基础等待时间
	RetryDelay time.Duration
	// UseExponentialBackoff 为 true 时第 n 次重试等待 RetryDelay×n，否则固定 RetryDelay
	UseExponentialBackoff bool
}

// DefaultRetryOptions 返回默认重试配置：3 次重试，100ms 起步，递增退避
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		MaxRetries:            3,
		RetryDelay:            100 * time.Millisecond,
		UseExponentialBackoff: true,
	}
}

// Delay 返回第 n 次重试（从 1 开始）前的等待时间
func (o RetryOptions) Delay(n uint) time.Duration {
	if o.RetryDelay <= 0 {
		return 0
	}
	if o.UseExponentialBackoff && n > 0 {
		return o.RetryDelay * time.Duration(n)
	}
	return o.RetryDelay
}

// ExecuteWithRetry 带重试执行操作。
//
// 每次尝试都经过熔断器并单独记录。不可恢复错误与熔断拒绝不重试；
// ctx 取消会中断退避等待。返回最后一次尝试的 *Error。
func ExecuteWithRetry[T any](ctx context.Context, h *Handler, op, key string, opts RetryOptions, fn func(context.Context) (T, error)) (T, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}

	var logger xlog.Logger = xlog.Discard()
	if h != nil {
		logger = h.logger
	}

	return retry.NewWithData[T](
		retry.Context(ctx),
		retry.Attempts(uint(opts.MaxRetries)+1),
		retry.DelayType(func(n uint, _ error, _ retry.DelayContext) time.Duration {
			// retry-go v5 中 n 从 1 开始
			return opts.Delay(n)
		}),
		retry.RetryIf(shouldRetry),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.Debug(ctx, "retrying cache operation",
				xlog.Operation(op),
				xlog.Key(key),
				slog.Uint64("attempt", uint64(n)+1),
				xlog.Err(err))
		}),
	).Do(func() (T, error) {
		return Execute(ctx, h, op, key, fn)
	})
}

func shouldRetry(err error) bool {
	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrNilOperation) {
		return false
	}
	return IsRecoverable(err)
}
