package xfault

import (
	"context"
	"time"

	"github.com/omeyang/xcachekit/pkg/observability/xlog"
)

// 默认配置
const (
	defaultHistorySize      = 100
	defaultFailureThreshold = 0.5
	defaultMinRequests      = 10
	defaultWindow           = time.Minute
	defaultBucketPeriod     = 10 * time.Second
	defaultOpenTimeout      = 30 * time.Second
	defaultHalfOpenRequests = 1
)

// Option Handler 配置选项
type Option func(*options)

type options struct {
	name             string
	logger           xlog.Logger
	onError          func(ctx context.Context, err *Error)
	historySize      int
	failureThreshold float64
	minRequests      uint32
	window           time.Duration
	bucketPeriod     time.Duration
	openTimeout      time.Duration
	now              func() time.Time
}

func defaultOptions() options {
	return options{
		name:             "xfault",
		historySize:      defaultHistorySize,
		failureThreshold: defaultFailureThreshold,
		minRequests:      defaultMinRequests,
		window:           defaultWindow,
		bucketPeriod:     defaultBucketPeriod,
		openTimeout:      defaultOpenTimeout,
		now:              time.Now,
	}
}

// WithName 设置名称（熔断器名与日志 component）
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// WithLogger 设置日志记录器，默认 xlog.Default()
func WithLogger(l xlog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithOnError 设置错误通知回调。
//
// 回调同步执行，panic 会被捕获。每个被处理的错误（含兜底吞掉的错误）都会通知一次。
func WithOnError(fn func(ctx context.Context, err *Error)) Option {
	return func(o *options) {
		o.onError = fn
	}
}

// WithHistorySize 设置错误历史容量（超出后最旧的先被丢弃），默认 100
func WithHistorySize(n int) Option {
	return func(o *options) {
		o.historySize = n
	}
}

// WithFailureThreshold 设置熔断失败率阈值，默认 0.5
func WithFailureThreshold(ratio float64) Option {
	return func(o *options) {
		o.failureThreshold = ratio
	}
}

// WithMinRequests 设置触发熔断判定所需的窗口内最少请求数，默认 10
func WithMinRequests(n uint32) Option {
	return func(o *options) {
		if n > 0 {
			o.minRequests = n
		}
	}
}

// WithWindow 设置滑动统计窗口与桶周期，默认 1m / 10s
func WithWindow(window, bucket time.Duration) Option {
	return func(o *options) {
		if window > 0 {
			o.window = window
		}
		if bucket > 0 {
			o.bucketPeriod = bucket
		}
	}
}

// WithOpenTimeout 设置熔断打开后进入半开的等待时间，默认 30s
func WithOpenTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.openTimeout = d
		}
	}
}

// WithClock 设置时间源（测试用）
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
