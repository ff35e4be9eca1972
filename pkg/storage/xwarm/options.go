package xwarm

import (
	"github.com/omeyang/xcachekit/pkg/observability/xlog"
	"github.com/omeyang/xcachekit/pkg/util/xcron"
)

const defaultMaxConcurrency = 4

// Option Warmer 配置选项
type Option func(*options)

type options struct {
	maxConcurrency int
	logger         xlog.Logger
	scheduler      *xcron.Scheduler
}

func defaultOptions() options {
	return options{
		maxConcurrency: defaultMaxConcurrency,
	}
}

// WithMaxConcurrency 设置每批并发数，默认 4。<= 0 时 New 返回 ErrInvalidConcurrency。
func WithMaxConcurrency(n int) Option {
	return func(o *options) {
		o.maxConcurrency = n
	}
}

// WithLogger 设置日志记录器
func WithLogger(l xlog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithScheduler 复用外部调度器。
// 未设置时 Schedule 会创建私有调度器，并在 Stop 时停止它；
// 外部调度器的生命周期由调用方负责。
func WithScheduler(s *xcron.Scheduler) Option {
	return func(o *options) {
		o.scheduler = s
	}
}
