package xanalytics

import (
	"time"

	"github.com/omeyang/xcachekit/pkg/observability/xlog"
	"github.com/omeyang/xcachekit/pkg/util/xcron"
)

// DefaultMaxSnapshots 默认保留的快照数（5 分钟一次，覆盖 24 小时）
const DefaultMaxSnapshots = 288

// Option Dashboard 配置选项
type Option func(*options)

type options struct {
	maxSnapshots int
	now          func() time.Time
	logger       xlog.Logger
	scheduler    *xcron.Scheduler
}

func defaultOptions() options {
	return options{
		maxSnapshots: DefaultMaxSnapshots,
		now:          time.Now,
	}
}

// WithMaxSnapshots 设置保留的快照数，超出时丢弃最旧的快照
func WithMaxSnapshots(n int) Option {
	return func(o *options) {
		o.maxSnapshots = n
	}
}

// WithClock 设置时钟，用于测试
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
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

// WithScheduler 复用外部调度器，生命周期由调用方负责
func WithScheduler(s *xcron.Scheduler) Option {
	return func(o *options) {
		o.scheduler = s
	}
}
