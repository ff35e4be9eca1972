package xcron

import (
	"time"

	"github.com/robfig/cron/v3"

	"github.com/omeyang/xcachekit/pkg/observability/xlog"
	"github.com/omeyang/xcachekit/pkg/observability/xmetrics"
)

// SchedulerOption 调度器配置选项。
type SchedulerOption func(*schedulerOptions)

type schedulerOptions struct {
	logger   xlog.Logger
	observer xmetrics.Observer
	location *time.Location
	parser   cron.Parser
}

// standardParser 标准 5 段表达式，支持 @every / @daily 等描述符。
var standardParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

func defaultSchedulerOptions() *schedulerOptions {
	return &schedulerOptions{
		logger:   xlog.Default(),
		observer: xmetrics.NoopObserver{},
		location: time.Local,
		parser:   standardParser,
	}
}

// WithLogger 设置日志记录器。nil 忽略。
func WithLogger(logger xlog.Logger) SchedulerOption {
	return func(o *schedulerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithObserver 设置可观测性观察者，每次执行生成一个 span。nil 忽略。
func WithObserver(observer xmetrics.Observer) SchedulerOption {
	return func(o *schedulerOptions) {
		if observer != nil {
			o.observer = observer
		}
	}
}

// WithLocation 设置时区。默认 time.Local。
func WithLocation(loc *time.Location) SchedulerOption {
	return func(o *schedulerOptions) {
		if loc != nil {
			o.location = loc
		}
	}
}

// WithSeconds 启用秒级精度（6 段表达式）。
func WithSeconds() SchedulerOption {
	return func(o *schedulerOptions) {
		o.parser = cron.NewParser(
			cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
		)
	}
}

// JobOption 任务配置选项。
type JobOption func(*jobOptions)

type jobOptions struct {
	name      string
	timeout   time.Duration
	immediate bool
}

func defaultJobOptions() *jobOptions {
	return &jobOptions{}
}

// WithName 设置任务名，用于日志、统计与 span 名称。
func WithName(name string) JobOption {
	return func(o *jobOptions) {
		o.name = name
	}
}

// WithTimeout 设置单次执行超时。<= 0 表示不限制。
func WithTimeout(timeout time.Duration) JobOption {
	return func(o *jobOptions) {
		o.timeout = timeout
	}
}

// WithImmediate 注册后立即执行一次，不等待首次调度。
func WithImmediate() JobOption {
	return func(o *jobOptions) {
		o.immediate = true
	}
}
