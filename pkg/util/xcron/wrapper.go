package xcron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/omeyang/xcachekit/pkg/observability/xlog"
	"github.com/omeyang/xcachekit/pkg/observability/xmetrics"
)

// jobWrapper 包装原始任务，添加超时、panic 恢复、统计与追踪。
// 实现 cron.Job 接口，以便被 robfig/cron 调度。
type jobWrapper struct {
	job      Job
	opts     *jobOptions
	logger   xlog.Logger
	observer xmetrics.Observer
	stats    *Stats
	baseCtx  context.Context
}

// Run 实现 cron.Job 接口
func (w *jobWrapper) Run() {
	if w.baseCtx.Err() != nil {
		return
	}
	ctx := w.baseCtx
	if w.opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.opts.timeout)
		defer cancel()
	}

	ctx, span := xmetrics.Start(ctx, w.observer, xmetrics.SpanOptions{
		Component: "xcron",
		Operation: w.spanName(),
	})

	start := time.Now()
	panicked, err := w.execute(ctx)
	duration := time.Since(start)

	w.stats.record(start, duration, err, panicked)
	span.End(xmetrics.Result{Err: err})

	attrs := []slog.Attr{slog.String("job", w.opts.name), xlog.Duration(duration)}
	if err != nil {
		w.logger.Error(ctx, "job failed", append(attrs, xlog.Err(err))...)
		return
	}
	w.logger.Debug(ctx, "job completed", attrs...)
}

// execute 执行任务，panic 转换为错误
func (w *jobWrapper) execute(ctx context.Context) (panicked bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			err = fmt.Errorf("%w: %v", ErrJobPanic, r)
		}
	}()
	return false, w.job.Run(ctx)
}

func (w *jobWrapper) spanName() string {
	if w.opts.name == "" {
		return "job"
	}
	return w.opts.name
}
