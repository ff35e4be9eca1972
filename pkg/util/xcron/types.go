package xcron

import (
	"context"

	"github.com/robfig/cron/v3"
)

// JobID 任务唯一标识，直接复用 cron.EntryID。
type JobID = cron.EntryID

// Job 定时任务接口。
// ctx 在调度器停止或超时时取消，任务应响应 ctx.Done()。
type Job interface {
	Run(ctx context.Context) error
}

// JobFunc 函数适配器，将普通函数转换为 [Job]。
type JobFunc func(ctx context.Context) error

// Run 实现 [Job] 接口。
func (f JobFunc) Run(ctx context.Context) error {
	return f(ctx)
}
