// Package xwarm 在请求到达之前预先填充缓存。
//
// 预热目标按优先级降序排列，按最大并发数切分批次：同一批次内并发加载，
// 批次之间顺序执行。单个目标的失败只计数与记录日志，不中断整轮预热。
//
// 用法：
//
//	w, err := xwarm.New(cache, func(ctx context.Context, pattern string) (User, error) {
//	    return repo.Load(ctx, pattern)
//	}, xwarm.WithMaxConcurrency(8))
//	w.SetTargets([]xwarm.Target{{Pattern: "user:hot", Priority: 10, TTL: time.Hour}})
//	report, err := w.Warm(ctx)
//
// 通过 Schedule 可以按 cron 表达式周期性地重新预热。
package xwarm
