// Package xcron 提供进程内定时任务调度，基于 robfig/cron/v3。
//
// 与直接使用 cron.Cron 相比，xcron 为每次执行补充了：
//   - 可取消的任务上下文（Stop 时取消）
//   - 单次执行超时
//   - panic 恢复
//   - 执行统计与结构化日志
//   - 可选的 xmetrics 链路追踪
//
// 用法：
//
//	s := xcron.New(xcron.WithLogger(logger))
//	_, err := s.AddFunc("*/5 * * * *", func(ctx context.Context) error {
//	    return warmer.Run(ctx)
//	}, xcron.WithName("warm"), xcron.WithTimeout(time.Minute))
//	s.Start()
//	defer func() { <-s.Stop().Done() }()
package xcron
