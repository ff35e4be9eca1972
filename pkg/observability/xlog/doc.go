// Package xlog 基于 log/slog 的结构化日志库，供缓存引擎各层共享。
//
// # 核心功能
//
//   - Builder 模式配置（输出目标、级别、格式、轮转）
//   - 自动从 context 注入 feature、correlation_id 以及 OTel trace_id/span_id（EnrichHandler，默认启用）
//   - 动态级别调整（运行时热更新）
//   - 缓存领域的便捷属性（Key、Feature、Pattern 等）
//
// # 创建 Logger
//
// 使用 Builder 模式（first-error-wins：遇到第一个配置错误后，后续错误不会覆盖它）：
//
//	logger, cleanup, err := xlog.New().
//		SetLevel(xlog.LevelDebug).
//		SetFormat("json").
//		SetRotation("/var/log/xcache/app.log", xlog.WithMaxSizeMB(50)).
//		Build()
//	if err != nil { ... }
//	defer cleanup()
//
// # 默认与静默 Logger
//
// 各组件的构造函数在未注入 Logger 时使用 [Default]（stderr、Info、text）。
// 测试中使用 [Discard] 屏蔽输出。
//
// # EnrichHandler 注意事项
//
// 对启用了 enrich 的 logger 调用 WithGroup 时，注入字段会被归入 group 下
// （slog handler 架构的固有限制）。
package xlog
