// Package observability 提供可观测性相关的子包。
//
// 子包列表：
//   - xlog: 结构化日志，基于 log/slog 扩展，支持文件轮转
//   - xmetrics: 缓存操作的 OTel 追踪与指标，以及缓存事件计数
//   - xanalytics: 统计快照、趋势、导出与实时仪表
//
// 设计原则：
//   - 遵循 OpenTelemetry 语义规范
//   - 自动从 context 中提取 feature、关联 ID 与追踪信息注入日志
package observability
