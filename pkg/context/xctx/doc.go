// Package xctx 提供缓存调用链的上下文字段管理。
//
// 缓存引擎在多个层次之间传递两类请求级信息：
//   - feature        : 发起调用的功能缓存名（xcachemgr 注册表中的名字）
//   - correlation_id : 一次调用的关联标识，用于把错误、日志与指标串联起来
//
// # 命名约定
//
//	WithXxx(ctx, value)    - 注入：将 value 写入 context
//	Xxx(ctx)               - 读取：缺失时返回零值
//	RequireXxx(ctx)        - 强制读取：缺失时返回错误
//	EnsureXxx(ctx)         - 确保存在：已存在则返回，否则自动生成
//
// 日志系统通过 AppendAttrs 提取这些字段（见 xlog.EnrichHandler）。
package xctx
