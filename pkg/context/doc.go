// Package context 提供上下文相关的子包。
//
// 子包列表：
//   - xctx: 在 context.Context 中传递 feature 名与关联 ID
//
// 设计原则：
//   - 所有上下文信息通过 context.Context 传递，不使用全局变量
//   - 日志与指标从 context 中自动提取这些字段
package context
