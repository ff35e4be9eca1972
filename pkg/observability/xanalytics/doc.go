// Package xanalytics 周期性记录缓存统计快照，用于趋势分析与导出。
//
// Dashboard 从 [StatsSource]（通常是 xcachemgr.Manager）拉取每个 feature 的
// 统计数据，保存最近 N 个快照，并提供：
//   - Trend：单个 feature 的命中率/容量走势
//   - Summary：快照窗口内的聚合
//   - Export：JSON 或 CSV 导出
//   - RegisterGauges：以 OTel 可观测仪表实时暴露当前统计
package xanalytics
