// Package storage 提供进程内缓存相关的子包。
//
// 子包列表：
//   - xcache: 单实例缓存，含存储、统计、LRU 淘汰、过期清理与事件
//   - xcachemgr: 按 feature 隔离的缓存实例注册表
//   - xdepgraph: key 依赖图与级联失效
//   - xpredict: 基于访问模式的预测与预取
//   - xwarm: 按优先级分批预热
//
// 设计原则：
//   - 通过构造函数注入组件接口，不依赖全局状态
//   - 高级功能只依赖 xcache.Provider 契约，不触碰内部存储
//   - 内置可观测性（指标、追踪）
package storage
