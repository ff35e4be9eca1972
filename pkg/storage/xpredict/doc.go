// Package xpredict 根据访问模式预测即将被访问的缓存 key。
//
// Engine 记录每个 key 的访问次数、最近访问时间与平均访问间隔，
// 按所选模型打分：
//
//   - ModelFrequency：count / 所有 key 中的最大 count
//   - ModelRecency：max(0, 1 - 距上次访问小时数/24)
//   - ModelHybrid：两者的平均值
//
// 建议 TTL 为平均访问间隔的 2 倍；访问不足两次时使用默认 TTL。
//
// Engine 可以通过 Listener 挂到 xcache.Provider 上自动采集访问，
// Prefetch 则为预测命中但当前未缓存的 key 调用 loader 回源并写入。
package xpredict
