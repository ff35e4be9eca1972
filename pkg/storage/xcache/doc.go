// Package xcache 提供进程内、带 TTL 的泛型缓存。
//
// # 组成
//
// Provider 把以下可替换组件编排在统一的请求/响应契约之后：
//
//   - Storage：分片 map，只存放 Entry，不含策略
//   - Statistics：命中/未命中/淘汰计数与命中率
//   - EvictionStrategy：LRU 访问顺序，决定是否淘汰以及淘汰谁
//   - CleanupManager：独立 goroutine 周期清理过期条目
//   - ErrorHandler：错误分类、日志与熔断统计（默认 xfault.Handler）
//
// 所有组件通过 Option 注入（WithStorage、WithStatistics 等），默认实现开箱即用。
//
// # 过期语义
//
// 条目在 now - Timestamp > TTL 时视为过期；TTL <= 0 的条目写入即过期。
// 过期条目在被清理前仍占用存储，但对 Get/Has/GetEntry 不可见。
//
// # 淘汰
//
// 启用 LRU 且已达到 MaxSize 时，写入新 key 前淘汰一个最久未访问的条目，
// 并触发 Listener.OnEvict。更新已存在的 key 不会触发淘汰。
// 写入路径串行化，因此并发写入下 Size 始终不超过 MaxSize。
//
// # 使用示例
//
//	cache, err := xcache.New[string](xcache.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer cache.Close()
//
//	_ = cache.Set(ctx, "user:1", "alice", xcache.WithTTL(time.Minute))
//	v, ok, err := cache.Get(ctx, "user:1")
//
// 回源加载使用 Loader，并发请求同一 key 时只回源一次：
//
//	loader, _ := xcache.NewLoader(cache)
//	v, err := loader.Load(ctx, "user:1", func(ctx context.Context) (string, error) {
//		return db.QueryName(ctx, 1)
//	})
package xcache
