// Package xconf 加载缓存管理器的文件配置，并支持热重载。
//
// 配置文件为 YAML 或 JSON（按扩展名识别），经 koanf 解析为 Document：
//
//	default_cache:
//	  default_ttl: 5m
//	  max_size: 1000
//	  cleanup_interval: 1m
//	  enable_stats: true
//	  enable_lru: true
//	features:
//	  auth: { default_ttl: 30s, max_size: 100 }
//	warming:
//	  max_concurrency: 4
//	  schedule: "@every 5m"
//	  targets:
//	    - { pattern: "config:flags", priority: 10, ttl: 10m }
//	analytics:
//	  max_snapshots: 288
//	  schedule: "@every 1m"
//
// 时长字段接受 Go duration 字符串（"5m"）或整数（毫秒）。
// 缓存字段缺省时保持未指定，由 xcachemgr 按 默认值 < default_cache < features.<name> 合并。
//
// # 热重载
//
// Watch 监视配置文件所在目录（而非文件本身），兼容编辑器先写临时文件再 rename 的保存方式，
// 短时间内的多次变更经防抖合并为一次重载。
//
//	src, _ := xconf.Load("/etc/xcache/cache.yaml")
//	w, _ := xconf.Watch(src, func(doc xconf.Document, err error) {
//		if err == nil {
//			_ = mgr.ApplyConfig(doc.DefaultCache, doc.Features)
//		}
//	})
//	w.StartAsync()
//	defer w.Stop()
package xconf
