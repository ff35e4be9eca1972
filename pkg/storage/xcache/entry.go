package xcache

import "time"

// Entry 缓存条目及其元数据。
type Entry[T any] struct {
	// Data 缓存值
	Data T
	// Timestamp 写入（或刷新）时间
	Timestamp time.Time
	// TTL 存活时间，<= 0 表示写入即过期
	TTL time.Duration
	// AccessCount 命中次数（仅 LRU 启用时维护）
	AccessCount int64
	// LastAccessed 最近一次访问时间
	LastAccessed time.Time
}

// Expired 判断条目在 now 时刻是否已过期。
func (e Entry[T]) Expired(now time.Time) bool {
	return e.TTL <= 0 || now.Sub(e.Timestamp) > e.TTL
}

// ExpiresAt 返回过期时间点。
func (e Entry[T]) ExpiresAt() time.Time {
	return e.Timestamp.Add(e.TTL)
}
