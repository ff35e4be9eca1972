package xcache

import (
	"sync/atomic"

	"github.com/omeyang/xcachekit/pkg/util/xlru"
)

// EvictionStrategy 淘汰策略，与存储解耦，只维护 key 的顺序。
type EvictionStrategy interface {
	// OnAccess 记录一次访问（写入或命中）。
	OnAccess(key string)
	// OnEviction 移除 key，不存在时为空操作。
	OnEviction(key string)
	// ShouldEvict 报告写入新 key 前是否需要淘汰。
	ShouldEvict() bool
	// SelectEvictionCandidate 返回下一个淘汰候选，为空时返回 false。
	SelectEvictionCandidate() (string, bool)
	SetMaxSize(n int)
	Reset()
	Len() int
}

// LRUStrategy 最近最少使用策略：队首为最久未访问的 key。
type LRUStrategy struct {
	order   *xlru.Order[string]
	maxSize atomic.Int64
}

// NewLRUStrategy 创建 LRU 策略
func NewLRUStrategy(maxSize int) *LRUStrategy {
	s := &LRUStrategy{order: xlru.NewOrder[string](maxSize)}
	s.maxSize.Store(int64(maxSize))
	return s
}

// OnAccess 将 key 移到队尾
func (s *LRUStrategy) OnAccess(key string) { s.order.Touch(key) }

// OnEviction 移除 key
func (s *LRUStrategy) OnEviction(key string) { s.order.Remove(key) }

// ShouldEvict 跟踪的 key 数达到 MaxSize 时返回 true
func (s *LRUStrategy) ShouldEvict() bool {
	return int64(s.order.Len()) >= s.maxSize.Load()
}

// SelectEvictionCandidate 返回队首 key
func (s *LRUStrategy) SelectEvictionCandidate() (string, bool) {
	return s.order.Oldest()
}

// SetMaxSize 更新容量上限
func (s *LRUStrategy) SetMaxSize(n int) { s.maxSize.Store(int64(n)) }

// Reset 清空访问顺序
func (s *LRUStrategy) Reset() { s.order.Reset() }

// Len 返回跟踪的 key 数
func (s *LRUStrategy) Len() int { return s.order.Len() }

// Keys 返回从旧到新的 key 顺序
func (s *LRUStrategy) Keys() []string { return s.order.Keys() }
