package xcache

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// DefaultShards 默认分片数
const DefaultShards = 32

// Storage 条目存储，只负责存取，不含过期与淘汰策略。
type Storage[T any] interface {
	// Get 返回条目副本（包含已过期条目）。
	Get(key string) (Entry[T], bool)
	// Touch 递增 AccessCount 并更新 LastAccessed，返回更新后的副本。
	Touch(key string, now time.Time) (Entry[T], bool)
	// Set 写入条目，返回 key 是否已存在。
	Set(key string, entry Entry[T]) bool
	// Delete 删除条目并返回被删除的条目。
	Delete(key string) (Entry[T], bool)
	Keys() []string
	Len() int
	Clear()
}

type shard[T any] struct {
	mu      sync.RWMutex
	entries map[string]Entry[T]
}

// ShardedStorage 按 key 哈希分片的 map 存储，分片之间锁相互独立。
type ShardedStorage[T any] struct {
	shards []*shard[T]
	mask   uint64
}

// NewShardedStorage 创建分片存储，shards 会向上取整到 2 的幂，<= 0 时使用 DefaultShards。
func NewShardedStorage[T any](shards int) *ShardedStorage[T] {
	if shards <= 0 {
		shards = DefaultShards
	}
	n := 1
	for n < shards {
		n <<= 1
	}
	s := &ShardedStorage[T]{
		shards: make([]*shard[T], n),
		mask:   uint64(n - 1),
	}
	for i := range s.shards {
		s.shards[i] = &shard[T]{entries: make(map[string]Entry[T])}
	}
	return s
}

func (s *ShardedStorage[T]) shardFor(key string) *shard[T] {
	return s.shards[xxhash.Sum64String(key)&s.mask]
}

// Get 返回条目副本
func (s *ShardedStorage[T]) Get(key string) (Entry[T], bool) {
	sh := s.shardFor(key)
	sh.mu.RLock()
	e, ok := sh.entries[key]
	sh.mu.RUnlock()
	return e, ok
}

// Touch 记录一次访问
func (s *ShardedStorage[T]) Touch(key string, now time.Time) (Entry[T], bool) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := sh.entries[key]
	if !ok {
		return e, false
	}
	e.AccessCount++
	e.LastAccessed = now
	sh.entries[key] = e
	return e, true
}

// Set 写入条目
func (s *ShardedStorage[T]) Set(key string, entry Entry[T]) bool {
	sh := s.shardFor(key)
	sh.mu.Lock()
	_, existed := sh.entries[key]
	sh.entries[key] = entry
	sh.mu.Unlock()
	return existed
}

// Delete 删除条目
func (s *ShardedStorage[T]) Delete(key string) (Entry[T], bool) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	e, ok := sh.entries[key]
	if ok {
		delete(sh.entries, key)
	}
	sh.mu.Unlock()
	return e, ok
}

// Keys 返回所有 key 的快照，顺序不确定。
func (s *ShardedStorage[T]) Keys() []string {
	keys := make([]string, 0, s.Len())
	for _, sh := range s.shards {
		sh.mu.RLock()
		for k := range sh.entries {
			keys = append(keys, k)
		}
		sh.mu.RUnlock()
	}
	return keys
}

// Len 返回条目数（包含已过期但未清理的条目）。
func (s *ShardedStorage[T]) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.entries)
		sh.mu.RUnlock()
	}
	return n
}

// Clear 清空所有分片
func (s *ShardedStorage[T]) Clear() {
	for _, sh := range s.shards {
		sh.mu.Lock()
		clear(sh.entries)
		sh.mu.Unlock()
	}
}
