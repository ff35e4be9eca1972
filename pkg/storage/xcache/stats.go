package xcache

import "sync/atomic"

// Stats 缓存统计快照
type Stats struct {
	Size          int     `json:"size"`
	Hits          int64   `json:"hits"`
	Misses        int64   `json:"misses"`
	Evictions     int64   `json:"evictions"`
	TotalRequests int64   `json:"total_requests"`
	HitRate       float64 `json:"hit_rate"`
}

// Statistics 统计计数器。
//
// TotalRequests 在命中、未命中和触发淘汰时递增，只有 Reset 会清零。
type Statistics interface {
	RecordHit()
	RecordMiss()
	RecordEviction()
	// Snapshot 返回当前计数，size 由调用方提供。
	Snapshot(size int) Stats
	Reset()
}

// NewStatistics 创建基于原子计数的 Statistics。
func NewStatistics() Statistics {
	return &atomicStatistics{}
}

type atomicStatistics struct {
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
	total     atomic.Int64
}

func (s *atomicStatistics) RecordHit() {
	s.hits.Add(1)
	s.total.Add(1)
}

func (s *atomicStatistics) RecordMiss() {
	s.misses.Add(1)
	s.total.Add(1)
}

func (s *atomicStatistics) RecordEviction() {
	s.evictions.Add(1)
	s.total.Add(1)
}

func (s *atomicStatistics) Snapshot(size int) Stats {
	st := Stats{
		Size:          size,
		Hits:          s.hits.Load(),
		Misses:        s.misses.Load(),
		Evictions:     s.evictions.Load(),
		TotalRequests: s.total.Load(),
	}
	st.HitRate = HitRate(st.Hits, st.TotalRequests)
	return st
}

func (s *atomicStatistics) Reset() {
	s.hits.Store(0)
	s.misses.Store(0)
	s.evictions.Store(0)
	s.total.Store(0)
}

// HitRate 计算 hits / total，total 为 0 时返回 0。
func HitRate(hits, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
