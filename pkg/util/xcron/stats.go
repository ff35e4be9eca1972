package xcron

import (
	"sync"
	"sync/atomic"
	"time"
)

// Stats 任务执行统计，线程安全。
type Stats struct {
	executions atomic.Int64
	failures   atomic.Int64
	panics     atomic.Int64

	mu           sync.RWMutex
	lastExecTime time.Time
	lastDuration time.Duration
	lastError    error
}

func newStats() *Stats {
	return &Stats{}
}

// Executions 返回总执行次数。
func (s *Stats) Executions() int64 { return s.executions.Load() }

// Failures 返回失败次数（含 panic）。
func (s *Stats) Failures() int64 { return s.failures.Load() }

// Panics 返回 panic 次数。
func (s *Stats) Panics() int64 { return s.panics.Load() }

// LastExecution 返回最后一次执行的开始时间、耗时与错误。
func (s *Stats) LastExecution() (time.Time, time.Duration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastExecTime, s.lastDuration, s.lastError
}

func (s *Stats) record(start time.Time, d time.Duration, err error, panicked bool) {
	s.executions.Add(1)
	if err != nil {
		s.failures.Add(1)
	}
	if panicked {
		s.panics.Add(1)
	}
	s.mu.Lock()
	s.lastExecTime = start
	s.lastDuration = d
	s.lastError = err
	s.mu.Unlock()
}
