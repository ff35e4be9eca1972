package xcache

import (
	"context"
	"sync"
	"time"

	"github.com/omeyang/xcachekit/pkg/observability/xlog"
)

// Sweeper 能够清理过期条目的对象，Provider 实现此接口。
type Sweeper interface {
	// SweepExpired 删除所有过期条目并返回删除数量。
	SweepExpired() int
}

// CleanupManager 后台过期清理，独立于请求路径运行。
type CleanupManager interface {
	// Start 以当前间隔启动清理循环；间隔 <= 0 时只记录 sweeper，不启动循环。
	Start(s Sweeper) error
	// Stop 停止清理循环并等待其退出，可重复调用。
	Stop()
	IsRunning() bool
	// ForceCleanup 立即执行一次清理。
	ForceCleanup() int
	// SetInterval 更新间隔，循环运行中时按新间隔重启。
	SetInterval(d time.Duration)
}

// NewCleanupManager 创建基于 time.Ticker 的 CleanupManager。
func NewCleanupManager(interval time.Duration, logger xlog.Logger) CleanupManager {
	if logger == nil {
		logger = xlog.Discard()
	}
	return &tickerCleanup{interval: interval, logger: logger}
}

type tickerCleanup struct {
	mu       sync.Mutex
	interval time.Duration
	sweeper  Sweeper
	logger   xlog.Logger

	stop chan struct{}
	done chan struct{}
}

func (c *tickerCleanup) Start(s Sweeper) error {
	if s == nil {
		return ErrNilSweeper
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop != nil {
		return ErrCleanupRunning
	}
	c.sweeper = s
	c.startLocked()
	return nil
}

// startLocked 调用方持有 c.mu
func (c *tickerCleanup) startLocked() {
	if c.interval <= 0 || c.sweeper == nil {
		return
	}
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	go c.loop(c.sweeper, c.interval, c.stop, c.done)
}

// stopLocked 调用方持有 c.mu；循环本身不获取 c.mu，因此持锁等待是安全的。
func (c *tickerCleanup) stopLocked() {
	if c.stop == nil {
		return
	}
	close(c.stop)
	<-c.done
	c.stop = nil
	c.done = nil
}

func (c *tickerCleanup) loop(s Sweeper, interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.sweep(s)
		}
	}
}

func (c *tickerCleanup) sweep(s Sweeper) int {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error(context.Background(), "cleanup sweep panicked", xlog.Component("xcache"), slogPanic(r))
		}
	}()
	n := s.SweepExpired()
	if n > 0 {
		c.logger.Debug(context.Background(), "expired entries swept", xlog.Component("xcache"), xlog.Count(int64(n)))
	}
	return n
}

func (c *tickerCleanup) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *tickerCleanup) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stop != nil
}

func (c *tickerCleanup) ForceCleanup() int {
	c.mu.Lock()
	s := c.sweeper
	c.mu.Unlock()
	if s == nil {
		return 0
	}
	return c.sweep(s)
}

func (c *tickerCleanup) SetInterval(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d == c.interval {
		return
	}
	c.interval = d
	if c.stop == nil {
		return
	}
	c.stopLocked()
	c.startLocked()
}
