package xcache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/omeyang/xcachekit/pkg/observability/xlog"
)

// fakeClock 可手动推进的时钟
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.CleanupInterval = 0
	return cfg
}

// newTestCache 创建关闭后台清理、丢弃日志的缓存，测试结束自动 Close。
func newTestCache[T any](t *testing.T, cfg Config, opts ...Option[T]) Provider[T] {
	t.Helper()
	opts = append([]Option[T]{WithLogger[T](xlog.Discard())}, opts...)
	c, err := New[T](cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}
