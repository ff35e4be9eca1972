package xcache

import (
	"fmt"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Entry / Config / Stats
// ============================================================================

func TestEntry_Expired(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		ttl     time.Duration
		elapsed time.Duration
		want    bool
	}{
		{"zero ttl", 0, 0, true},
		{"negative ttl", -time.Second, 0, true},
		{"fresh", time.Minute, 0, false},
		{"boundary", time.Minute, time.Minute, false},
		{"past", time.Minute, time.Minute + time.Nanosecond, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := Entry[int]{Timestamp: base, TTL: tt.ttl}
			assert.Equal(t, tt.want, e.Expired(base.Add(tt.elapsed)))
		})
	}
}

func TestConfig_ApplyAndMerge(t *testing.T) {
	base := DefaultConfig()
	managerDefault := ConfigPatch{DefaultTTL: Ptr(time.Hour), MaxSize: Ptr(50)}
	feature := ConfigPatch{MaxSize: Ptr(10), EnableStats: Ptr(false)}

	got := base.Apply(managerDefault.Merge(feature))
	assert.Equal(t, time.Hour, got.DefaultTTL)
	assert.Equal(t, 10, got.MaxSize)
	assert.False(t, got.EnableStats)
	assert.Equal(t, base.CleanupInterval, got.CleanupInterval)
	assert.True(t, got.EnableLRU)

	assert.True(t, ConfigPatch{}.IsZero())
	assert.False(t, feature.IsZero())
	assert.Equal(t, base, Config{}.Apply(PatchOf(base)))
}

func TestHitRate(t *testing.T) {
	assert.Zero(t, HitRate(0, 0))
	assert.InDelta(t, 0.75, HitRate(3, 4), 1e-9)

	s := NewStatistics()
	s.RecordHit()
	s.RecordMiss()
	s.RecordEviction()
	st := s.Snapshot(7)
	assert.Equal(t, Stats{Size: 7, Hits: 1, Misses: 1, Evictions: 1, TotalRequests: 3, HitRate: 1.0 / 3}, st)
	s.Reset()
	assert.Equal(t, Stats{}, s.Snapshot(0))
}

// ============================================================================
// Storage
// ============================================================================

func TestShardedStorage(t *testing.T) {
	s := NewShardedStorage[string](3)
	assert.Len(t, s.shards, 4)

	now := time.Now()
	assert.False(t, s.Set("a", Entry[string]{Data: "1", Timestamp: now}))
	assert.True(t, s.Set("a", Entry[string]{Data: "2", Timestamp: now}))
	s.Set("b", Entry[string]{Data: "3"})

	e, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, "2", e.Data)

	e, ok = s.Touch("a", now.Add(time.Second))
	require.True(t, ok)
	assert.Equal(t, int64(1), e.AccessCount)
	_, ok = s.Touch("missing", now)
	assert.False(t, ok)

	assert.ElementsMatch(t, []string{"a", "b"}, s.Keys())
	assert.Equal(t, 2, s.Len())

	e, ok = s.Delete("b")
	require.True(t, ok)
	assert.Equal(t, "3", e.Data)
	_, ok = s.Delete("b")
	assert.False(t, ok)

	s.Clear()
	assert.Zero(t, s.Len())
	assert.Len(t, NewShardedStorage[int](0).shards, DefaultShards)
}

func TestShardedStorage_Concurrent(t *testing.T) {
	s := NewShardedStorage[int](DefaultShards)
	var wg sync.WaitGroup
	for g := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 100 {
				key := fmt.Sprintf("g%d-%d", g, i)
				s.Set(key, Entry[int]{Data: i})
				s.Touch(key, time.Now())
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1600, s.Len())
}

// ============================================================================
// Eviction
// ============================================================================

func TestLRUStrategy(t *testing.T) {
	s := NewLRUStrategy(3)
	_, ok := s.SelectEvictionCandidate()
	assert.False(t, ok)

	s.OnAccess("a")
	s.OnAccess("b")
	assert.False(t, s.ShouldEvict())
	s.OnAccess("c")
	assert.True(t, s.ShouldEvict())

	s.OnAccess("a")
	k, ok := s.SelectEvictionCandidate()
	require.True(t, ok)
	assert.Equal(t, "b", k)

	s.OnEviction("b")
	s.OnEviction("missing")
	assert.Equal(t, []string{"c", "a"}, s.Keys())

	s.SetMaxSize(2)
	assert.True(t, s.ShouldEvict())

	s.Reset()
	assert.Zero(t, s.Len())
}

// ============================================================================
// Pattern
// ============================================================================

func TestPattern(t *testing.T) {
	tests := []struct {
		name    string
		pattern Pattern
		key     string
		want    bool
	}{
		{"contains match", Contains("user:"), "app:user:1", true},
		{"contains miss", Contains("user:"), "post:1", false},
		{"empty contains matches all", Contains(""), "anything", true},
		{"regexp match", Regexp(regexp.MustCompile(`^user:\d+$`)), "user:42", true},
		{"regexp miss", Regexp(regexp.MustCompile(`^user:\d+$`)), "user:x", false},
		{"zero value", Pattern{}, "user:1", false},
		{"nil regexp", Regexp(nil), "user:1", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.pattern.Match(tt.key))
		})
	}

	assert.Equal(t, "contains:user:", Contains("user:").String())
	assert.Equal(t, "invalid", Pattern{}.String())

	p, err := CompilePattern(`^a`)
	require.NoError(t, err)
	assert.Equal(t, "regexp:^a", p.String())
	_, err = CompilePattern(`(`)
	assert.Error(t, err)
}

// ============================================================================
// Cleanup
// ============================================================================

type countingSweeper struct {
	calls atomic.Int32
	panic bool
}

func (s *countingSweeper) SweepExpired() int {
	s.calls.Add(1)
	if s.panic {
		panic("sweep failed")
	}
	return 1
}

func TestCleanupManager_Lifecycle(t *testing.T) {
	c := NewCleanupManager(2*time.Millisecond, nil)
	sw := &countingSweeper{}

	assert.ErrorIs(t, c.Start(nil), ErrNilSweeper)
	require.NoError(t, c.Start(sw))
	assert.True(t, c.IsRunning())
	assert.ErrorIs(t, c.Start(sw), ErrCleanupRunning)

	assert.Eventually(t, func() bool { return sw.calls.Load() >= 2 }, time.Second, time.Millisecond)

	c.Stop()
	c.Stop()
	assert.False(t, c.IsRunning())

	// 重复启停不泄漏 goroutine（由 goleak 验证）
	for range 5 {
		require.NoError(t, c.Start(sw))
		c.Stop()
	}
}

func TestCleanupManager_ZeroIntervalDisabled(t *testing.T) {
	c := NewCleanupManager(0, nil)
	sw := &countingSweeper{}
	require.NoError(t, c.Start(sw))
	assert.False(t, c.IsRunning())

	assert.Equal(t, 1, c.ForceCleanup())
	assert.Equal(t, int32(1), sw.calls.Load())

	c.SetInterval(time.Millisecond)
	assert.False(t, c.IsRunning(), "SetInterval does not start a stopped loop")
	c.Stop()
}

func TestCleanupManager_SetIntervalRestarts(t *testing.T) {
	c := NewCleanupManager(time.Hour, nil)
	sw := &countingSweeper{}
	require.NoError(t, c.Start(sw))
	defer c.Stop()

	c.SetInterval(time.Millisecond)
	assert.True(t, c.IsRunning())
	assert.Eventually(t, func() bool { return sw.calls.Load() > 0 }, time.Second, time.Millisecond)

	c.SetInterval(0)
	assert.False(t, c.IsRunning())
}

func TestCleanupManager_SweepPanicRecovered(t *testing.T) {
	c := NewCleanupManager(0, nil)
	require.NoError(t, c.Start(&countingSweeper{panic: true}))
	assert.NotPanics(t, func() { assert.Zero(t, c.ForceCleanup()) })
	assert.Zero(t, NewCleanupManager(0, nil).ForceCleanup())
}
