package xpredict

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xcachekit/pkg/observability/xlog"
	"github.com/omeyang/xcachekit/pkg/storage/xcache"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
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

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	opts = append([]Option{WithClock(clock.Now), WithLogger(xlog.Discard())}, opts...)
	e, err := New(opts...)
	require.NoError(t, err)
	return e, clock
}

func TestNew_InvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
		want error
	}{
		{"model", WithModel("neural"), ErrInvalidModel},
		{"threshold", WithConfidenceThreshold(1.5), ErrInvalidOption},
		{"max predictions", WithMaxPredictions(0), ErrInvalidOption},
		{"max patterns", WithMaxPatterns(-1), ErrInvalidOption},
		{"prefetch concurrency", WithPrefetchConcurrency(0), ErrInvalidOption},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opt)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestEngine_RecordAccess(t *testing.T) {
	e, clock := newTestEngine(t)
	e.RecordAccess("a")
	clock.Advance(10 * time.Second)
	e.RecordAccess("a")
	clock.Advance(20 * time.Second)
	e.RecordAccess("a")
	e.RecordAccess("")

	p, ok := e.Pattern("a")
	require.True(t, ok)
	assert.Equal(t, int64(3), p.Frequency)
	assert.Equal(t, 15*time.Second, p.AvgInterval)
	assert.Equal(t, clock.Now(), p.LastAccess)
	assert.Equal(t, clock.Now().Add(-30*time.Second), p.FirstAccess)
	assert.Equal(t, 1, e.Len())

	_, ok = e.Pattern("missing")
	assert.False(t, ok)
}

func TestEngine_BoundedPatterns(t *testing.T) {
	e, _ := newTestEngine(t, WithMaxPatterns(2))
	e.RecordAccess("a")
	e.RecordAccess("b")
	e.RecordAccess("a")
	e.RecordAccess("c")

	keys := make([]string, 0, 2)
	for _, p := range e.Patterns() {
		keys = append(keys, p.Key)
	}
	assert.Equal(t, []string{"a", "c"}, keys)

	e.Reset()
	assert.Zero(t, e.Len())
}

func TestEngine_GeneratePredictions(t *testing.T) {
	tests := []struct {
		name  string
		model Model
		want  []Prediction
	}{
		{
			name:  "frequency",
			model: ModelFrequency,
			want: []Prediction{
				{Key: "hot", Confidence: 1, SuggestedTTL: 2 * time.Minute},
				{Key: "warm", Confidence: 0.5, SuggestedTTL: 2 * time.Hour},
			},
		},
		{
			name:  "recency",
			model: ModelRecency,
			want: []Prediction{
				{Key: "warm", Confidence: 1, SuggestedTTL: 2 * time.Hour},
				{Key: "hot", Confidence: 1 - 12.0/24, SuggestedTTL: 2 * time.Minute},
				{Key: "once", Confidence: 1 - 12.0/24, SuggestedTTL: time.Minute},
			},
		},
		{
			name:  "hybrid",
			model: ModelHybrid,
			want: []Prediction{
				{Key: "hot", Confidence: 0.75, SuggestedTTL: 2 * time.Minute},
				{Key: "warm", Confidence: 0.75, SuggestedTTL: 2 * time.Hour},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, clock := newTestEngine(t, WithModel(tt.model), WithDefaultTTL(time.Minute))

			// hot 与 once 的最后一次访问在 12h 前；warm 的最后一次访问为当前时刻
			for i := range 4 {
				if i > 0 {
					clock.Advance(time.Minute)
				}
				e.RecordAccess("hot")
			}
			e.RecordAccess("once")
			clock.Advance(11 * time.Hour)
			e.RecordAccess("warm")
			clock.Advance(time.Hour)
			e.RecordAccess("warm")

			got := e.GeneratePredictions()
			require.Len(t, got, len(tt.want))
			for i := range tt.want {
				assert.Equal(t, tt.want[i].Key, got[i].Key)
				assert.InDelta(t, tt.want[i].Confidence, got[i].Confidence, 1e-3)
				assert.Equal(t, tt.want[i].SuggestedTTL, got[i].SuggestedTTL)
			}
		})
	}
}

func TestEngine_RecencyDecaysToZero(t *testing.T) {
	e, clock := newTestEngine(t, WithModel(ModelRecency), WithConfidenceThreshold(0))
	e.RecordAccess("a")
	clock.Advance(48 * time.Hour)

	got := e.GeneratePredictions()
	require.Len(t, got, 1)
	assert.Zero(t, got[0].Confidence)
}

func TestEngine_MaxPredictions(t *testing.T) {
	e, _ := newTestEngine(t, WithMaxPredictions(2), WithModel(ModelFrequency))
	for _, k := range []string{"c", "a", "b"} {
		e.RecordAccess(k)
	}
	got := e.GeneratePredictions()
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Key)
	assert.Equal(t, "b", got[1].Key)
}

func newTestCache(t *testing.T, opts ...xcache.Option[string]) xcache.Provider[string] {
	t.Helper()
	cfg := xcache.DefaultConfig()
	cfg.CleanupInterval = 0
	opts = append([]xcache.Option[string]{xcache.WithLogger[string](xlog.Discard())}, opts...)
	c, err := xcache.New[string](cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestListener(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	c := newTestCache(t, xcache.WithListener[string](Listener[string](e)))

	_, _, _ = c.Get(ctx, "a")
	require.NoError(t, c.Set(ctx, "a", "v"))
	_, _, _ = c.Get(ctx, "a")

	p, ok := e.Pattern("a")
	require.True(t, ok)
	assert.Equal(t, int64(2), p.Frequency)
}

func TestPrefetch(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, WithModel(ModelFrequency), WithConfidenceThreshold(0))
	c := newTestCache(t)

	for _, k := range []string{"cached", "load", "fail"} {
		e.RecordAccess(k)
	}
	require.NoError(t, c.Set(ctx, "cached", "already"))

	report, err := Prefetch(ctx, e, c, func(_ context.Context, key string) (string, error) {
		if key == "fail" {
			return "", errors.New("backend down")
		}
		return "loaded:" + key, nil
	})
	require.NoError(t, err)
	assert.Equal(t, PrefetchReport{Predicted: 3, Cached: 1, Loaded: 1, Failed: 1}, report)

	v, ok, _ := c.Get(ctx, "load")
	assert.True(t, ok)
	assert.Equal(t, "loaded:load", v)

	entry, ok, _ := c.GetEntry(ctx, "load")
	require.True(t, ok)
	assert.Equal(t, defaultTTL, entry.TTL)

	_, err = Prefetch[string](ctx, e, c, nil)
	assert.ErrorIs(t, err, ErrNilLoader)
}
