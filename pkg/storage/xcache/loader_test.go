package xcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_Load(t *testing.T) {
	ctx := context.Background()
	c := newTestCache[string](t, testConfig())
	l, err := NewLoader(c)
	require.NoError(t, err)

	var calls atomic.Int32
	load := func(context.Context) (string, error) {
		calls.Add(1)
		return "loaded", nil
	}

	v, err := l.Load(ctx, "k", load)
	require.NoError(t, err)
	assert.Equal(t, "loaded", v)

	v, err = l.Load(ctx, "k", load)
	require.NoError(t, err)
	assert.Equal(t, "loaded", v)
	assert.Equal(t, int32(1), calls.Load())

	cached, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "loaded", cached)
}

func TestLoader_Singleflight(t *testing.T) {
	ctx := context.Background()
	c := newTestCache[int](t, testConfig())
	l, err := NewLoader(c)
	require.NoError(t, err)

	var calls atomic.Int32
	release := make(chan struct{})
	load := func(context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 42, nil
	}

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := l.Load(ctx, "hot", load)
			assert.NoError(t, err)
			assert.Equal(t, 42, v)
		}()
	}
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())
}

func TestLoader_Errors(t *testing.T) {
	ctx := context.Background()
	c := newTestCache[string](t, testConfig())

	_, err := NewLoader[string](nil)
	assert.ErrorIs(t, err, ErrNilCache)

	l, err := NewLoader(c, WithLoadTimeout(time.Second))
	require.NoError(t, err)

	_, err = l.Load(ctx, "k", nil)
	assert.ErrorIs(t, err, ErrNilLoader)

	boom := errors.New("db down")
	_, err = l.Load(ctx, "k", func(context.Context) (string, error) { return "", boom })
	assert.ErrorIs(t, err, boom)
	has, _ := c.Has(ctx, "k")
	assert.False(t, has, "failed loads are not cached")

	_, err = l.Load(ctx, "p", func(context.Context) (string, error) { panic("bad loader") })
	assert.ErrorIs(t, err, ErrLoadPanic)

	_, err = l.Load(ctx, "", func(context.Context) (string, error) { return "v", nil })
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestLoader_CallerCancel(t *testing.T) {
	c := newTestCache[string](t, testConfig())
	l, err := NewLoader(c, WithLoadTimeout(0))
	require.NoError(t, err)

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		defer close(done)
		_, err := l.Load(ctx, "slow", func(loadCtx context.Context) (string, error) {
			close(started)
			<-release
			// 调用方取消不影响回源
			return "v", loadCtx.Err()
		})
		assert.ErrorIs(t, err, context.Canceled)
	}()

	<-started
	cancel()
	<-done
	close(release)

	assert.Eventually(t, func() bool {
		has, _ := c.Has(context.Background(), "slow")
		return has
	}, time.Second, time.Millisecond)
}

func TestLoader_NilInterfaceValue(t *testing.T) {
	c := newTestCache[any](t, testConfig())
	l, err := NewLoader(c)
	require.NoError(t, err)

	v, err := l.Load(context.Background(), "nil", func(context.Context) (any, error) { return nil, nil })
	require.NoError(t, err)
	assert.Nil(t, v)
}
