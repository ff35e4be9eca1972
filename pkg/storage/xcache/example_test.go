package xcache_test

import (
	"context"
	"fmt"
	"time"

	"github.com/omeyang/xcachekit/pkg/observability/xlog"
	"github.com/omeyang/xcachekit/pkg/storage/xcache"
)

func ExampleNew() {
	ctx := context.Background()
	cfg := xcache.DefaultConfig()
	cfg.MaxSize = 2
	cfg.CleanupInterval = 0

	cache, err := xcache.New[string](cfg,
		xcache.WithName[string]("users"),
		xcache.WithLogger[string](xlog.Discard()),
		xcache.WithListener[string](xcache.ListenerFuncs[string]{
			Evict: func(_ context.Context, key string, _ string) { fmt.Println("evicted", key) },
		}),
	)
	if err != nil {
		fmt.Println(err)
		return
	}
	defer cache.Close()

	_ = cache.Set(ctx, "user:1", "alice")
	_ = cache.Set(ctx, "user:2", "bob", xcache.WithTTL(time.Hour))
	_ = cache.Set(ctx, "user:3", "carol")

	v, ok, _ := cache.Get(ctx, "user:2")
	fmt.Println(v, ok)
	_, ok, _ = cache.Get(ctx, "user:1")
	fmt.Println(ok)

	st := cache.Stats()
	fmt.Println(st.Size, st.Hits, st.Misses, st.Evictions)
	// Output:
	// evicted user:1
	// bob true
	// false
	// 2 1 1 1
}

func ExampleProvider_InvalidatePattern() {
	ctx := context.Background()
	cfg := xcache.DefaultConfig()
	cfg.CleanupInterval = 0
	cache, _ := xcache.New[int](cfg, xcache.WithLogger[int](xlog.Discard()))
	defer cache.Close()

	_ = cache.Set(ctx, "user:1", 1)
	_ = cache.Set(ctx, "user:2", 2)
	_ = cache.Set(ctx, "post:1", 3)

	n, _ := cache.InvalidatePattern(ctx, xcache.Contains("user:"))
	fmt.Println(n, cache.Stats().Size)
	// Output: 2 1
}
