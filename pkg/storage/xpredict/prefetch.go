package xpredict

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/omeyang/xcachekit/pkg/observability/xlog"
	"github.com/omeyang/xcachekit/pkg/storage/xcache"
)

// ErrNilLoader 表示 Prefetch 的 loader 为 nil
var ErrNilLoader = errors.New("xpredict: nil loader")

// LoadFunc 按 key 回源
type LoadFunc[T any] func(ctx context.Context, key string) (T, error)

// PrefetchReport 预取结果
type PrefetchReport struct {
	Predicted int
	// Cached 已在缓存中、无需回源的数量
	Cached int
	Loaded int
	Failed int
}

// Prefetch 为预测命中但缓存中不存在的 key 回源，并以建议 TTL 写入缓存。
//
// 单个 key 的失败只记录日志与计数，不中断其余 key；仅在 ctx 结束时返回错误。
func Prefetch[T any](ctx context.Context, e *Engine, cache xcache.Provider[T], load LoadFunc[T]) (PrefetchReport, error) {
	if load == nil {
		return PrefetchReport{}, ErrNilLoader
	}
	predictions := e.GeneratePredictions()
	report := PrefetchReport{Predicted: len(predictions)}

	var cached, loaded, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.prefetchConcurrency)
	for _, p := range predictions {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if has, err := cache.Has(gctx, p.Key); err == nil && has {
				cached.Add(1)
				return nil
			}
			v, err := load(gctx, p.Key)
			if err == nil {
				err = cache.Set(gctx, p.Key, v, xcache.WithTTL(p.SuggestedTTL))
			}
			if err != nil {
				failed.Add(1)
				e.logger.Warn(gctx, "prefetch failed", xlog.Key(p.Key), xlog.Err(err))
				return nil
			}
			loaded.Add(1)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // 任务内部不返回错误

	report.Cached = int(cached.Load())
	report.Loaded = int(loaded.Load())
	report.Failed = int(failed.Load())
	e.logger.Debug(ctx, "prefetch finished",
		xlog.Count(int64(report.Loaded)))
	return report, ctx.Err()
}
