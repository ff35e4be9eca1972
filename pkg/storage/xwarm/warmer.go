package xwarm

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/omeyang/xcachekit/pkg/observability/xlog"
	"github.com/omeyang/xcachekit/pkg/storage/xcache"
	"github.com/omeyang/xcachekit/pkg/util/xcron"
)

var (
	// ErrNilCache 表示缓存为 nil
	ErrNilCache = errors.New("xwarm: nil cache")
	// ErrNilLoader 表示加载函数为 nil
	ErrNilLoader = errors.New("xwarm: nil loader")
	// ErrInvalidConcurrency 表示并发数不合法
	ErrInvalidConcurrency = errors.New("xwarm: max concurrency must be positive")
	// ErrEmptyPattern 表示目标 pattern 为空
	ErrEmptyPattern = errors.New("xwarm: empty pattern")
	// ErrAlreadyScheduled 表示已存在周期预热任务
	ErrAlreadyScheduled = errors.New("xwarm: already scheduled")
)

// Target 预热目标。Pattern 同时作为缓存 key 与加载参数。
type Target struct {
	Pattern  string
	Priority int
	// TTL 写入时使用的 TTL，0 表示使用缓存默认 TTL
	TTL time.Duration
}

// Loader 按 pattern 加载预热数据
type Loader[T any] func(ctx context.Context, pattern string) (T, error)

// Failure 单个目标的失败记录
type Failure struct {
	Pattern string
	Err     error
}

// Report 一轮预热的结果
type Report struct {
	Total     int
	Succeeded int
	Failed    int
	// Skipped ctx 结束后未执行的目标数
	Skipped  int
	Batches  int
	Duration time.Duration
	Failures []Failure
}

// Warmer 缓存预热管理器
type Warmer[T any] struct {
	cache  xcache.Provider[T]
	load   Loader[T]
	opts   options
	logger xlog.Logger

	mu      sync.RWMutex
	targets []Target

	group singleflight.Group

	schedMu    sync.Mutex
	sched      *xcron.Scheduler
	ownSched   bool
	jobID      xcron.JobID
	scheduled  bool
	lastReport atomic.Pointer[Report]
}

// New 创建预热管理器
func New[T any](cache xcache.Provider[T], load Loader[T], opts ...Option) (*Warmer[T], error) {
	if cache == nil {
		return nil, ErrNilCache
	}
	if load == nil {
		return nil, ErrNilLoader
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxConcurrency <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidConcurrency, o.maxConcurrency)
	}
	logger := o.logger
	if logger == nil {
		logger = xlog.Default()
	}
	return &Warmer[T]{
		cache:  cache,
		load:   load,
		opts:   o,
		logger: logger.With(xlog.Component("xwarm")),
	}, nil
}

// SetTargets 替换预热目标列表
func (w *Warmer[T]) SetTargets(targets []Target) error {
	for _, t := range targets {
		if t.Pattern == "" {
			return ErrEmptyPattern
		}
	}
	w.mu.Lock()
	w.targets = slices.Clone(targets)
	w.mu.Unlock()
	return nil
}

// AddTarget 追加一个预热目标
func (w *Warmer[T]) AddTarget(t Target) error {
	if t.Pattern == "" {
		return ErrEmptyPattern
	}
	w.mu.Lock()
	w.targets = append(w.targets, t)
	w.mu.Unlock()
	return nil
}

// Targets 返回按优先级降序（同优先级保持插入顺序）排列的目标副本
func (w *Warmer[T]) Targets() []Target {
	w.mu.RLock()
	targets := slices.Clone(w.targets)
	w.mu.RUnlock()
	slices.SortStableFunc(targets, func(a, b Target) int {
		return cmp.Compare(b.Priority, a.Priority)
	})
	return targets
}

// LastReport 返回最近一轮预热的结果
func (w *Warmer[T]) LastReport() (Report, bool) {
	r := w.lastReport.Load()
	if r == nil {
		return Report{}, false
	}
	return *r, true
}

// Warm 执行一轮预热。
//
// 仅在 ctx 结束时返回错误；此时剩余批次不再执行，计入 Report.Skipped。
func (w *Warmer[T]) Warm(ctx context.Context) (Report, error) {
	start := time.Now()
	targets := w.Targets()
	report := Report{Total: len(targets)}

	var (
		succeeded atomic.Int64
		fmu       sync.Mutex
		failures  []Failure
	)
	size := w.opts.maxConcurrency
	for i := 0; i < len(targets); i += size {
		if ctx.Err() != nil {
			report.Skipped = len(targets) - i
			break
		}
		batch := targets[i:min(i+size, len(targets))]
		report.Batches++

		var g errgroup.Group
		for _, t := range batch {
			g.Go(func() error {
				if err := w.WarmTarget(ctx, t); err != nil {
					fmu.Lock()
					failures = append(failures, Failure{Pattern: t.Pattern, Err: err})
					fmu.Unlock()
					w.logger.Warn(ctx, "warm target failed",
						xlog.Pattern(t.Pattern), slog.Int("priority", t.Priority), xlog.Err(err))
					return nil
				}
				succeeded.Add(1)
				return nil
			})
		}
		_ = g.Wait() //nolint:errcheck // 任务内部不返回错误
	}

	report.Succeeded = int(succeeded.Load())
	report.Failed = len(failures)
	report.Failures = failures
	report.Duration = time.Since(start)
	w.lastReport.Store(&report)

	w.logger.Info(ctx, "warming finished",
		xlog.Count(int64(report.Succeeded)),
		slog.Int("failed", report.Failed),
		slog.Int("skipped", report.Skipped),
		xlog.Duration(report.Duration))
	return report, ctx.Err()
}

// WarmTarget 加载单个目标并写入缓存。
// 同一 pattern 的并发预热合并为一次加载。
func (w *Warmer[T]) WarmTarget(ctx context.Context, t Target) error {
	if t.Pattern == "" {
		return ErrEmptyPattern
	}
	_, err, _ := w.group.Do(t.Pattern, func() (v any, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("xwarm: loader panicked: %v", r)
			}
		}()
		data, err := w.load(ctx, t.Pattern)
		if err != nil {
			return nil, fmt.Errorf("load %q: %w", t.Pattern, err)
		}
		var setOpts []xcache.SetOption
		if t.TTL > 0 {
			setOpts = append(setOpts, xcache.WithTTL(t.TTL))
		}
		if err := w.cache.Set(ctx, t.Pattern, data, setOpts...); err != nil {
			return nil, fmt.Errorf("set %q: %w", t.Pattern, err)
		}
		return nil, nil
	})
	return err
}

// Schedule 按 cron 表达式周期性执行 Warm。
// 每个 Warmer 只允许一个周期任务，重复调用返回 ErrAlreadyScheduled。
func (w *Warmer[T]) Schedule(spec string, opts ...xcron.JobOption) error {
	w.schedMu.Lock()
	defer w.schedMu.Unlock()
	if w.scheduled {
		return ErrAlreadyScheduled
	}

	sched := w.opts.scheduler
	own := sched == nil
	if own {
		sched = xcron.New(xcron.WithLogger(w.logger))
	}
	jobOpts := append([]xcron.JobOption{xcron.WithName("xwarm")}, opts...)
	id, err := sched.AddFunc(spec, func(ctx context.Context) error {
		_, err := w.Warm(ctx)
		return err
	}, jobOpts...)
	if err != nil {
		return err
	}
	if own {
		sched.Start()
	}
	w.sched, w.ownSched, w.jobID, w.scheduled = sched, own, id, true
	return nil
}

// Stop 取消周期预热并等待正在执行的预热结束，可重复调用
func (w *Warmer[T]) Stop() {
	w.schedMu.Lock()
	defer w.schedMu.Unlock()
	if !w.scheduled {
		return
	}
	if w.ownSched {
		<-w.sched.Stop().Done()
	} else {
		w.sched.Remove(w.jobID)
	}
	w.sched, w.scheduled = nil, false
}
