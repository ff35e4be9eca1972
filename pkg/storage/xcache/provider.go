package xcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/omeyang/xcachekit/pkg/observability/xlog"
	"github.com/omeyang/xcachekit/pkg/observability/xmetrics"
	"github.com/omeyang/xcachekit/pkg/resilience/xfault"
)

// 操作名，用于日志、span 与错误上下文。
const (
	OpGet               = "get"
	OpSet               = "set"
	OpDelete            = "delete"
	OpHas               = "has"
	OpClear             = "clear"
	OpInvalidatePattern = "invalidate_pattern"
	OpGetEntry          = "get_entry"
	OpUpdateConfig      = "update_config"
)

const componentName = "xcache"

// Provider 进程内缓存。
//
// 所有方法并发安全。Close 之后除 Stats/Config/Close 外的操作返回 ErrClosed。
type Provider[T any] interface {
	// Get 返回未过期的值；未命中时返回零值和 false 并记录一次 miss。
	Get(ctx context.Context, key string) (T, bool, error)
	// Set 写入值，TTL 默认取 Config.DefaultTTL。
	Set(ctx context.Context, key string, data T, opts ...SetOption) error
	// Delete 删除 key，返回 key 是否存在（已过期但未清理也算存在）。
	Delete(ctx context.Context, key string) (bool, error)
	// Has 报告 key 是否存在且未过期，不计入统计。
	Has(ctx context.Context, key string) (bool, error)
	// Clear 删除所有条目，统计保持不变。
	Clear(ctx context.Context) error
	// InvalidatePattern 删除所有匹配的 key 并返回删除数量。
	InvalidatePattern(ctx context.Context, p Pattern) (int, error)
	// GetEntry 返回包含元数据的条目，不计入命中统计。
	GetEntry(ctx context.Context, key string) (Entry[T], bool, error)
	Stats() Stats
	ResetStats()
	Config() Config
	// UpdateConfig 字段级更新配置，缩容时立即淘汰多余条目。
	UpdateConfig(p ConfigPatch) error
	// Close 停止后台清理并释放存储，可重复调用。
	Close() error
}

type provider[T any] struct {
	mu  sync.RWMutex
	cfg Config

	name     string
	storage  Storage[T]
	stats    Statistics
	strategy EvictionStrategy
	cleanup  CleanupManager
	errs     ErrorHandler
	success  SuccessRecorder
	local    LocalErrorRecorder
	circuit  CircuitReporter
	events   *notifier[T]
	logger   xlog.Logger
	observer xmetrics.Observer
	opts     options[T]

	closed atomic.Bool
}

// New 创建 Provider 并启动后台清理。
func New[T any](cfg Config, opts ...Option[T]) (Provider[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := defaultOptions[T]()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.logger == nil {
		o.logger = xlog.Default()
	}
	logger := o.logger.With(xlog.Component(componentName), slog.String("cache", o.name))

	if o.storage == nil {
		o.storage = NewShardedStorage[T](DefaultShards)
	}
	if o.stats == nil {
		o.stats = NewStatistics()
	}
	if o.strategy == nil {
		o.strategy = NewLRUStrategy(cfg.MaxSize)
	} else {
		o.strategy.SetMaxSize(cfg.MaxSize)
	}
	if o.cleanup == nil {
		o.cleanup = NewCleanupManager(cfg.CleanupInterval, logger)
	} else {
		o.cleanup.SetInterval(cfg.CleanupInterval)
	}
	if o.errs == nil {
		h, err := xfault.NewHandler(xfault.WithName(o.name), xfault.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("xcache: create error handler: %w", err)
		}
		o.errs = h
	}

	p := &provider[T]{
		cfg:      cfg,
		name:     o.name,
		storage:  o.storage,
		stats:    o.stats,
		strategy: o.strategy,
		cleanup:  o.cleanup,
		errs:     o.errs,
		events:   &notifier[T]{listeners: o.listeners, logger: logger},
		logger:   logger,
		observer: o.observer,
		opts:     o,
	}
	p.success, _ = o.errs.(SuccessRecorder)
	p.local, _ = o.errs.(LocalErrorRecorder)
	p.circuit, _ = o.errs.(CircuitReporter)
	if err := p.cleanup.Start(p); err != nil {
		return nil, fmt.Errorf("xcache: start cleanup: %w", err)
	}
	return p, nil
}

func (p *provider[T]) start(ctx context.Context, op, key string) (context.Context, xmetrics.Span) {
	attrs := []xmetrics.Attr{xmetrics.String("cache", p.name)}
	if key != "" {
		attrs = append(attrs, xmetrics.String(xlog.KeyCacheKey, key))
	}
	return xmetrics.Start(ctx, p.observer, xmetrics.SpanOptions{
		Component: componentName,
		Operation: op,
		Attrs:     attrs,
	})
}

// fail 把错误交给 ErrorHandler 与监听器，返回处理后的错误。
func (p *provider[T]) fail(ctx context.Context, err error, op, key string) error {
	handled := p.errs.Handle(ctx, err, op, key)
	if handled == nil {
		handled = err
	}
	p.events.failure(ctx, handled, op, key)
	return handled
}

// reject 处理调用方误用或本地状态错误，这类错误不计入熔断器。
func (p *provider[T]) reject(ctx context.Context, err error, op, key string) error {
	if p.local == nil {
		return p.fail(ctx, err, op, key)
	}
	handled := p.local.Record(ctx, err, op, key)
	if handled == nil {
		handled = err
	}
	p.events.failure(ctx, handled, op, key)
	return handled
}

// succeed 向 ErrorHandler 报告一次成功操作
func (p *provider[T]) succeed() {
	if p.success != nil {
		p.success.RecordSuccess()
	}
}

// check 校验关闭状态、key 与熔断器，requireKey 为 false 时跳过 key 校验。
func (p *provider[T]) check(ctx context.Context, op, key string, requireKey bool) error {
	if p.closed.Load() {
		return p.reject(ctx, ErrClosed, op, key)
	}
	if requireKey && key == "" {
		return p.reject(ctx, ErrEmptyKey, op, key)
	}
	if p.circuit != nil && p.circuit.IsOpen() {
		err := fmt.Errorf("%w: %s", xfault.ErrCircuitOpen, op)
		p.events.failure(ctx, err, op, key)
		return err
	}
	return nil
}

func normalize(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

// Get 返回未过期的值
func (p *provider[T]) Get(ctx context.Context, key string) (T, bool, error) {
	ctx, span := p.start(normalize(ctx), OpGet, key)
	var zero T
	if err := p.check(ctx, OpGet, key, true); err != nil {
		span.End(xmetrics.Result{Err: err})
		return zero, false, err
	}

	p.mu.RLock()
	now := p.opts.now()
	entry, ok := p.storage.Get(key)
	if ok && entry.Expired(now) {
		ok = false
	}
	if ok && p.cfg.EnableLRU {
		if touched, found := p.storage.Touch(key, now); found {
			entry = touched
		}
		p.strategy.OnAccess(key)
	}
	recordStats := p.cfg.EnableStats
	p.mu.RUnlock()

	if !ok {
		if recordStats {
			p.stats.RecordMiss()
		}
		p.events.miss(ctx, key)
		p.succeed()
		span.End(xmetrics.Result{Status: xmetrics.StatusMiss})
		return zero, false, nil
	}
	if recordStats {
		p.stats.RecordHit()
	}
	p.events.hit(ctx, key, entry.Data)
	p.succeed()
	span.End(xmetrics.Result{Status: xmetrics.StatusHit})
	return entry.Data, true, nil
}

// Set 写入值；写入新 key 且已满时先淘汰一个 LRU 候选。
func (p *provider[T]) Set(ctx context.Context, key string, data T, opts ...SetOption) error {
	ctx, span := p.start(normalize(ctx), OpSet, key)
	if err := p.check(ctx, OpSet, key, true); err != nil {
		span.End(xmetrics.Result{Err: err})
		return err
	}

	var so setOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&so)
		}
	}

	p.mu.Lock()
	ttl := p.cfg.DefaultTTL
	if so.hasTTL {
		ttl = so.ttl
	}
	var victim evicted[T]
	if _, exists := p.storage.Get(key); !exists && p.cfg.EnableLRU && p.strategy.ShouldEvict() {
		victim = p.evictOneLocked()
	}
	now := p.opts.now()
	p.storage.Set(key, Entry[T]{Data: data, Timestamp: now, TTL: ttl, LastAccessed: now})
	if p.cfg.EnableLRU {
		p.strategy.OnAccess(key)
	}
	recordStats := p.cfg.EnableStats
	p.mu.Unlock()

	if victim.ok {
		p.afterEvict(ctx, []evicted[T]{victim}, recordStats)
	}
	p.succeed()
	span.End(xmetrics.Result{})
	return nil
}

type evicted[T any] struct {
	key   string
	entry Entry[T]
	ok    bool
}

// evictOneLocked 淘汰一个候选。策略中可能残留存储里已不存在的 key，
// 这些 key 会被跳过，直到真正删除一个条目或候选耗尽。调用方持有写锁。
func (p *provider[T]) evictOneLocked() evicted[T] {
	for {
		key, ok := p.strategy.SelectEvictionCandidate()
		if !ok {
			return evicted[T]{}
		}
		p.strategy.OnEviction(key)
		if e, existed := p.storage.Delete(key); existed {
			return evicted[T]{key: key, entry: e, ok: true}
		}
	}
}

// afterEvict 在释放锁之后记录统计并触发 OnEvict。
func (p *provider[T]) afterEvict(ctx context.Context, victims []evicted[T], recordStats bool) {
	for _, v := range victims {
		if recordStats {
			p.stats.RecordEviction()
		}
		p.events.evict(ctx, v.key, v.entry.Data)
		p.logger.Debug(ctx, "cache entry evicted", xlog.Key(v.key))
	}
}

// Delete 删除 key
func (p *provider[T]) Delete(ctx context.Context, key string) (bool, error) {
	ctx, span := p.start(normalize(ctx), OpDelete, key)
	if err := p.check(ctx, OpDelete, key, true); err != nil {
		span.End(xmetrics.Result{Err: err})
		return false, err
	}

	p.mu.Lock()
	_, existed := p.storage.Delete(key)
	p.strategy.OnEviction(key)
	p.mu.Unlock()

	p.succeed()
	span.End(xmetrics.Result{})
	return existed, nil
}

// Has 报告 key 是否存在且未过期
func (p *provider[T]) Has(ctx context.Context, key string) (bool, error) {
	ctx, span := p.start(normalize(ctx), OpHas, key)
	if err := p.check(ctx, OpHas, key, true); err != nil {
		span.End(xmetrics.Result{Err: err})
		return false, err
	}

	p.mu.RLock()
	entry, ok := p.storage.Get(key)
	live := ok && !entry.Expired(p.opts.now())
	p.mu.RUnlock()

	p.succeed()
	span.End(xmetrics.Result{})
	return live, nil
}

// Clear 删除所有条目，不重置统计
func (p *provider[T]) Clear(ctx context.Context) error {
	ctx, span := p.start(normalize(ctx), OpClear, "")
	if err := p.check(ctx, OpClear, "", false); err != nil {
		span.End(xmetrics.Result{Err: err})
		return err
	}

	p.mu.Lock()
	n := p.storage.Len()
	p.storage.Clear()
	p.strategy.Reset()
	p.mu.Unlock()

	p.logger.Info(ctx, "cache cleared", xlog.Count(int64(n)))
	p.succeed()
	span.End(xmetrics.Result{})
	return nil
}

// InvalidatePattern 删除所有匹配 pattern 的 key
func (p *provider[T]) InvalidatePattern(ctx context.Context, pattern Pattern) (int, error) {
	ctx, span := p.start(normalize(ctx), OpInvalidatePattern, "")
	if err := p.check(ctx, OpInvalidatePattern, "", false); err != nil {
		span.End(xmetrics.Result{Err: err})
		return 0, err
	}
	if !pattern.Valid() {
		err := p.reject(ctx, ErrInvalidPattern, OpInvalidatePattern, "")
		span.End(xmetrics.Result{Err: err})
		return 0, err
	}

	removed := 0
	p.mu.Lock()
	for _, key := range p.storage.Keys() {
		if !pattern.Match(key) {
			continue
		}
		if _, ok := p.storage.Delete(key); ok {
			removed++
		}
		p.strategy.OnEviction(key)
	}
	p.mu.Unlock()

	p.logger.Info(ctx, "cache pattern invalidated", xlog.Pattern(pattern.String()), xlog.Count(int64(removed)))
	p.succeed()
	span.End(xmetrics.Result{Attrs: []xmetrics.Attr{xmetrics.Int("removed", removed)}})
	return removed, nil
}

// GetEntry 返回未过期条目及其元数据
func (p *provider[T]) GetEntry(ctx context.Context, key string) (Entry[T], bool, error) {
	ctx, span := p.start(normalize(ctx), OpGetEntry, key)
	if err := p.check(ctx, OpGetEntry, key, true); err != nil {
		span.End(xmetrics.Result{Err: err})
		return Entry[T]{}, false, err
	}

	p.mu.RLock()
	now := p.opts.now()
	entry, ok := p.storage.Get(key)
	if ok && entry.Expired(now) {
		entry, ok = Entry[T]{}, false
	}
	if ok && p.opts.trackEntryAccess && p.cfg.EnableLRU {
		if touched, found := p.storage.Touch(key, now); found {
			entry = touched
		}
		p.strategy.OnAccess(key)
	}
	p.mu.RUnlock()

	p.succeed()
	span.End(xmetrics.Result{})
	return entry, ok, nil
}

// Stats 返回统计快照
func (p *provider[T]) Stats() Stats {
	return p.stats.Snapshot(p.storage.Len())
}

// ResetStats 清零统计
func (p *provider[T]) ResetStats() {
	p.stats.Reset()
}

// Config 返回当前配置
func (p *provider[T]) Config() Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg
}

// UpdateConfig 字段级更新配置
func (p *provider[T]) UpdateConfig(patch ConfigPatch) error {
	ctx := context.Background()
	// 配置更新不受熔断器限制
	if p.closed.Load() {
		return p.reject(ctx, ErrClosed, OpUpdateConfig, "")
	}

	p.mu.Lock()
	prev := p.cfg
	next := prev.Apply(patch)
	if err := next.Validate(); err != nil {
		p.mu.Unlock()
		return p.fail(ctx, err, OpUpdateConfig, "")
	}
	p.cfg = next
	p.strategy.SetMaxSize(next.MaxSize)

	var victims []evicted[T]
	switch {
	case !next.EnableLRU:
		p.strategy.Reset()
	case !prev.EnableLRU:
		// 重新启用 LRU 时访问顺序未知，以当前存储内容为初始顺序
		p.strategy.Reset()
		for _, key := range p.storage.Keys() {
			p.strategy.OnAccess(key)
		}
	}
	if next.EnableLRU {
		for p.storage.Len() > next.MaxSize {
			v := p.evictOneLocked()
			if !v.ok {
				break
			}
			victims = append(victims, v)
		}
	}
	p.mu.Unlock()

	p.afterEvict(ctx, victims, next.EnableStats)
	// 清理循环会获取 p.mu，必须在释放锁之后调整间隔
	if next.CleanupInterval != prev.CleanupInterval {
		p.cleanup.SetInterval(next.CleanupInterval)
		if !p.cleanup.IsRunning() && next.CleanupInterval > 0 && !p.closed.Load() {
			if err := p.cleanup.Start(p); err != nil && !errors.Is(err, ErrCleanupRunning) {
				p.logger.Warn(ctx, "restart cleanup failed", xlog.Err(err))
			}
		}
		// Close 可能在上面的检查之后完成，此时不能留下清理循环
		if p.closed.Load() {
			p.cleanup.Stop()
		}
	}
	p.logger.Info(ctx, "cache config updated",
		xlog.Count(int64(len(victims))),
		xlog.Duration(next.DefaultTTL),
	)
	return nil
}

// Close 停止后台清理并清空存储
func (p *provider[T]) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	p.cleanup.Stop()

	p.mu.Lock()
	p.storage.Clear()
	p.strategy.Reset()
	p.mu.Unlock()

	p.logger.Debug(context.Background(), "cache closed")
	return nil
}

// SweepExpired 删除过期条目，实现 Sweeper。
//
// 清理不触发 OnEvict，也不计入淘汰统计。
func (p *provider[T]) SweepExpired() int {
	if p.closed.Load() {
		return 0
	}
	removed := 0
	p.mu.Lock()
	now := p.opts.now()
	for _, key := range p.storage.Keys() {
		entry, ok := p.storage.Get(key)
		if !ok || !entry.Expired(now) {
			continue
		}
		p.storage.Delete(key)
		p.strategy.OnEviction(key)
		removed++
	}
	p.mu.Unlock()
	return removed
}
