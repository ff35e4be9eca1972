package xcachemgr

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/omeyang/xcachekit/pkg/context/xctx"
	"github.com/omeyang/xcachekit/pkg/observability/xlog"
	"github.com/omeyang/xcachekit/pkg/storage/xcache"
)

// Manager feature → 缓存实例的注册表，并发安全。
type Manager struct {
	mu       sync.RWMutex
	caches   map[string]xcache.Provider[any]
	defaults xcache.ConfigPatch
	features map[string]xcache.ConfigPatch
	closed   bool

	opts   options
	logger xlog.Logger
}

// New 创建管理器
func New(opts ...Option) *Manager {
	o := options{features: make(map[string]xcache.ConfigPatch)}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.logger == nil {
		o.logger = xlog.Default()
	}
	return &Manager{
		caches:   make(map[string]xcache.Provider[any]),
		defaults: o.defaults,
		features: maps.Clone(o.features),
		opts:     o,
		logger:   o.logger.With(xlog.Component("xcachemgr")),
	}
}

// ConfigFor 返回 feature 的合并配置（不创建缓存）
func (m *Manager) ConfigFor(name string) xcache.Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.configLocked(name)
}

func (m *Manager) configLocked(name string) xcache.Config {
	return xcache.DefaultConfig().Apply(m.defaults.Merge(m.features[name]))
}

// GetCache 返回 feature 的缓存，首次调用时创建。
func (m *Manager) GetCache(name string) (xcache.Provider[any], error) {
	if name == "" {
		return nil, ErrEmptyFeature
	}

	m.mu.RLock()
	c, ok := m.caches[name]
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}
	if ok {
		return c, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	if c, ok := m.caches[name]; ok {
		return c, nil
	}

	cfg := m.configLocked(name)
	cacheOpts := []xcache.Option[any]{
		xcache.WithName[any](name),
		xcache.WithLogger[any](m.opts.logger.With(xlog.Feature(name))),
		xcache.WithObserver[any](m.opts.observer),
	}
	if m.opts.listeners != nil {
		for _, l := range m.opts.listeners(name) {
			cacheOpts = append(cacheOpts, xcache.WithListener[any](l))
		}
	}
	cacheOpts = append(cacheOpts, m.opts.cacheOpts...)

	c, err := xcache.New[any](cfg, cacheOpts...)
	if err != nil {
		return nil, fmt.Errorf("xcachemgr: create cache %q: %w", name, err)
	}
	m.caches[name] = c
	m.logger.Info(context.Background(), "feature cache created",
		xlog.Feature(name), xlog.Count(int64(cfg.MaxSize)), xlog.Duration(cfg.DefaultTTL))
	return c, nil
}

func (m *Manager) lookup(name string) (xcache.Provider[any], bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, false, ErrClosed
	}
	c, ok := m.caches[name]
	return c, ok, nil
}

// snapshot 按 feature 名排序返回当前实例
func (m *Manager) snapshot() ([]string, []xcache.Provider[any], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, nil, ErrClosed
	}
	names := slices.Sorted(maps.Keys(m.caches))
	caches := make([]xcache.Provider[any], len(names))
	for i, name := range names {
		caches[i] = m.caches[name]
	}
	return names, caches, nil
}

// InvalidateFeature 清空 feature 的缓存；未创建的 feature 为空操作。
func (m *Manager) InvalidateFeature(ctx context.Context, name string) error {
	c, ok, err := m.lookup(name)
	if err != nil || !ok {
		return err
	}
	ctx = withFeature(ctx, name)
	if err := c.Clear(ctx); err != nil {
		return fmt.Errorf("xcachemgr: invalidate %q: %w", name, err)
	}
	return nil
}

// InvalidatePattern 在所有实例上执行模式失效，返回删除总数。
//
// 单个实例失败不影响其他实例，所有错误合并返回。
func (m *Manager) InvalidatePattern(ctx context.Context, p xcache.Pattern) (int, error) {
	names, caches, err := m.snapshot()
	if err != nil {
		return 0, err
	}
	total := 0
	var errs []error
	for i, c := range caches {
		n, err := c.InvalidatePattern(withFeature(ctx, names[i]), p)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", names[i], err))
			continue
		}
		total += n
	}
	m.logger.Info(ctx, "pattern invalidated across features", xlog.Pattern(p.String()), xlog.Count(int64(total)))
	return total, errors.Join(errs...)
}

// GlobalStats 返回每个实例的统计快照
func (m *Manager) GlobalStats() map[string]xcache.Stats {
	names, caches, err := m.snapshot()
	if err != nil {
		return map[string]xcache.Stats{}
	}
	out := make(map[string]xcache.Stats, len(names))
	for i, c := range caches {
		out[names[i]] = c.Stats()
	}
	return out
}

// Features 返回已创建实例的 feature 名（排序）
func (m *Manager) Features() []string {
	names, _, _ := m.snapshot()
	return names
}

// ResetStats 重置所有实例的统计
func (m *Manager) ResetStats() {
	_, caches, _ := m.snapshot()
	for _, c := range caches {
		c.ResetStats()
	}
}

// ApplyConfig 替换默认覆盖与 feature 覆盖，并把新配置应用到已创建的实例。
//
// 新配置先整体校验，任一 feature 无效时不做任何修改。
func (m *Manager) ApplyConfig(defaults xcache.ConfigPatch, features map[string]xcache.ConfigPatch) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	names := slices.Sorted(maps.Keys(m.caches))
	next := make(map[string]xcache.Config, len(names))
	for _, name := range names {
		cfg := xcache.DefaultConfig().Apply(defaults.Merge(features[name]))
		if err := cfg.Validate(); err != nil {
			m.mu.Unlock()
			return fmt.Errorf("xcachemgr: feature %q: %w", name, err)
		}
		next[name] = cfg
	}
	m.defaults = defaults
	m.features = maps.Clone(features)
	if m.features == nil {
		m.features = make(map[string]xcache.ConfigPatch)
	}
	caches := maps.Clone(m.caches)
	m.mu.Unlock()

	var errs []error
	for _, name := range names {
		if err := caches[name].UpdateConfig(xcache.PatchOf(next[name])); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	m.logger.Info(context.Background(), "cache config applied", xlog.Count(int64(len(names))))
	return errors.Join(errs...)
}

// Close 关闭所有实例，可重复调用。
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	caches := m.caches
	m.caches = make(map[string]xcache.Provider[any])
	m.mu.Unlock()

	var errs []error
	for name, c := range caches {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// withFeature 把 feature 写入 ctx，便于日志与指标按 feature 区分。
func withFeature(ctx context.Context, name string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if fctx, err := xctx.WithFeature(ctx, name); err == nil {
		return fctx
	}
	return ctx
}
