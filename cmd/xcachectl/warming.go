package main

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"

	"github.com/omeyang/xcachekit/pkg/config/xconf"
	"github.com/omeyang/xcachekit/pkg/observability/xlog"
	"github.com/omeyang/xcachekit/pkg/storage/xwarm"
)

// defaultWarmFeature 无 feature 前缀的预热目标写入的缓存
const defaultWarmFeature = "default"

// warmPool 按 feature 分组的预热器集合。
// 目标的 feature 取 pattern 的前缀（"user:42" 属于 user）。
type warmPool struct {
	e    *engine
	load func(feature string) xwarm.Loader[any]

	mu      sync.Mutex
	cfg     xconf.WarmingConfig
	warmers map[string]*xwarm.Warmer[any]
}

func newWarmPool(e *engine, load func(feature string) xwarm.Loader[any]) *warmPool {
	return &warmPool{e: e, load: load, warmers: make(map[string]*xwarm.Warmer[any])}
}

// Apply 按新配置分配目标；新出现的 feature 创建预热器并按 schedule 注册定时任务，
// 不再出现的 feature 目标清空。并发数与 schedule 只对新建的预热器生效。
func (p *warmPool) Apply(cfg xconf.WarmingConfig) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfg = cfg

	grouped := make(map[string][]xwarm.Target)
	for _, t := range cfg.Targets {
		f := featureOf(t.Pattern, defaultWarmFeature)
		grouped[f] = append(grouped[f], xwarm.Target{Pattern: t.Pattern, Priority: t.Priority, TTL: t.TTL})
	}

	var errs []error
	for feature, targets := range grouped {
		w, err := p.warmerLocked(feature)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		errs = append(errs, w.SetTargets(targets))
	}
	for feature, w := range p.warmers {
		if _, ok := grouped[feature]; !ok {
			errs = append(errs, w.SetTargets(nil))
		}
	}
	return errors.Join(errs...)
}

func (p *warmPool) warmerLocked(feature string) (*xwarm.Warmer[any], error) {
	if w, ok := p.warmers[feature]; ok {
		return w, nil
	}
	cache, err := p.e.manager.GetCache(feature)
	if err != nil {
		return nil, err
	}
	w, err := xwarm.New(cache, p.load(feature),
		xwarm.WithMaxConcurrency(p.cfg.MaxConcurrency),
		xwarm.WithLogger(p.e.logger.With(xlog.Feature(feature))),
		xwarm.WithScheduler(p.e.sched))
	if err != nil {
		return nil, err
	}
	if p.cfg.Schedule != "" {
		if err := w.Schedule(p.cfg.Schedule); err != nil {
			return nil, err
		}
	}
	p.warmers[feature] = w
	return w, nil
}

// WarmAll 依次预热所有 feature，返回每个 feature 的报告。
func (p *warmPool) WarmAll(ctx context.Context) (map[string]xwarm.Report, error) {
	p.mu.Lock()
	warmers := maps.Clone(p.warmers)
	p.mu.Unlock()
	features := slices.Sorted(maps.Keys(warmers))

	reports := make(map[string]xwarm.Report, len(features))
	for _, f := range features {
		r, err := warmers[f].Warm(ctx)
		reports[f] = r
		if err != nil {
			return reports, err
		}
	}
	return reports, nil
}

// Stop 取消所有定时预热任务。
func (p *warmPool) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, w := range p.warmers {
		w.Stop()
	}
}
