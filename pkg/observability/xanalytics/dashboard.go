package xanalytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/omeyang/xcachekit/pkg/observability/xlog"
	"github.com/omeyang/xcachekit/pkg/storage/xcache"
	"github.com/omeyang/xcachekit/pkg/util/xcron"
)

var (
	// ErrNilSource 表示统计来源为 nil
	ErrNilSource = errors.New("xanalytics: nil stats source")
	// ErrInvalidOption 表示配置不合法
	ErrInvalidOption = errors.New("xanalytics: invalid option")
	// ErrAlreadyScheduled 表示已存在周期采集任务
	ErrAlreadyScheduled = errors.New("xanalytics: already scheduled")
)

// StatsSource 提供按 feature 划分的统计快照
type StatsSource interface {
	GlobalStats() map[string]xcache.Stats
}

// StatsSourceFunc 函数适配器
type StatsSourceFunc func() map[string]xcache.Stats

// GlobalStats 实现 StatsSource
func (f StatsSourceFunc) GlobalStats() map[string]xcache.Stats { return f() }

// Snapshot 某一时刻所有 feature 的统计
type Snapshot struct {
	ID        string                  `json:"id"`
	Timestamp time.Time               `json:"timestamp"`
	Features  map[string]xcache.Stats `json:"features"`
	Total     xcache.Stats            `json:"total"`
}

// TrendPoint 单个 feature 在某一快照中的数据点
type TrendPoint struct {
	Timestamp     time.Time `json:"timestamp"`
	Size          int       `json:"size"`
	HitRate       float64   `json:"hit_rate"`
	TotalRequests int64     `json:"total_requests"`
	Evictions     int64     `json:"evictions"`
}

// FeatureSummary 单个 feature 在快照窗口内的聚合
type FeatureSummary struct {
	Samples    int          `json:"samples"`
	AvgHitRate float64      `json:"avg_hit_rate"`
	MinHitRate float64      `json:"min_hit_rate"`
	MaxHitRate float64      `json:"max_hit_rate"`
	PeakSize   int          `json:"peak_size"`
	Last       xcache.Stats `json:"last"`
}

// Summary 快照窗口内的聚合报告
type Summary struct {
	Snapshots int                       `json:"snapshots"`
	From      time.Time                 `json:"from"`
	To        time.Time                 `json:"to"`
	Features  map[string]FeatureSummary `json:"features"`
	// Overall 最近一个快照的全局汇总
	Overall xcache.Stats `json:"overall"`
}

// Dashboard 缓存统计看板
type Dashboard struct {
	src    StatsSource
	opts   options
	logger xlog.Logger

	mu      sync.RWMutex
	seq     uint64
	history *simplelru.LRU[uint64, Snapshot]

	schedMu   sync.Mutex
	sched     *xcron.Scheduler
	ownSched  bool
	jobID     xcron.JobID
	scheduled bool
}

// New 创建看板
func New(src StatsSource, opts ...Option) (*Dashboard, error) {
	if src == nil {
		return nil, ErrNilSource
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxSnapshots <= 0 {
		return nil, fmt.Errorf("%w: max snapshots %d", ErrInvalidOption, o.maxSnapshots)
	}
	history, err := simplelru.NewLRU[uint64, Snapshot](o.maxSnapshots, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOption, err)
	}
	logger := o.logger
	if logger == nil {
		logger = xlog.Default()
	}
	return &Dashboard{
		src:     src,
		opts:    o,
		logger:  logger.With(xlog.Component("xanalytics")),
		history: history,
	}, nil
}

// Capture 采集一个快照并加入历史
func (d *Dashboard) Capture(ctx context.Context) Snapshot {
	features := maps.Clone(d.src.GlobalStats())
	if features == nil {
		features = map[string]xcache.Stats{}
	}
	snap := Snapshot{
		ID:        newSnapshotID(),
		Timestamp: d.opts.now(),
		Features:  features,
		Total:     aggregate(features),
	}

	d.mu.Lock()
	d.seq++
	d.history.Add(d.seq, snap)
	d.mu.Unlock()

	d.logger.Debug(ctx, "snapshot captured",
		xlog.Count(int64(len(features))),
		slog.String("snapshot_id", snap.ID))
	return snap
}

func newSnapshotID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// aggregate 汇总所有 feature，命中率按总请求数重新计算
func aggregate(features map[string]xcache.Stats) xcache.Stats {
	var total xcache.Stats
	for _, s := range features {
		total.Size += s.Size
		total.Hits += s.Hits
		total.Misses += s.Misses
		total.Evictions += s.Evictions
		total.TotalRequests += s.TotalRequests
	}
	total.HitRate = xcache.HitRate(total.Hits, total.TotalRequests)
	return total
}

// Snapshots 返回历史快照，按采集时间从旧到新
func (d *Dashboard) Snapshots() []Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.history.Values()
}

// Latest 返回最近一个快照
func (d *Dashboard) Latest() (Snapshot, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.history.Peek(d.seq)
}

// Len 返回当前保留的快照数
func (d *Dashboard) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.history.Len()
}

// Reset 清空历史
func (d *Dashboard) Reset() {
	d.mu.Lock()
	d.history.Purge()
	d.mu.Unlock()
}

// Trend 返回 feature 在各快照中的数据点，不存在该 feature 的快照跳过
func (d *Dashboard) Trend(feature string) []TrendPoint {
	var points []TrendPoint
	for _, snap := range d.Snapshots() {
		s, ok := snap.Features[feature]
		if !ok {
			continue
		}
		points = append(points, TrendPoint{
			Timestamp:     snap.Timestamp,
			Size:          s.Size,
			HitRate:       s.HitRate,
			TotalRequests: s.TotalRequests,
			Evictions:     s.Evictions,
		})
	}
	return points
}

// Summary 汇总快照窗口
func (d *Dashboard) Summary() Summary {
	snaps := d.Snapshots()
	sum := Summary{Snapshots: len(snaps), Features: map[string]FeatureSummary{}}
	if len(snaps) == 0 {
		return sum
	}
	sum.From = snaps[0].Timestamp
	sum.To = snaps[len(snaps)-1].Timestamp
	sum.Overall = snaps[len(snaps)-1].Total

	rates := map[string]float64{}
	for _, snap := range snaps {
		for name, s := range snap.Features {
			fs, seen := sum.Features[name]
			if !seen {
				fs.MinHitRate = s.HitRate
				fs.MaxHitRate = s.HitRate
			}
			fs.Samples++
			fs.MinHitRate = min(fs.MinHitRate, s.HitRate)
			fs.MaxHitRate = max(fs.MaxHitRate, s.HitRate)
			fs.PeakSize = max(fs.PeakSize, s.Size)
			fs.Last = s
			rates[name] += s.HitRate
			sum.Features[name] = fs
		}
	}
	for name, fs := range sum.Features {
		fs.AvgHitRate = rates[name] / float64(fs.Samples)
		sum.Features[name] = fs
	}
	return sum
}

// FeatureNames 返回历史中出现过的 feature，已排序
func (d *Dashboard) FeatureNames() []string {
	seen := map[string]struct{}{}
	for _, snap := range d.Snapshots() {
		for name := range snap.Features {
			seen[name] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(seen))
}

// Schedule 按 cron 表达式周期性采集快照
func (d *Dashboard) Schedule(spec string, opts ...xcron.JobOption) error {
	d.schedMu.Lock()
	defer d.schedMu.Unlock()
	if d.scheduled {
		return ErrAlreadyScheduled
	}

	sched := d.opts.scheduler
	own := sched == nil
	if own {
		sched = xcron.New(xcron.WithLogger(d.logger))
	}
	jobOpts := append([]xcron.JobOption{xcron.WithName("xanalytics")}, opts...)
	id, err := sched.AddFunc(spec, func(ctx context.Context) error {
		d.Capture(ctx)
		return nil
	}, jobOpts...)
	if err != nil {
		return err
	}
	if own {
		sched.Start()
	}
	d.sched, d.ownSched, d.jobID, d.scheduled = sched, own, id, true
	return nil
}

// Stop 取消周期采集，可重复调用
func (d *Dashboard) Stop() {
	d.schedMu.Lock()
	defer d.schedMu.Unlock()
	if !d.scheduled {
		return
	}
	if d.ownSched {
		<-d.sched.Stop().Done()
	} else {
		d.sched.Remove(d.jobID)
	}
	d.sched, d.scheduled = nil, false
}
