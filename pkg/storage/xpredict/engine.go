package xpredict

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/omeyang/xcachekit/pkg/observability/xlog"
)

var (
	// ErrInvalidModel 表示未知的打分模型
	ErrInvalidModel = errors.New("xpredict: invalid model")

	// ErrInvalidOption 表示数值选项越界
	ErrInvalidOption = errors.New("xpredict: invalid option")
)

// Pattern 单个 key 的访问模式
type Pattern struct {
	Key         string
	Frequency   int64
	FirstAccess time.Time
	LastAccess  time.Time
	// AvgInterval 相邻两次访问的平均间隔，Frequency < 2 时为 0
	AvgInterval time.Duration
}

// Prediction 预测结果
type Prediction struct {
	Key          string
	Confidence   float64
	SuggestedTTL time.Duration
}

// Engine 预测引擎，并发安全。
type Engine struct {
	mu       sync.Mutex
	patterns *simplelru.LRU[string, *Pattern]
	opts     options
	logger   xlog.Logger
}

// New 创建预测引擎
func New(opts ...Option) (*Engine, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	switch o.model {
	case ModelFrequency, ModelRecency, ModelHybrid:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidModel, o.model)
	}
	if o.threshold < 0 || o.threshold > 1 {
		return nil, fmt.Errorf("%w: confidence threshold %v not in [0, 1]", ErrInvalidOption, o.threshold)
	}
	if o.maxPredictions <= 0 || o.maxPatterns <= 0 || o.prefetchConcurrency <= 0 {
		return nil, fmt.Errorf("%w: max predictions, max patterns and prefetch concurrency must be positive", ErrInvalidOption)
	}
	if o.logger == nil {
		o.logger = xlog.Default()
	}

	lru, err := simplelru.NewLRU[string, *Pattern](o.maxPatterns, nil)
	if err != nil {
		return nil, fmt.Errorf("xpredict: %w", err)
	}
	return &Engine{
		patterns: lru,
		opts:     o,
		logger:   o.logger.With(xlog.Component("xpredict")),
	}, nil
}

// RecordAccess 记录一次访问
func (e *Engine) RecordAccess(key string) {
	if key == "" {
		return
	}
	now := e.opts.now()

	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.patterns.Get(key)
	if !ok {
		e.patterns.Add(key, &Pattern{Key: key, Frequency: 1, FirstAccess: now, LastAccess: now})
		return
	}
	interval := max(now.Sub(p.LastAccess), 0)
	p.Frequency++
	// 增量均值：第 n 个间隔 (n = Frequency-1)
	n := time.Duration(p.Frequency - 1)
	p.AvgInterval += (interval - p.AvgInterval) / n
	p.LastAccess = now
}

// Pattern 返回 key 的访问模式副本
func (e *Engine) Pattern(key string) (Pattern, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.patterns.Peek(key)
	if !ok {
		return Pattern{}, false
	}
	return *p, true
}

// Patterns 返回所有访问模式副本，按最近记录从旧到新
func (e *Engine) Patterns() []Pattern {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() []Pattern {
	values := e.patterns.Values()
	out := make([]Pattern, len(values))
	for i, p := range values {
		out[i] = *p
	}
	return out
}

// Len 返回跟踪的 key 数
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.patterns.Len()
}

// Reset 清空所有访问模式
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.patterns.Purge()
}

// GeneratePredictions 打分、按阈值过滤、按置信度降序排序并截断。
//
// 置信度相同时按 key 排序，保证结果稳定。
func (e *Engine) GeneratePredictions() []Prediction {
	now := e.opts.now()
	e.mu.Lock()
	patterns := e.snapshotLocked()
	e.mu.Unlock()

	var maxFreq int64
	for _, p := range patterns {
		maxFreq = max(maxFreq, p.Frequency)
	}

	predictions := make([]Prediction, 0, len(patterns))
	for _, p := range patterns {
		conf := e.score(p, now, maxFreq)
		if conf < e.opts.threshold {
			continue
		}
		predictions = append(predictions, Prediction{
			Key:          p.Key,
			Confidence:   conf,
			SuggestedTTL: e.suggestedTTL(p),
		})
	}
	slices.SortFunc(predictions, func(a, b Prediction) int {
		if c := cmp.Compare(b.Confidence, a.Confidence); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})
	if len(predictions) > e.opts.maxPredictions {
		predictions = predictions[:e.opts.maxPredictions]
	}
	return predictions
}

func (e *Engine) score(p Pattern, now time.Time, maxFreq int64) float64 {
	switch e.opts.model {
	case ModelFrequency:
		return frequencyScore(p, maxFreq)
	case ModelRecency:
		return recencyScore(p, now)
	default:
		return (frequencyScore(p, maxFreq) + recencyScore(p, now)) / 2
	}
}

func frequencyScore(p Pattern, maxFreq int64) float64 {
	if maxFreq <= 0 {
		return 0
	}
	return float64(p.Frequency) / float64(maxFreq)
}

func recencyScore(p Pattern, now time.Time) float64 {
	hours := now.Sub(p.LastAccess).Hours()
	return max(0, 1-hours/24)
}

func (e *Engine) suggestedTTL(p Pattern) time.Duration {
	if p.Frequency < 2 || p.AvgInterval <= 0 {
		return e.opts.defaultTTL
	}
	return 2 * p.AvgInterval
}
