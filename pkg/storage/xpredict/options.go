package xpredict

import (
	"time"

	"github.com/omeyang/xcachekit/pkg/observability/xlog"
)

// Model 打分模型
type Model string

// 支持的模型
const (
	ModelFrequency Model = "frequency"
	ModelRecency   Model = "recency"
	ModelHybrid    Model = "hybrid"
)

const (
	defaultConfidenceThreshold = 0.5
	defaultMaxPredictions      = 10
	defaultTTL                 = 5 * time.Minute
	defaultMaxPatterns         = 10000
	defaultPrefetchConcurrency = 4
)

// Option Engine 配置选项
type Option func(*options)

type options struct {
	model               Model
	threshold           float64
	maxPredictions      int
	defaultTTL          time.Duration
	maxPatterns         int
	prefetchConcurrency int
	now                 func() time.Time
	logger              xlog.Logger
}

func defaultOptions() options {
	return options{
		model:               ModelHybrid,
		threshold:           defaultConfidenceThreshold,
		maxPredictions:      defaultMaxPredictions,
		defaultTTL:          defaultTTL,
		maxPatterns:         defaultMaxPatterns,
		prefetchConcurrency: defaultPrefetchConcurrency,
		now:                 time.Now,
	}
}

// WithModel 设置打分模型，默认 ModelHybrid
func WithModel(m Model) Option {
	return func(o *options) {
		o.model = m
	}
}

// WithConfidenceThreshold 设置最低置信度，默认 0.5
func WithConfidenceThreshold(t float64) Option {
	return func(o *options) {
		o.threshold = t
	}
}

// WithMaxPredictions 设置最多返回的预测数，默认 10
func WithMaxPredictions(n int) Option {
	return func(o *options) {
		o.maxPredictions = n
	}
}

// WithDefaultTTL 设置访问不足两次时的建议 TTL，默认 5m
func WithDefaultTTL(d time.Duration) Option {
	return func(o *options) {
		o.defaultTTL = d
	}
}

// WithMaxPatterns 设置最多跟踪的 key 数，超出时丢弃最久未访问的 key，默认 10000
func WithMaxPatterns(n int) Option {
	return func(o *options) {
		o.maxPatterns = n
	}
}

// WithPrefetchConcurrency 设置 Prefetch 的并发数，默认 4
func WithPrefetchConcurrency(n int) Option {
	return func(o *options) {
		o.prefetchConcurrency = n
	}
}

// WithClock 替换时间源
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger 设置日志记录器，默认 xlog.Default()
func WithLogger(l xlog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
