package xmetrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/omeyang/xcachekit/pkg/context/xctx"
)

const metricEvents = "xcache.events"

// 事件名
const (
	EventHit   = "hit"
	EventMiss  = "miss"
	EventEvict = "evict"
	EventError = "error"
)

// EventRecorder 把缓存事件记为 OTel 计数器。
//
// 方法集与 xcache.Listener[T] 一致，可直接通过 xcache.WithListener 注册。
// feature 取自构造参数，为空时取自 context（xctx.Feature）。
type EventRecorder[T any] struct {
	feature string
	events  metric.Int64Counter
}

// NewEventRecorder 创建事件计数器
func NewEventRecorder[T any](feature string, opts ...Option) (*EventRecorder[T], error) {
	cfg := newOTelConfig(opts)
	counter, err := cfg.meterProvider.Meter(cfg.instrumentationName).Int64Counter(
		metricEvents,
		metric.WithDescription("cache events by type"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreateInstrument, err)
	}
	return &EventRecorder[T]{feature: feature, events: counter}, nil
}

func (r *EventRecorder[T]) add(ctx context.Context, event, op string) {
	if ctx == nil {
		ctx = context.Background()
	}
	feature := r.feature
	if feature == "" {
		feature = xctx.Feature(ctx)
	}
	attrs := []attribute.KeyValue{attribute.String("event", event)}
	if feature != "" {
		attrs = append(attrs, attribute.String(xctx.KeyFeature, feature))
	}
	if op != "" {
		attrs = append(attrs, attribute.String("operation", op))
	}
	r.events.Add(context.WithoutCancel(ctx), 1, metric.WithAttributes(attrs...))
}

// OnHit 记录命中
func (r *EventRecorder[T]) OnHit(ctx context.Context, _ string, _ T) {
	r.add(ctx, EventHit, "")
}

// OnMiss 记录未命中
func (r *EventRecorder[T]) OnMiss(ctx context.Context, _ string) {
	r.add(ctx, EventMiss, "")
}

// OnEvict 记录淘汰
func (r *EventRecorder[T]) OnEvict(ctx context.Context, _ string, _ T) {
	r.add(ctx, EventEvict, "")
}

// OnError 记录错误
func (r *EventRecorder[T]) OnError(ctx context.Context, _ error, op, _ string) {
	r.add(ctx, EventError, op)
}
