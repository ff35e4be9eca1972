package xanalytics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RegisterGauges 以 OTel 可观测仪表暴露每个 feature 的实时统计。
//
// 每次采集时直接读取 StatsSource，与快照历史无关。
// 调用方负责在关闭时调用返回值的 Unregister。
func (d *Dashboard) RegisterGauges(meter metric.Meter) (metric.Registration, error) {
	size, err := meter.Int64ObservableGauge("xcache.size",
		metric.WithDescription("Current number of entries per feature cache"),
		metric.WithUnit("{entry}"))
	if err != nil {
		return nil, fmt.Errorf("xanalytics: create gauge: %w", err)
	}
	hitRate, err := meter.Float64ObservableGauge("xcache.hit_rate",
		metric.WithDescription("Hit rate per feature cache"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, fmt.Errorf("xanalytics: create gauge: %w", err)
	}
	evictions, err := meter.Int64ObservableCounter("xcache.evictions",
		metric.WithDescription("Evictions per feature cache since the last stats reset"),
		metric.WithUnit("{entry}"))
	if err != nil {
		return nil, fmt.Errorf("xanalytics: create counter: %w", err)
	}

	reg, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		for name, s := range d.src.GlobalStats() {
			attrs := metric.WithAttributes(attribute.String("feature", name))
			o.ObserveInt64(size, int64(s.Size), attrs)
			o.ObserveFloat64(hitRate, s.HitRate, attrs)
			o.ObserveInt64(evictions, s.Evictions, attrs)
		}
		return nil
	}, size, hitRate, evictions)
	if err != nil {
		return nil, fmt.Errorf("xanalytics: register callback: %w", err)
	}
	return reg, nil
}
