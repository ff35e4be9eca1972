package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/omeyang/xcachekit/pkg/config/xconf"
	"github.com/omeyang/xcachekit/pkg/observability/xanalytics"
	"github.com/omeyang/xcachekit/pkg/observability/xlog"
	"github.com/omeyang/xcachekit/pkg/observability/xmetrics"
	"github.com/omeyang/xcachekit/pkg/storage/xcache"
	"github.com/omeyang/xcachekit/pkg/storage/xcachemgr"
	"github.com/omeyang/xcachekit/pkg/storage/xdepgraph"
	"github.com/omeyang/xcachekit/pkg/storage/xpredict"
	"github.com/omeyang/xcachekit/pkg/util/xcron"
)

const instrumentationName = "github.com/omeyang/xcachekit/cmd/xcachectl"

// buildLogger 根据全局参数构建日志，返回的清理函数关闭轮转文件。
func buildLogger(cmd *cli.Command, stderr io.Writer) (xlog.LoggerWithLevel, func() error, error) {
	b := xlog.New().
		SetOutput(stderr).
		SetLevelString(cmd.String("log-level")).
		SetFormat(cmd.String("log-format")).
		SetEnrich(true).
		SetAttrs(slog.String("service", "xcachectl"))
	if path := cmd.String("log-file"); path != "" {
		b = b.SetRotation(path, xlog.WithMaxSizeMB(64), xlog.WithMaxBackups(3), xlog.WithCompress(true))
	}
	logger, closeFn, err := b.Build()
	if err != nil {
		return nil, nil, usagef("log options: %v", err)
	}
	return logger, closeFn, nil
}

// loadDocument 加载 --config 指定的配置；未指定且 required 为 false 时返回默认配置。
func loadDocument(cmd *cli.Command, required bool) (*xconf.Source, error) {
	path := cmd.String("config")
	if path == "" {
		if required {
			return nil, usagef("--config is required")
		}
		return xconf.LoadBytes(nil, xconf.FormatYAML)
	}
	src, err := xconf.Load(path)
	if err != nil {
		if errors.Is(err, xconf.ErrUnsupportedFormat) {
			return nil, usagef("%v", err)
		}
		return nil, err
	}
	return src, nil
}

// engine 组合根：持有管理器及其外围组件，生命周期与命令一致。
type engine struct {
	logger   xlog.Logger
	meters   *sdkmetric.MeterProvider
	reader   *sdkmetric.ManualReader
	observer xmetrics.Observer
	manager  *xcachemgr.Manager
	graph    *xdepgraph.Graph
	sched    *xcron.Scheduler
	board    *xanalytics.Dashboard
	gauges   metric.Registration

	mu         sync.Mutex
	predictors map[string]*xpredict.Engine
}

// newEngine 按配置装配所有组件，失败时释放已创建的资源。
func newEngine(doc xconf.Document, logger xlog.Logger) (_ *engine, err error) {
	e := &engine{
		logger:     logger,
		predictors: make(map[string]*xpredict.Engine),
	}
	defer func() {
		if err != nil {
			_ = e.Close(context.Background())
		}
	}()

	e.reader = sdkmetric.NewManualReader()
	e.meters = sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(e.reader),
		sdkmetric.WithResource(resource.NewSchemaless(attribute.String("service.name", "xcachectl"))),
	)
	if e.observer, err = xmetrics.NewOTelObserver(
		xmetrics.WithInstrumentationName(instrumentationName),
		xmetrics.WithMeterProvider(e.meters),
	); err != nil {
		return nil, err
	}

	e.graph = xdepgraph.New(xdepgraph.WithLogger(logger))
	e.manager = xcachemgr.New(
		xcachemgr.WithLogger(logger),
		xcachemgr.WithObserver(e.observer),
		xcachemgr.WithDefaults(doc.DefaultCache),
		xcachemgr.WithFeatures(doc.Features),
		xcachemgr.WithListenerFactory(e.listenersFor),
	)
	e.sched = xcron.New(xcron.WithLogger(logger), xcron.WithObserver(e.observer))

	if e.board, err = xanalytics.New(e.manager,
		xanalytics.WithMaxSnapshots(doc.Analytics.MaxSnapshots),
		xanalytics.WithLogger(logger),
		xanalytics.WithScheduler(e.sched),
	); err != nil {
		return nil, err
	}
	if e.gauges, err = e.board.RegisterGauges(e.meters.Meter(instrumentationName)); err != nil {
		return nil, err
	}
	return e, nil
}

// listenersFor 为每个 feature 缓存挂载事件计数与访问模式学习。
func (e *engine) listenersFor(feature string) []xcache.Listener[any] {
	var listeners []xcache.Listener[any]
	rec, err := xmetrics.NewEventRecorder[any](feature,
		xmetrics.WithInstrumentationName(instrumentationName),
		xmetrics.WithMeterProvider(e.meters))
	if err != nil {
		e.logger.Warn(context.Background(), "event recorder disabled", xlog.Feature(feature), xlog.Err(err))
	} else {
		listeners = append(listeners, rec)
	}
	if p, perr := e.predictor(feature); perr == nil {
		listeners = append(listeners, xpredict.Listener[any](p))
	}
	return listeners
}

// predictor 返回 feature 专属的预测引擎，按需创建。
func (e *engine) predictor(feature string) (*xpredict.Engine, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p, ok := e.predictors[feature]; ok {
		return p, nil
	}
	p, err := xpredict.New(xpredict.WithLogger(e.logger.With(xlog.Feature(feature))))
	if err != nil {
		return nil, err
	}
	e.predictors[feature] = p
	return p, nil
}

// Prefetch 为每个已创建的 feature 执行一次预测预取。
func (e *engine) Prefetch(ctx context.Context, load func(feature, key string) (any, error)) (map[string]xpredict.PrefetchReport, error) {
	reports := make(map[string]xpredict.PrefetchReport)
	var errs []error
	for _, feature := range e.manager.Features() {
		p, err := e.predictor(feature)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		cache, err := e.manager.GetCache(feature)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		report, err := xpredict.Prefetch(ctx, p, cache, func(_ context.Context, key string) (any, error) {
			return load(feature, key)
		})
		reports[feature] = report
		if err != nil {
			errs = append(errs, fmt.Errorf("prefetch %s: %w", feature, err))
		}
	}
	return reports, errors.Join(errs...)
}

// EventTotals 汇总 xcache.events 计数器，按 event 属性分组。
func (e *engine) EventTotals(ctx context.Context) (map[string]int64, error) {
	var rm metricdata.ResourceMetrics
	if err := e.reader.Collect(ctx, &rm); err != nil {
		return nil, err
	}
	totals := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "xcache.events" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				v, _ := dp.Attributes.Value(attribute.Key("event"))
				totals[v.AsString()] += dp.Value
			}
		}
	}
	return totals, nil
}

// Close 停止调度、关闭所有缓存并刷新指标。
func (e *engine) Close(ctx context.Context) error {
	var errs []error
	if e.board != nil {
		e.board.Stop()
	}
	if e.sched != nil {
		<-e.sched.Stop().Done()
	}
	if e.gauges != nil {
		errs = append(errs, e.gauges.Unregister())
	}
	if e.manager != nil {
		errs = append(errs, e.manager.Close())
	}
	if e.meters != nil {
		errs = append(errs, e.meters.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// featureOf 返回 key 的 feature 前缀（第一个冒号之前），无冒号时为 fallback。
func featureOf(key, fallback string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return fallback
}
