// Package xmetrics 提供缓存引擎的可观测性接口（metrics + tracing）。
//
// # 设计理念
//
// xmetrics 仅定义最小化接口：Observer/Span/Attr，缓存代码只依赖接口；
// 默认实现基于 OpenTelemetry。
//
// # 使用示例
//
//	obs, _ := xmetrics.NewOTelObserver()
//	ctx, span := xmetrics.Start(ctx, obs, xmetrics.SpanOptions{
//		Component: "xcache",
//		Operation: "get",
//	})
//	defer span.End(xmetrics.Result{Status: xmetrics.StatusHit})
//
// 缓存事件（命中、未命中、淘汰、错误）通过 [EventRecorder] 计数，
// 它实现了 xcache.Listener，直接注册到 Provider 即可。
//
// # 指标命名
//
//   - xcache.operation.total     属性 component / operation / status / feature
//   - xcache.operation.duration  同上，单位秒
//   - xcache.events              属性 event / feature / operation
package xmetrics
