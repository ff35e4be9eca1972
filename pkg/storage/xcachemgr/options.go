package xcachemgr

import (
	"maps"

	"github.com/omeyang/xcachekit/pkg/observability/xlog"
	"github.com/omeyang/xcachekit/pkg/observability/xmetrics"
	"github.com/omeyang/xcachekit/pkg/storage/xcache"
)

// ListenerFactory 为新建的 feature 缓存提供监听器。
type ListenerFactory func(feature string) []xcache.Listener[any]

// Option Manager 配置选项
type Option func(*options)

type options struct {
	logger    xlog.Logger
	observer  xmetrics.Observer
	defaults  xcache.ConfigPatch
	features  map[string]xcache.ConfigPatch
	listeners ListenerFactory
	cacheOpts []xcache.Option[any]
}

// WithLogger 设置日志记录器，默认 xlog.Default()
func WithLogger(l xlog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithObserver 为所有缓存设置 Observer
func WithObserver(obs xmetrics.Observer) Option {
	return func(o *options) {
		o.observer = obs
	}
}

// WithDefaults 设置所有 feature 共享的默认覆盖
func WithDefaults(p xcache.ConfigPatch) Option {
	return func(o *options) {
		o.defaults = p
	}
}

// WithFeature 设置单个 feature 的覆盖，可多次调用
func WithFeature(name string, p xcache.ConfigPatch) Option {
	return func(o *options) {
		if name != "" {
			o.features[name] = p
		}
	}
}

// WithFeatures 批量设置 feature 覆盖
func WithFeatures(features map[string]xcache.ConfigPatch) Option {
	return func(o *options) {
		maps.Copy(o.features, features)
	}
}

// WithListenerFactory 为每个新建缓存注册监听器
func WithListenerFactory(f ListenerFactory) Option {
	return func(o *options) {
		o.listeners = f
	}
}

// WithCacheOptions 追加传给每个 xcache.New 的选项
func WithCacheOptions(opts ...xcache.Option[any]) Option {
	return func(o *options) {
		o.cacheOpts = append(o.cacheOpts, opts...)
	}
}
