package xlog

import (
	"log/slog"
	"time"

	"github.com/omeyang/xcachekit/pkg/context/xctx"
)

// =============================================================================
// 常用属性 Key 常量
// =============================================================================

const (
	KeyError     = "error"
	KeyDuration  = "duration"
	KeyCount     = "count"
	KeyComponent = "component"
	KeyOperation = "operation"

	// KeyCacheKey 缓存键
	KeyCacheKey = "cache_key"
	// KeyFeature 功能缓存名，引用 xctx 保证跨包一致
	KeyFeature = xctx.KeyFeature
	// KeyCorrelationID 关联标识
	KeyCorrelationID = xctx.KeyCorrelationID
	// KeyPattern 失效模式
	KeyPattern = "pattern"
	// KeyErrorKind 错误分类
	KeyErrorKind = "error_kind"
)

// =============================================================================
// 便捷属性构造函数
// =============================================================================

// Err 创建错误属性，err 为 nil 时返回空属性（会被 slog 忽略）。
//
//	if err != nil {
//	    logger.Error(ctx, "set failed", xlog.Err(err))
//	}
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Duration 创建耗时属性（人类可读格式）
func Duration(d time.Duration) slog.Attr {
	return slog.String(KeyDuration, d.String())
}

// Component 创建组件名属性
func Component(name string) slog.Attr {
	return slog.String(KeyComponent, name)
}

// Operation 创建操作名属性
func Operation(name string) slog.Attr {
	return slog.String(KeyOperation, name)
}

// Count 创建计数属性
func Count(n int64) slog.Attr {
	return slog.Int64(KeyCount, n)
}

// Key 创建缓存键属性
func Key(key string) slog.Attr {
	return slog.String(KeyCacheKey, key)
}

// Feature 创建功能缓存名属性
func Feature(name string) slog.Attr {
	return slog.String(KeyFeature, name)
}

// CorrelationID 创建关联标识属性
func CorrelationID(id string) slog.Attr {
	return slog.String(KeyCorrelationID, id)
}

// Pattern 创建失效模式属性
func Pattern(p string) slog.Attr {
	return slog.String(KeyPattern, p)
}

// ErrorKind 创建错误分类属性
func ErrorKind(kind string) slog.Attr {
	return slog.String(KeyErrorKind, kind)
}
