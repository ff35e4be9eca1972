package xctx

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
)

// 设计决策: contextKey 使用包私有 string 类型，不会与其他包的 key 冲突，
// 且在调试输出中可读。
type contextKey string

const (
	keyFeature       contextKey = "feature"
	keyCorrelationID contextKey = "correlation_id"
)

// 日志属性 Key 常量
const (
	KeyFeature       = "feature"
	KeyCorrelationID = "correlation_id"
)

// fieldCount 本包可注入的字段数量，用于预分配
const fieldCount = 2

var (
	// ErrNilContext 表示传入的 context 为 nil。
	ErrNilContext = errors.New("xctx: nil context")

	// ErrMissingFeature feature 缺失
	ErrMissingFeature = errors.New("xctx: missing feature")

	// ErrMissingCorrelationID correlation_id 缺失
	ErrMissingCorrelationID = errors.New("xctx: missing correlation_id")
)

// =============================================================================
// Feature
// =============================================================================

// WithFeature 将功能缓存名写入 context。
// ctx 为 nil 时返回 ErrNilContext。
func WithFeature(ctx context.Context, name string) (context.Context, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	return context.WithValue(ctx, keyFeature, name), nil
}

// Feature 读取功能缓存名，缺失时返回空字符串。
func Feature(ctx context.Context) string {
	return stringValue(ctx, keyFeature)
}

// RequireFeature 读取功能缓存名，缺失时返回 ErrMissingFeature。
func RequireFeature(ctx context.Context) (string, error) {
	if ctx == nil {
		return "", ErrNilContext
	}
	v := Feature(ctx)
	if v == "" {
		return "", ErrMissingFeature
	}
	return v, nil
}

// =============================================================================
// Correlation ID
// =============================================================================

// WithCorrelationID 将关联标识写入 context。
func WithCorrelationID(ctx context.Context, id string) (context.Context, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	return context.WithValue(ctx, keyCorrelationID, id), nil
}

// CorrelationID 读取关联标识，缺失时返回空字符串。
func CorrelationID(ctx context.Context) string {
	return stringValue(ctx, keyCorrelationID)
}

// RequireCorrelationID 读取关联标识，缺失时返回 ErrMissingCorrelationID。
func RequireCorrelationID(ctx context.Context) (string, error) {
	if ctx == nil {
		return "", ErrNilContext
	}
	v := CorrelationID(ctx)
	if v == "" {
		return "", ErrMissingCorrelationID
	}
	return v, nil
}

// EnsureCorrelationID 确保 context 携带关联标识。
//
// 已存在则原样返回；否则生成 UUIDv4 写入并返回新 context。
func EnsureCorrelationID(ctx context.Context) (context.Context, string, error) {
	if ctx == nil {
		return nil, "", ErrNilContext
	}
	if v := CorrelationID(ctx); v != "" {
		return ctx, v, nil
	}
	id := uuid.NewString()
	return context.WithValue(ctx, keyCorrelationID, id), id, nil
}

// =============================================================================
// slog 集成
// =============================================================================

// AppendAttrs 将 context 中的缓存字段追加到现有切片，只追加非空字段。
func AppendAttrs(attrs []slog.Attr, ctx context.Context) []slog.Attr {
	if ctx == nil {
		return attrs
	}
	if v := Feature(ctx); v != "" {
		attrs = append(attrs, slog.String(KeyFeature, v))
	}
	if v := CorrelationID(ctx); v != "" {
		attrs = append(attrs, slog.String(KeyCorrelationID, v))
	}
	return attrs
}

// Attrs 从 context 提取缓存字段，全部缺失时返回 nil。
func Attrs(ctx context.Context) []slog.Attr {
	attrs := AppendAttrs(make([]slog.Attr, 0, fieldCount), ctx)
	if len(attrs) == 0 {
		return nil
	}
	return attrs
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}
