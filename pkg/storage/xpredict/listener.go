package xpredict

import (
	"context"

	"github.com/omeyang/xcachekit/pkg/storage/xcache"
)

// Listener 返回把命中与未命中记为访问的 xcache.Listener。
func Listener[T any](e *Engine) xcache.Listener[T] {
	return xcache.ListenerFuncs[T]{
		Hit:  func(_ context.Context, key string, _ T) { e.RecordAccess(key) },
		Miss: func(_ context.Context, key string) { e.RecordAccess(key) },
	}
}
