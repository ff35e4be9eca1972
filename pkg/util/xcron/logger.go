package xcron

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/omeyang/xcachekit/pkg/observability/xlog"
)

// cronLogger 将 robfig/cron 的内部日志桥接到 xlog。
// cron 的 Info 日志（调度唤醒、任务添加）较为频繁，降级为 Debug。
type cronLogger struct {
	logger xlog.Logger
}

var _ cron.Logger = cronLogger{}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(context.Background(), msg, kvAttrs(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(context.Background(), msg, append(kvAttrs(keysAndValues), xlog.Err(err))...)
}

// kvAttrs 将交替的 key/value 转换为 slog.Attr，奇数个参数时末尾值以 "!BADKEY" 记录。
func kvAttrs(kv []any) []slog.Attr {
	attrs := make([]slog.Attr, 0, (len(kv)+1)/2)
	for i := 0; i < len(kv); i += 2 {
		if i+1 >= len(kv) {
			attrs = append(attrs, slog.Any("!BADKEY", kv[i]))
			break
		}
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		attrs = append(attrs, slog.Any(key, kv[i+1]))
	}
	return attrs
}
