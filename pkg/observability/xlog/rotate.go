package xlog

import (
	"errors"

	"gopkg.in/natefinch/lumberjack.v2"
)

// ErrEmptyFilename 轮转文件名为空
var ErrEmptyFilename = errors.New("xlog: empty rotation filename")

// 轮转默认值
const (
	defaultMaxSizeMB  = 100
	defaultMaxBackups = 7
	defaultMaxAgeDays = 30
)

// RotateOption 日志轮转选项
type RotateOption func(*lumberjack.Logger)

// WithMaxSizeMB 设置单个日志文件的最大大小（MB）
func WithMaxSizeMB(mb int) RotateOption {
	return func(l *lumberjack.Logger) {
		if mb > 0 {
			l.MaxSize = mb
		}
	}
}

// WithMaxBackups 设置保留的备份文件数量
func WithMaxBackups(n int) RotateOption {
	return func(l *lumberjack.Logger) {
		if n >= 0 {
			l.MaxBackups = n
		}
	}
}

// WithMaxAgeDays 设置保留备份的天数
func WithMaxAgeDays(days int) RotateOption {
	return func(l *lumberjack.Logger) {
		if days >= 0 {
			l.MaxAge = days
		}
	}
}

// WithCompress 设置是否压缩备份文件
func WithCompress(compress bool) RotateOption {
	return func(l *lumberjack.Logger) {
		l.Compress = compress
	}
}

func newRotator(filename string, opts ...RotateOption) (*lumberjack.Logger, error) {
	if filename == "" {
		return nil, ErrEmptyFilename
	}
	l := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    defaultMaxSizeMB,
		MaxBackups: defaultMaxBackups,
		MaxAge:     defaultMaxAgeDays,
		Compress:   true,
		LocalTime:  true,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}
