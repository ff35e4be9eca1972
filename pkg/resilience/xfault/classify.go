package xfault

import (
	"context"
	"errors"
	"net"
	"strings"
)

// Kind 错误类别
type Kind string

// 错误类别常量
const (
	KindStorage       Kind = "StorageError"
	KindNetwork       Kind = "NetworkError"
	KindSerialization Kind = "SerializationError"
	KindValidation    Kind = "ValidationError"
	KindUnknown       Kind = "UnknownError"
)

// Severity 错误严重程度
type Severity string

// 严重程度常量
const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Classification 分类结果
type Classification struct {
	Kind        Kind
	Severity    Severity
	Recoverable bool
}

var classifications = map[Kind]Classification{
	KindStorage:       {Kind: KindStorage, Severity: SeverityHigh, Recoverable: false},
	KindNetwork:       {Kind: KindNetwork, Severity: SeverityMedium, Recoverable: true},
	KindSerialization: {Kind: KindSerialization, Severity: SeverityMedium, Recoverable: true},
	KindValidation:    {Kind: KindValidation, Severity: SeverityLow, Recoverable: true},
	KindUnknown:       {Kind: KindUnknown, Severity: SeverityMedium, Recoverable: true},
}

// ClassificationOf 返回类别的默认分类，未知类别退化为 UnknownError。
func ClassificationOf(k Kind) Classification {
	if c, ok := classifications[k]; ok {
		return c
	}
	return classifications[KindUnknown]
}

// 消息特征规则，按顺序匹配，先命中者生效。
// 不可恢复的存储类放在最前，避免被其他宽泛特征抢先命中。
var rules = []struct {
	kind     Kind
	patterns []string
}{
	{KindStorage, []string{"quota", "storage", "capacity", "no space", "disk full", "out of memory", "cache closed"}},
	{KindNetwork, []string{"network", "timeout", "timed out", "connection", "refused", "unreachable", "fetch", "dns"}},
	{KindSerialization, []string{"json", "serializ", "marshal", "parse", "unexpected token", "syntax", "decode", "encode"}},
	{KindValidation, []string{"invalid", "validation", "required", "empty key", "must be", "not allowed"}},
}

// Classify 对错误进行分类。
//
// 判定顺序：
//  1. 错误链中的 *Error 保留其分类
//  2. context.DeadlineExceeded 与 net.Error 视为 NetworkError
//  3. 消息特征（大小写不敏感）
//  4. 默认 UnknownError
//
// nil 错误返回 UnknownError 分类。
func Classify(err error) Classification {
	if err == nil {
		return classifications[KindUnknown]
	}

	var fe *Error
	if errors.As(err, &fe) {
		return Classification{Kind: fe.Kind, Severity: fe.Severity, Recoverable: fe.Recoverable}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return classifications[KindNetwork]
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return classifications[KindNetwork]
	}

	msg := strings.ToLower(err.Error())
	for _, r := range rules {
		for _, p := range r.patterns {
			if strings.Contains(msg, p) {
				return classifications[r.kind]
			}
		}
	}
	return classifications[KindUnknown]
}

// IsRecoverable 判断错误是否可恢复（可重试）。
func IsRecoverable(err error) bool {
	return Classify(err).Recoverable
}
