package xcache

import (
	"regexp"
	"strings"
)

type patternKind uint8

const (
	patternInvalid patternKind = iota
	patternContains
	patternRegexp
)

// Pattern 批量失效使用的 key 匹配模式。零值无效。
type Pattern struct {
	kind   patternKind
	substr string
	re     *regexp.Regexp
}

// Contains 匹配包含 s 的 key；s 为空时匹配所有 key。
func Contains(s string) Pattern {
	return Pattern{kind: patternContains, substr: s}
}

// Regexp 匹配满足正则的 key；re 为 nil 时返回无效模式。
func Regexp(re *regexp.Regexp) Pattern {
	if re == nil {
		return Pattern{}
	}
	return Pattern{kind: patternRegexp, re: re}
}

// CompilePattern 编译正则表达式模式。
func CompilePattern(expr string) (Pattern, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return Pattern{}, err
	}
	return Regexp(re), nil
}

// Valid 报告模式是否可用
func (p Pattern) Valid() bool {
	return p.kind != patternInvalid
}

// Match 报告 key 是否匹配
func (p Pattern) Match(key string) bool {
	switch p.kind {
	case patternContains:
		return strings.Contains(key, p.substr)
	case patternRegexp:
		return p.re.MatchString(key)
	default:
		return false
	}
}

func (p Pattern) String() string {
	switch p.kind {
	case patternContains:
		return "contains:" + p.substr
	case patternRegexp:
		return "regexp:" + p.re.String()
	default:
		return "invalid"
	}
}
