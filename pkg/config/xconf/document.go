package xconf

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/knadh/koanf/v2"
	"github.com/robfig/cron/v3"

	"github.com/omeyang/xcachekit/pkg/storage/xcache"
)

const (
	defaultWarmConcurrency = 4
	defaultMaxSnapshots    = 288
)

// Document 缓存管理器的完整文件配置
type Document struct {
	// DefaultCache 所有 feature 共享的默认覆盖
	DefaultCache xcache.ConfigPatch
	// Features 按 feature 名的覆盖
	Features  map[string]xcache.ConfigPatch
	Warming   WarmingConfig
	Analytics AnalyticsConfig
}

// WarmingConfig 预热配置
type WarmingConfig struct {
	MaxConcurrency int
	// Schedule cron 表达式，为空表示不定时预热
	Schedule string
	Targets  []WarmTarget
}

// WarmTarget 预热目标
type WarmTarget struct {
	Pattern  string
	Priority int
	// TTL 为 0 时使用缓存的 DefaultTTL
	TTL time.Duration
}

// AnalyticsConfig 统计快照配置
type AnalyticsConfig struct {
	MaxSnapshots int
	Schedule     string
}

// FeatureConfig 返回 feature 的最终配置：默认值 < DefaultCache < Features[name]。
func (d Document) FeatureConfig(name string) xcache.Config {
	return xcache.DefaultConfig().Apply(d.DefaultCache.Merge(d.Features[name]))
}

// FeatureNames 返回排序后的 feature 名
func (d Document) FeatureNames() []string {
	names := make([]string, 0, len(d.Features))
	for name := range d.Features {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Validate 校验合并后的缓存配置、预热目标与 cron 表达式，返回所有问题。
func (d Document) Validate() error {
	var errs []error
	if err := xcache.DefaultConfig().Apply(d.DefaultCache).Validate(); err != nil {
		errs = append(errs, fmt.Errorf("default_cache: %w", err))
	}
	for _, name := range d.FeatureNames() {
		if err := d.FeatureConfig(name).Validate(); err != nil {
			errs = append(errs, fmt.Errorf("features.%s: %w", name, err))
		}
	}
	if d.Warming.MaxConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("%w: warming.max_concurrency must be positive", ErrInvalidValue))
	}
	for i, t := range d.Warming.Targets {
		if t.Pattern == "" {
			errs = append(errs, fmt.Errorf("%w: warming.targets[%d].pattern is empty", ErrInvalidValue, i))
		}
	}
	if d.Analytics.MaxSnapshots <= 0 {
		errs = append(errs, fmt.Errorf("%w: analytics.max_snapshots must be positive", ErrInvalidValue))
	}
	for path, spec := range map[string]string{
		"warming.schedule":   d.Warming.Schedule,
		"analytics.schedule": d.Analytics.Schedule,
	} {
		if spec == "" {
			continue
		}
		if _, err := cron.ParseStandard(spec); err != nil {
			errs = append(errs, fmt.Errorf("%w: %s: %w", ErrInvalidValue, path, err))
		}
	}
	return errors.Join(errs...)
}

// decode 把 koanf 树解析为 Document
func decode(k *koanf.Koanf) (Document, error) {
	doc := Document{
		Features:  make(map[string]xcache.ConfigPatch),
		Warming:   WarmingConfig{MaxConcurrency: defaultWarmConcurrency},
		Analytics: AnalyticsConfig{MaxSnapshots: defaultMaxSnapshots},
	}
	var err error

	if doc.DefaultCache, err = decodePatch(k.Cut("default_cache"), "default_cache"); err != nil {
		return Document{}, err
	}
	for _, name := range k.MapKeys("features") {
		path := "features." + name
		patch, perr := decodePatch(k.Cut(path), path)
		if perr != nil {
			return Document{}, perr
		}
		doc.Features[name] = patch
	}

	w := k.Cut("warming")
	if n, ok, ierr := intAt(w, "max_concurrency", "warming"); ierr != nil {
		return Document{}, ierr
	} else if ok {
		doc.Warming.MaxConcurrency = n
	}
	if doc.Warming.Schedule, err = stringAt(w, "schedule", "warming"); err != nil {
		return Document{}, err
	}
	for i, t := range w.Slices("targets") {
		prefix := fmt.Sprintf("warming.targets[%d]", i)
		target, terr := decodeTarget(t, prefix)
		if terr != nil {
			return Document{}, terr
		}
		doc.Warming.Targets = append(doc.Warming.Targets, target)
	}

	a := k.Cut("analytics")
	if n, ok, ierr := intAt(a, "max_snapshots", "analytics"); ierr != nil {
		return Document{}, ierr
	} else if ok {
		doc.Analytics.MaxSnapshots = n
	}
	if doc.Analytics.Schedule, err = stringAt(a, "schedule", "analytics"); err != nil {
		return Document{}, err
	}
	return doc, nil
}

func decodePatch(k *koanf.Koanf, prefix string) (xcache.ConfigPatch, error) {
	var p xcache.ConfigPatch
	for _, key := range k.Keys() {
		switch key {
		case "default_ttl", "max_size", "cleanup_interval", "enable_stats", "enable_lru":
		default:
			return p, fmt.Errorf("%w: unknown field %s.%s", ErrInvalidValue, prefix, key)
		}
	}

	if d, ok, err := durationAt(k, "default_ttl", prefix); err != nil {
		return p, err
	} else if ok {
		p.DefaultTTL = &d
	}
	if n, ok, err := intAt(k, "max_size", prefix); err != nil {
		return p, err
	} else if ok {
		p.MaxSize = &n
	}
	if d, ok, err := durationAt(k, "cleanup_interval", prefix); err != nil {
		return p, err
	} else if ok {
		p.CleanupInterval = &d
	}
	if b, ok, err := boolAt(k, "enable_stats", prefix); err != nil {
		return p, err
	} else if ok {
		p.EnableStats = &b
	}
	if b, ok, err := boolAt(k, "enable_lru", prefix); err != nil {
		return p, err
	} else if ok {
		p.EnableLRU = &b
	}
	return p, nil
}

func decodeTarget(k *koanf.Koanf, prefix string) (WarmTarget, error) {
	var t WarmTarget
	var err error
	if t.Pattern, err = stringAt(k, "pattern", prefix); err != nil {
		return t, err
	}
	if n, ok, ierr := intAt(k, "priority", prefix); ierr != nil {
		return t, ierr
	} else if ok {
		t.Priority = n
	}
	if d, ok, derr := durationAt(k, "ttl", prefix); derr != nil {
		return t, derr
	} else if ok {
		t.TTL = d
	}
	return t, nil
}

// =============================================================================
// 标量解析
//
// YAML 解析出的整数为 int，JSON 解析出的数字为 float64，两者都需要支持。
// =============================================================================

func invalid(prefix, key string, v any, want string) error {
	return fmt.Errorf("%w: %s.%s = %v, want %s", ErrInvalidValue, prefix, key, v, want)
}

// maxDurationMillis 换算为 time.Duration 不溢出的最大毫秒数
const maxDurationMillis = math.MaxInt64 / int64(time.Millisecond)

// durationAt 解析时长：字符串按 time.ParseDuration，整数按毫秒。
func durationAt(k *koanf.Koanf, key, prefix string) (time.Duration, bool, error) {
	if !k.Exists(key) {
		return 0, false, nil
	}
	switch v := k.Get(key).(type) {
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, false, invalid(prefix, key, v, "duration")
		}
		return d, true, nil
	default:
		ms, ok := toInt(v)
		if !ok {
			return 0, false, invalid(prefix, key, v, "duration or milliseconds")
		}
		if int64(ms) > maxDurationMillis || int64(ms) < -maxDurationMillis {
			return 0, false, invalid(prefix, key, v, "milliseconds within duration range")
		}
		return time.Duration(ms) * time.Millisecond, true, nil
	}
}

func intAt(k *koanf.Koanf, key, prefix string) (int, bool, error) {
	if !k.Exists(key) {
		return 0, false, nil
	}
	v := k.Get(key)
	n, ok := toInt(v)
	if !ok {
		return 0, false, invalid(prefix, key, v, "integer")
	}
	return n, true, nil
}

func boolAt(k *koanf.Koanf, key, prefix string) (bool, bool, error) {
	if !k.Exists(key) {
		return false, false, nil
	}
	b, ok := k.Get(key).(bool)
	if !ok {
		return false, false, invalid(prefix, key, k.Get(key), "bool")
	}
	return b, true, nil
}

func stringAt(k *koanf.Koanf, key, prefix string) (string, error) {
	if !k.Exists(key) {
		return "", nil
	}
	s, ok := k.Get(key).(string)
	if !ok {
		return "", invalid(prefix, key, k.Get(key), "string")
	}
	return s, nil
}

// toInt 转换为 int，超出 int 范围或带小数的值返回 false
func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		if n > math.MaxInt || n < math.MinInt {
			return 0, false
		}
		return int(n), true
	case uint64:
		if n > math.MaxInt {
			return 0, false
		}
		return int(n), true
	case float64:
		// float64(math.MaxInt) 向上取整为 2^63，因此上界用 >=
		if math.IsNaN(n) || n >= float64(math.MaxInt) || n < float64(math.MinInt) || n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}
