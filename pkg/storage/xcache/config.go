package xcache

import (
	"fmt"
	"time"
)

const (
	defaultTTL             = 5 * time.Minute
	defaultMaxSize         = 1000
	defaultCleanupInterval = time.Minute
)

// Config 缓存实例配置
type Config struct {
	// DefaultTTL Set 未指定 WithTTL 时使用的存活时间
	DefaultTTL time.Duration `json:"default_ttl" yaml:"default_ttl"`
	// MaxSize LRU 启用时的最大条目数
	MaxSize int `json:"max_size" yaml:"max_size"`
	// CleanupInterval 过期清理间隔，0 表示关闭后台清理
	CleanupInterval time.Duration `json:"cleanup_interval" yaml:"cleanup_interval"`
	// EnableStats 是否记录命中/未命中/淘汰统计
	EnableStats bool `json:"enable_stats" yaml:"enable_stats"`
	// EnableLRU 是否启用 LRU 淘汰；关闭时缓存不受 MaxSize 约束
	EnableLRU bool `json:"enable_lru" yaml:"enable_lru"`
}

// DefaultConfig 返回默认配置：TTL 5m，MaxSize 1000，每分钟清理，启用统计与 LRU。
func DefaultConfig() Config {
	return Config{
		DefaultTTL:      defaultTTL,
		MaxSize:         defaultMaxSize,
		CleanupInterval: defaultCleanupInterval,
		EnableStats:     true,
		EnableLRU:       true,
	}
}

// Validate 校验配置。
func (c Config) Validate() error {
	if c.MaxSize <= 0 {
		return fmt.Errorf("%w: max_size must be positive, got %d", ErrInvalidConfig, c.MaxSize)
	}
	if c.CleanupInterval < 0 {
		return fmt.Errorf("%w: cleanup_interval must not be negative, got %s", ErrInvalidConfig, c.CleanupInterval)
	}
	return nil
}

// Apply 返回叠加 patch 后的新配置，patch 中 nil 字段保留原值。
func (c Config) Apply(p ConfigPatch) Config {
	if p.DefaultTTL != nil {
		c.DefaultTTL = *p.DefaultTTL
	}
	if p.MaxSize != nil {
		c.MaxSize = *p.MaxSize
	}
	if p.CleanupInterval != nil {
		c.CleanupInterval = *p.CleanupInterval
	}
	if p.EnableStats != nil {
		c.EnableStats = *p.EnableStats
	}
	if p.EnableLRU != nil {
		c.EnableLRU = *p.EnableLRU
	}
	return c
}

// ConfigPatch 字段级配置覆盖，nil 表示未指定。
type ConfigPatch struct {
	DefaultTTL      *time.Duration
	MaxSize         *int
	CleanupInterval *time.Duration
	EnableStats     *bool
	EnableLRU       *bool
}

// Merge 返回 over 覆盖 p 之后的结果（over 中非 nil 字段优先）。
func (p ConfigPatch) Merge(over ConfigPatch) ConfigPatch {
	if over.DefaultTTL != nil {
		p.DefaultTTL = over.DefaultTTL
	}
	if over.MaxSize != nil {
		p.MaxSize = over.MaxSize
	}
	if over.CleanupInterval != nil {
		p.CleanupInterval = over.CleanupInterval
	}
	if over.EnableStats != nil {
		p.EnableStats = over.EnableStats
	}
	if over.EnableLRU != nil {
		p.EnableLRU = over.EnableLRU
	}
	return p
}

// IsZero 报告 patch 是否未指定任何字段。
func (p ConfigPatch) IsZero() bool {
	return p.DefaultTTL == nil && p.MaxSize == nil && p.CleanupInterval == nil &&
		p.EnableStats == nil && p.EnableLRU == nil
}

// PatchOf 把完整配置转为所有字段都指定的 patch。
func PatchOf(c Config) ConfigPatch {
	return ConfigPatch{
		DefaultTTL:      Ptr(c.DefaultTTL),
		MaxSize:         Ptr(c.MaxSize),
		CleanupInterval: Ptr(c.CleanupInterval),
		EnableStats:     Ptr(c.EnableStats),
		EnableLRU:       Ptr(c.EnableLRU),
	}
}

// Ptr 返回 v 的指针，便于构造 ConfigPatch。
func Ptr[V any](v V) *V {
	return &v
}
