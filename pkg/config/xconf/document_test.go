package xconf

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xcachekit/pkg/storage/xcache"
)

const sampleYAML = `
default_cache:
  default_ttl: 5m
  max_size: 1000
  cleanup_interval: 60000
  enable_stats: true
features:
  auth:
    default_ttl: 30s
    max_size: 100
  user:
    enable_lru: false
warming:
  max_concurrency: 2
  schedule: "@every 5m"
  targets:
    - { pattern: "config:flags", priority: 10, ttl: 10m }
    - { pattern: "config:menu", priority: 1 }
analytics:
  max_snapshots: 10
  schedule: "@every 1m"
`

func TestLoadBytes_YAML(t *testing.T) {
	src, err := LoadBytes([]byte(sampleYAML), FormatYAML)
	require.NoError(t, err)
	doc := src.Document()

	require.NotNil(t, doc.DefaultCache.DefaultTTL)
	assert.Equal(t, 5*time.Minute, *doc.DefaultCache.DefaultTTL)
	assert.Equal(t, time.Minute, *doc.DefaultCache.CleanupInterval, "integers are milliseconds")
	assert.Nil(t, doc.DefaultCache.EnableLRU)

	assert.Equal(t, []string{"auth", "user"}, doc.FeatureNames())
	auth := doc.FeatureConfig("auth")
	assert.Equal(t, 30*time.Second, auth.DefaultTTL)
	assert.Equal(t, 100, auth.MaxSize)
	assert.Equal(t, time.Minute, auth.CleanupInterval)
	assert.True(t, auth.EnableLRU)

	user := doc.FeatureConfig("user")
	assert.False(t, user.EnableLRU)
	assert.Equal(t, 1000, user.MaxSize)

	assert.Equal(t, 2, doc.Warming.MaxConcurrency)
	assert.Equal(t, "@every 5m", doc.Warming.Schedule)
	assert.Equal(t, []WarmTarget{
		{Pattern: "config:flags", Priority: 10, TTL: 10 * time.Minute},
		{Pattern: "config:menu", Priority: 1},
	}, doc.Warming.Targets)
	assert.Equal(t, AnalyticsConfig{MaxSnapshots: 10, Schedule: "@every 1m"}, doc.Analytics)

	require.NoError(t, doc.Validate())
	assert.Equal(t, "@every 5m", src.Client().String("warming.schedule"))
}

func TestLoadBytes_JSON(t *testing.T) {
	data := `{"default_cache":{"default_ttl":1500,"max_size":5},"features":{"auth":{"enable_stats":false}}}`
	src, err := LoadBytes([]byte(data), FormatJSON)
	require.NoError(t, err)
	doc := src.Document()

	assert.Equal(t, 1500*time.Millisecond, *doc.DefaultCache.DefaultTTL)
	assert.Equal(t, 5, *doc.DefaultCache.MaxSize)
	assert.False(t, doc.FeatureConfig("auth").EnableStats)
	assert.Equal(t, defaultWarmConcurrency, doc.Warming.MaxConcurrency)
	assert.Equal(t, defaultMaxSnapshots, doc.Analytics.MaxSnapshots)
}

func TestLoadBytes_Empty(t *testing.T) {
	src, err := LoadBytes(nil, FormatYAML)
	require.NoError(t, err)
	doc := src.Document()
	assert.True(t, doc.DefaultCache.IsZero())
	assert.Empty(t, doc.Features)
	assert.Equal(t, xcache.DefaultConfig(), doc.FeatureConfig("any"))
	assert.NoError(t, doc.Validate())
}

func TestLoadBytes_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"bad yaml", "default_cache: [", ErrParseFailed},
		{"bad duration", "default_cache: { default_ttl: soon }", ErrInvalidValue},
		{"fractional int", "default_cache: { max_size: 1.5 }", ErrInvalidValue},
		{"bool type", "features: { auth: { enable_lru: yes please } }", ErrInvalidValue},
		{"unknown field", "default_cache: { max_entries: 10 }", ErrInvalidValue},
		{"schedule type", "warming: { schedule: 5 }", ErrInvalidValue},
		{"ttl millis overflow", "default_cache: { default_ttl: 10000000000000000 }", ErrInvalidValue},
		{"negative ttl millis overflow", "default_cache: { cleanup_interval: -10000000000000000 }", ErrInvalidValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadBytes([]byte(tt.data), FormatYAML)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := LoadBytes(nil, Format("toml"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = LoadBytes([]byte(`{"default_cache":{"max_size":1e19}}`), FormatJSON)
	assert.ErrorIs(t, err, ErrInvalidValue)
	_, err = LoadBytes([]byte(`{"default_cache":{"default_ttl":1e16}}`), FormatJSON)
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestToInt_Range(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want int
		ok   bool
	}{
		{"int", 42, 42, true},
		{"int64", int64(-7), -7, true},
		{"uint64", uint64(9), 9, true},
		{"uint64 overflow", uint64(math.MaxUint64), 0, false},
		{"float integral", 3.0, 3, true},
		{"float fraction", 1.5, 0, false},
		{"float overflow", 1e19, 0, false},
		{"float underflow", -1e19, 0, false},
		{"float nan", math.NaN(), 0, false},
		{"float inf", math.Inf(1), 0, false},
		{"string", "1", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := toInt(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDocument_Validate(t *testing.T) {
	data := `
default_cache: { max_size: 0 }
features:
  auth: { cleanup_interval: -1s }
warming:
  max_concurrency: 0
  schedule: "not a cron"
  targets: [ { priority: 3 } ]
analytics: { max_snapshots: -1 }
`
	src, err := LoadBytes([]byte(data), FormatYAML)
	require.NoError(t, err)

	err = src.Document().Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, xcache.ErrInvalidConfig)
	assert.ErrorIs(t, err, ErrInvalidValue)
	for _, want := range []string{"default_cache", "features.auth", "max_concurrency", "targets[0]", "max_snapshots", "warming.schedule"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.yml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	src, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, src.Path())
	assert.Equal(t, FormatYAML, src.Format())

	require.NoError(t, os.WriteFile(path, []byte("default_cache: { max_size: 7 }"), 0o600))
	doc, err := src.Reload()
	require.NoError(t, err)
	assert.Equal(t, 7, *doc.DefaultCache.MaxSize)

	// 解析失败保留旧 Document
	require.NoError(t, os.WriteFile(path, []byte("default_cache: ["), 0o600))
	_, err = src.Reload()
	assert.ErrorIs(t, err, ErrParseFailed)
	assert.Equal(t, 7, *src.Document().DefaultCache.MaxSize)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load("")
	assert.ErrorIs(t, err, ErrEmptyPath)
	_, err = Load("cache.toml")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, ErrLoadFailed)

	src, err := LoadBytes(nil, FormatJSON)
	require.NoError(t, err)
	_, err = src.Reload()
	assert.ErrorIs(t, err, ErrNotWatchable)
}
