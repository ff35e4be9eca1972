package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xcachekit/pkg/config/xconf"
	"github.com/omeyang/xcachekit/pkg/observability/xlog"
)

const validConfig = `
default_cache:
  default_ttl: 2m
  max_size: 200
  cleanup_interval: 0
features:
  auth:
    default_ttl: 30s
    max_size: 50
  user:
    enable_lru: true
warming:
  max_concurrency: 2
  targets:
    - pattern: "auth:session"
      priority: 10
      ttl: 10m
    - pattern: "flags"
      priority: 1
analytics:
  max_snapshots: 10
`

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func runCLI(ctx context.Context, args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(ctx, append([]string{"xcachectl"}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestValidate(t *testing.T) {
	path := writeConfig(t, "cache.yaml", validConfig)

	code, out, errOut := runCLI(context.Background(), "-c", path, "validate")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "auth")
	assert.Contains(t, out, "30s")
	assert.Contains(t, out, "warming: 2 targets")
	assert.Contains(t, out, "OK")
}

func TestValidate_Invalid(t *testing.T) {
	path := writeConfig(t, "cache.yaml", "features:\n  auth:\n    max_size: 0\n")

	code, _, errOut := runCLI(context.Background(), "-c", path, "validate")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "features.auth")
}

func TestValidate_UsageErrors(t *testing.T) {
	code, _, errOut := runCLI(context.Background(), "validate")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "--config")

	path := writeConfig(t, "cache.toml", "x = 1")
	code, _, _ = runCLI(context.Background(), "-c", path, "validate")
	assert.Equal(t, 2, code)

	code, _, _ = runCLI(context.Background(), "validate", "--bogus")
	assert.NotZero(t, code)
}

func TestSimulate(t *testing.T) {
	code, out, errOut := runCLI(context.Background(),
		"--log-level", "error",
		"simulate", "--ops", "600", "--keys", "40", "--rounds", "3", "--workers", "3",
		"--features", "auth", "--features", "user", "--export", "csv")
	require.Equal(t, 0, code, errOut)

	assert.Contains(t, out, "FEATURE")
	assert.Contains(t, out, "auth")
	assert.Contains(t, out, "user")
	assert.Contains(t, out, "snapshots: 4")
	assert.Contains(t, out, "events.hit")
	assert.Contains(t, out, "snapshot_id,timestamp,feature")
}

func TestSimulate_UsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"keys", []string{"simulate", "--keys", "1"}},
		{"ops", []string{"simulate", "--ops", "0"}},
		{"workers", []string{"simulate", "--workers", "0"}},
		{"export", []string{"simulate", "--export", "xml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, _ := runCLI(context.Background(), tt.args...)
			assert.Equal(t, 2, code)
		})
	}
}

func TestRun_ExportsOnShutdown(t *testing.T) {
	path := writeConfig(t, "cache.yaml", validConfig)
	export := filepath.Join(t.TempDir(), "analytics.json")

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	code, _, errOut := runCLI(ctx, "-c", path, "--log-level", "error", "run", "--export-file", export)
	require.Equal(t, 0, code, errOut)

	data, err := os.ReadFile(export)
	require.NoError(t, err)
	var doc struct {
		Snapshots []struct {
			Features map[string]struct {
				Size int `json:"size"`
			} `json:"features"`
		} `json:"snapshots"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.Snapshots, 1)
	assert.Equal(t, 1, doc.Snapshots[0].Features["auth"].Size)
	assert.Equal(t, 1, doc.Snapshots[0].Features[defaultWarmFeature].Size)
	assert.Contains(t, doc.Snapshots[0].Features, "user")
}

func TestRun_RejectsBadExportFormat(t *testing.T) {
	path := writeConfig(t, "cache.yaml", validConfig)
	code, _, _ := runCLI(context.Background(), "-c", path, "run", "--export-file", "out.xml")
	assert.Equal(t, 2, code)
}

func TestFeatureOf(t *testing.T) {
	assert.Equal(t, "user", featureOf("user:42", "default"))
	assert.Equal(t, "user", featureOf("user:42:profile", "default"))
	assert.Equal(t, "default", featureOf("flags", "default"))
	assert.Equal(t, "default", featureOf(":x", "default"))
}

func TestDefaultTargets(t *testing.T) {
	cfg := defaultTargets(xconf.WarmingConfig{MaxConcurrency: 2}, []string{"a", "b"})
	require.Len(t, cfg.Targets, 10)
	assert.Equal(t, "a:0", cfg.Targets[0].Pattern)
	assert.Equal(t, 5, cfg.Targets[0].Priority)

	explicit := xconf.WarmingConfig{Targets: []xconf.WarmTarget{{Pattern: "x"}}}
	assert.Equal(t, explicit, defaultTargets(explicit, []string{"a"}))
}

func TestWarmPool_ApplyAndReassign(t *testing.T) {
	src, err := xconf.LoadBytes([]byte(validConfig), xconf.FormatYAML)
	require.NoError(t, err)
	e, err := newEngine(src.Document(), xlog.Discard())
	require.NoError(t, err)
	defer func() { assert.NoError(t, e.Close(context.Background())) }()

	pool := newWarmPool(e, placeholderLoader)
	defer pool.Stop()
	require.NoError(t, pool.Apply(src.Document().Warming))

	reports, err := pool.WarmAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, reports["auth"].Succeeded)
	assert.Equal(t, 1, reports[defaultWarmFeature].Succeeded)

	require.NoError(t, pool.Apply(xconf.WarmingConfig{MaxConcurrency: 1}))
	reports, err = pool.WarmAll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, reports["auth"].Total)
}
