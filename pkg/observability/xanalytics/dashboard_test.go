package xanalytics

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/omeyang/xcachekit/pkg/observability/xlog"
	"github.com/omeyang/xcachekit/pkg/storage/xcache"
	"github.com/omeyang/xcachekit/pkg/util/xcron"
)

// fakeSource 可修改的统计来源
type fakeSource struct {
	mu    sync.Mutex
	stats map[string]xcache.Stats
}

func (s *fakeSource) GlobalStats() map[string]xcache.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]xcache.Stats, len(s.stats))
	for k, v := range s.stats {
		out[k] = v
	}
	return out
}

func (s *fakeSource) set(name string, st xcache.Stats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stats == nil {
		s.stats = map[string]xcache.Stats{}
	}
	st.HitRate = xcache.HitRate(st.Hits, st.TotalRequests)
	s.stats[name] = st
}

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(5 * time.Minute)
	return t
}

var epoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestDashboard(t *testing.T, src StatsSource, opts ...Option) *Dashboard {
	t.Helper()
	clock := &stepClock{now: epoch}
	opts = append([]Option{WithClock(clock.Now), WithLogger(xlog.Discard())}, opts...)
	d, err := New(src, opts...)
	require.NoError(t, err)
	return d
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrNilSource)

	_, err = New(&fakeSource{}, WithMaxSnapshots(0))
	assert.ErrorIs(t, err, ErrInvalidOption)
}

func TestDashboard_CaptureAndHistoryBound(t *testing.T) {
	src := &fakeSource{}
	d := newTestDashboard(t, src, WithMaxSnapshots(3))

	_, ok := d.Latest()
	assert.False(t, ok)

	for i := range 5 {
		src.set("user", xcache.Stats{Size: i, Hits: int64(i), TotalRequests: int64(i + 1)})
		d.Capture(context.Background())
	}

	snaps := d.Snapshots()
	require.Len(t, snaps, 3)
	assert.Equal(t, 3, d.Len())
	assert.Equal(t, 2, snaps[0].Features["user"].Size)
	assert.Equal(t, 4, snaps[2].Features["user"].Size)
	assert.True(t, snaps[0].Timestamp.Before(snaps[2].Timestamp))
	assert.NotEqual(t, snaps[0].ID, snaps[1].ID)

	latest, ok := d.Latest()
	require.True(t, ok)
	assert.Equal(t, snaps[2].ID, latest.ID)

	d.Reset()
	assert.Zero(t, d.Len())
	_, ok = d.Latest()
	assert.False(t, ok)
}

func TestDashboard_SnapshotIsolatedFromSource(t *testing.T) {
	src := &fakeSource{}
	src.set("auth", xcache.Stats{Size: 1})
	d := newTestDashboard(t, src)

	snap := d.Capture(context.Background())
	src.set("auth", xcache.Stats{Size: 99})
	assert.Equal(t, 1, snap.Features["auth"].Size)
	assert.Equal(t, 1, d.Snapshots()[0].Features["auth"].Size)
}

func TestDashboard_TotalAggregatesFeatures(t *testing.T) {
	src := &fakeSource{}
	src.set("auth", xcache.Stats{Size: 2, Hits: 3, Misses: 1, TotalRequests: 4})
	src.set("user", xcache.Stats{Size: 5, Hits: 1, Misses: 3, Evictions: 2, TotalRequests: 6})
	d := newTestDashboard(t, src)

	total := d.Capture(context.Background()).Total
	assert.Equal(t, 7, total.Size)
	assert.Equal(t, int64(4), total.Hits)
	assert.Equal(t, int64(2), total.Evictions)
	assert.Equal(t, int64(10), total.TotalRequests)
	assert.InDelta(t, 0.4, total.HitRate, 1e-9)
}

func TestDashboard_TrendAndSummary(t *testing.T) {
	src := &fakeSource{}
	d := newTestDashboard(t, src)

	src.set("user", xcache.Stats{Size: 1, Hits: 1, TotalRequests: 2})
	d.Capture(context.Background())
	src.set("user", xcache.Stats{Size: 4, Hits: 3, TotalRequests: 4})
	src.set("post", xcache.Stats{Size: 1, Hits: 0, TotalRequests: 1})
	d.Capture(context.Background())

	trend := d.Trend("user")
	require.Len(t, trend, 2)
	assert.InDelta(t, 0.5, trend[0].HitRate, 1e-9)
	assert.InDelta(t, 0.75, trend[1].HitRate, 1e-9)
	assert.Equal(t, epoch.Add(5*time.Minute), trend[1].Timestamp)
	assert.Len(t, d.Trend("post"), 1)
	assert.Empty(t, d.Trend("missing"))

	sum := d.Summary()
	assert.Equal(t, 2, sum.Snapshots)
	assert.Equal(t, epoch, sum.From)
	assert.Equal(t, epoch.Add(5*time.Minute), sum.To)

	user := sum.Features["user"]
	assert.Equal(t, 2, user.Samples)
	assert.InDelta(t, 0.625, user.AvgHitRate, 1e-9)
	assert.InDelta(t, 0.5, user.MinHitRate, 1e-9)
	assert.InDelta(t, 0.75, user.MaxHitRate, 1e-9)
	assert.Equal(t, 4, user.PeakSize)
	assert.Equal(t, int64(4), user.Last.TotalRequests)
	assert.Equal(t, 5, sum.Overall.Size)

	assert.Equal(t, []string{"post", "user"}, d.FeatureNames())
}

func TestDashboard_SummaryEmpty(t *testing.T) {
	d := newTestDashboard(t, &fakeSource{})
	sum := d.Summary()
	assert.Zero(t, sum.Snapshots)
	assert.NotNil(t, sum.Features)
}

func TestDashboard_ExportJSON(t *testing.T) {
	src := &fakeSource{}
	src.set("user", xcache.Stats{Size: 3, Hits: 1, TotalRequests: 2})
	d := newTestDashboard(t, src)
	d.Capture(context.Background())

	var buf bytes.Buffer
	require.NoError(t, d.Export(&buf, FormatJSON))

	var doc struct {
		Summary   Summary    `json:"summary"`
		Snapshots []Snapshot `json:"snapshots"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	require.Len(t, doc.Snapshots, 1)
	assert.Equal(t, 3, doc.Snapshots[0].Features["user"].Size)
	assert.Equal(t, 1, doc.Summary.Snapshots)

	buf.Reset()
	empty := newTestDashboard(t, &fakeSource{})
	require.NoError(t, empty.Export(&buf, FormatJSON))
	assert.Contains(t, buf.String(), `"snapshots": []`)
}

func TestDashboard_ExportCSV(t *testing.T) {
	src := &fakeSource{}
	src.set("user", xcache.Stats{Size: 3, Hits: 1, Misses: 1, TotalRequests: 2})
	src.set("auth", xcache.Stats{Size: 1, Evictions: 4})
	d := newTestDashboard(t, src)
	snap := d.Capture(context.Background())

	var buf bytes.Buffer
	require.NoError(t, d.Export(&buf, FormatCSV))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, csvHeader, records[0])
	assert.Equal(t, []string{snap.ID, "2025-06-01T12:00:00Z", "auth", "1", "0", "0", "4", "0", "0.0000"}, records[1])
	assert.Equal(t, "user", records[2][2])
	assert.Equal(t, "0.5000", records[2][8])
}

func TestDashboard_ExportUnsupported(t *testing.T) {
	d := newTestDashboard(t, &fakeSource{})
	assert.ErrorIs(t, d.Export(&bytes.Buffer{}, "xml"), ErrUnsupportedFormat)

	f, err := ParseFormat(" CSV ")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)
	_, err = ParseFormat("yaml")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestDashboard_Schedule(t *testing.T) {
	src := &fakeSource{}
	src.set("user", xcache.Stats{Size: 1})
	d := newTestDashboard(t, src)

	assert.ErrorIs(t, d.Schedule("nope"), xcron.ErrInvalidSpec)
	require.NoError(t, d.Schedule("@every 1h", xcron.WithImmediate()))
	assert.ErrorIs(t, d.Schedule("@every 1h"), ErrAlreadyScheduled)

	assert.Eventually(t, func() bool { return d.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
	d.Stop()
	d.Stop()
}

func TestDashboard_RegisterGauges(t *testing.T) {
	src := &fakeSource{}
	src.set("user", xcache.Stats{Size: 7, Hits: 3, Evictions: 2, TotalRequests: 4})
	d := newTestDashboard(t, src)

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	reg, err := d.RegisterGauges(mp.Meter("test"))
	require.NoError(t, err)
	defer func() { assert.NoError(t, reg.Unregister()) }()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	found := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Gauge[int64]:
				require.Len(t, data.DataPoints, 1)
				assert.Equal(t, int64(7), data.DataPoints[0].Value)
				v, _ := data.DataPoints[0].Attributes.Value(attribute.Key("feature"))
				assert.Equal(t, "user", v.AsString())
			case metricdata.Gauge[float64]:
				require.Len(t, data.DataPoints, 1)
				assert.InDelta(t, 0.75, data.DataPoints[0].Value, 1e-9)
			case metricdata.Sum[int64]:
				require.Len(t, data.DataPoints, 1)
				assert.Equal(t, int64(2), data.DataPoints[0].Value)
			}
			found[m.Name] = true
		}
	}
	assert.True(t, found["xcache.size"])
	assert.True(t, found["xcache.hit_rate"])
	assert.True(t, found["xcache.evictions"])
}
