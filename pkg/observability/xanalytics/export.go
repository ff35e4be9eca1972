package xanalytics

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Format 导出格式
type Format string

// 支持的导出格式
const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ErrUnsupportedFormat 表示不支持的导出格式
var ErrUnsupportedFormat = errors.New("xanalytics: unsupported export format")

// ParseFormat 解析格式名，大小写不敏感
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatCSV:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

var csvHeader = []string{
	"snapshot_id", "timestamp", "feature",
	"size", "hits", "misses", "evictions", "total_requests", "hit_rate",
}

// Export 将历史快照写入 w。
//
// JSON 输出 {"summary": ..., "snapshots": [...]}；
// CSV 每个 (快照, feature) 一行，feature 按名称排序。
func (d *Dashboard) Export(w io.Writer, format Format) error {
	switch format {
	case FormatJSON:
		return d.exportJSON(w)
	case FormatCSV:
		return d.exportCSV(w)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

type exportDocument struct {
	Summary   Summary    `json:"summary"`
	Snapshots []Snapshot `json:"snapshots"`
}

func (d *Dashboard) exportJSON(w io.Writer) error {
	snaps := d.Snapshots()
	if snaps == nil {
		snaps = []Snapshot{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(exportDocument{Summary: d.Summary(), Snapshots: snaps}); err != nil {
		return fmt.Errorf("xanalytics: encode json: %w", err)
	}
	return nil
}

func (d *Dashboard) exportCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("xanalytics: write csv: %w", err)
	}
	for _, snap := range d.Snapshots() {
		ts := snap.Timestamp.UTC().Format(time.RFC3339Nano)
		for _, name := range slices.Sorted(maps.Keys(snap.Features)) {
			s := snap.Features[name]
			record := []string{
				snap.ID, ts, name,
				strconv.Itoa(s.Size),
				strconv.FormatInt(s.Hits, 10),
				strconv.FormatInt(s.Misses, 10),
				strconv.FormatInt(s.Evictions, 10),
				strconv.FormatInt(s.TotalRequests, 10),
				strconv.FormatFloat(s.HitRate, 'f', 4, 64),
			}
			if err := cw.Write(record); err != nil {
				return fmt.Errorf("xanalytics: write csv: %w", err)
			}
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("xanalytics: write csv: %w", err)
	}
	return nil
}
