package telemetry

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"MoviePageViews/internal/domain"
	"MoviePageViews/internal/ports"
)

const namespace = "moviepageviews"

// TextfileRecorder writes the latest run's counters in Prometheus text format,
// for node-exporter's textfile collector.
type TextfileRecorder struct {
	path string
}

var _ ports.RunRecorder = (*TextfileRecorder)(nil)

// NewTextfileRecorder targets path; the file is replaced on every run.
func NewTextfileRecorder(path string) *TextfileRecorder {
	return &TextfileRecorder{path: path}
}

// RecordRun renders stats and atomically replaces the textfile.
func (r *TextfileRecorder) RecordRun(_ context.Context, stats domain.RunStats) error {
	var buf bytes.Buffer
	for _, mf := range families(stats) {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return fmt.Errorf("encode %s: %w", mf.GetName(), err)
		}
	}

	dir := filepath.Dir(r.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create metrics temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write metrics: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close metrics: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod metrics: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		return fmt.Errorf("replace metrics file: %w", err)
	}
	return nil
}

func families(stats domain.RunStats) []*dto.MetricFamily {
	excluded := &dto.MetricFamily{
		Name: ptr(namespace + "_movies_excluded"),
		Help: ptr("Movies dropped from the last report, by reason."),
		Type: dto.MetricType_GAUGE.Enum(),
	}
	reasons := []domain.ExclusionReason{domain.ReasonEncoding, domain.ReasonFetch, domain.ReasonParse, domain.ReasonDuplicate}
	for reason := range stats.Excluded {
		if !containsReason(reasons, reason) {
			reasons = append(reasons, reason)
		}
	}
	sort.Slice(reasons, func(i, j int) bool { return reasons[i] < reasons[j] })
	for _, reason := range reasons {
		excluded.Metric = append(excluded.Metric, &dto.Metric{
			Label: []*dto.LabelPair{{Name: ptr("reason"), Value: ptr(string(reason))}},
			Gauge: &dto.Gauge{Value: ptr(float64(stats.Excluded[reason]))},
		})
	}

	return []*dto.MetricFamily{
		gauge("movies_discovered", "Movies found in the catalog during the last run.", float64(stats.Discovered)),
		gauge("movies_scored", "Movies whose page views were fetched and summed.", float64(stats.Scored)),
		gauge("movies_reported", "Movies written to the last report.", float64(stats.Reported)),
		excluded,
		gauge("run_duration_seconds", "Wall time of the last run.", stats.Duration.Seconds()),
		gauge("last_success_timestamp_seconds", "Unix time the last run finished.", float64(stats.FinishedAt.UnixNano())/1e9),
	}
}

func gauge(name, help string, value float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: ptr(namespace + "_" + name),
		Help: ptr(help),
		Type: dto.MetricType_GAUGE.Enum(),
		Metric: []*dto.Metric{
			{Gauge: &dto.Gauge{Value: ptr(value)}},
		},
	}
}

func containsReason(list []domain.ExclusionReason, reason domain.ExclusionReason) bool {
	for _, r := range list {
		if r == reason {
			return true
		}
	}
	return false
}

func ptr[T any](v T) *T {
	return &v
}
