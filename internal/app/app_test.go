package app

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"MoviePageViews/internal/config"
)

const catalogDoc = `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml"><body>
  <a id="1" data-t="B" href="/m/1"></a>
  <a id="2" data-t="A" href="/m/2"></a>
  <a id="3" data-t="The Matrix" href="/m/3"></a>
  <a id="4" data-t="Slow Movie" href="/m/4"></a>
  <a id="5" data-t="Broken Stats" href="/m/5"></a>
  <a id="6" data-t="" href="/m/6"></a>
</body></html>`

func newServers(t *testing.T) (catalogURL, statsURL string) {
	t.Helper()

	catalog := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(catalogDoc))
	}))
	t.Cleanup(catalog.Close)

	payloads := map[string]string{
		"B":            `{"daily_views": {"2014-08-01": 200, "2014-08-02": 300}}`,
		"A":            `{"daily_views": [100, 400]}`,
		"The+Matrix":   `{"daily_views": [10, "invalid", 20, null]}`,
		"Broken+Stats": `<html>oops</html>`,
	}
	stats := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(r.URL.EscapedPath(), "/json/en/201408/")
		if key == "Slow+Movie" {
			select {
			case <-time.After(2 * time.Second):
			case <-r.Context().Done():
			}
			return
		}
		payload, ok := payloads[key]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(payload))
	}))
	t.Cleanup(stats.Close)

	return catalog.URL + "/movie.widget", stats.URL + "/json/en/201408/"
}

func testConfig(t *testing.T, catalogURL, statsURL string) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Catalog.URL = catalogURL
	cfg.Stats.BaseURL = statsURL
	cfg.Stats.Timeout = config.Duration{Duration: 200 * time.Millisecond}
	cfg.Pipeline.Concurrency = 3
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("Finalize error: %v", err)
	}
	return cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestApplicationRunWritesRankedReport(t *testing.T) {
	t.Parallel()

	catalogURL, statsURL := newServers(t)
	cfg := testConfig(t, catalogURL, statsURL)

	var stdout bytes.Buffer
	application, err := New(context.Background(), cfg, quietLogger(), Options{Stdout: &stdout})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer application.Close()

	if err := application.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	want := `{
  "movie-2": {
    "title": "A",
    "id": "2",
    "totalPageViews": 500
  },
  "movie-1": {
    "title": "B",
    "id": "1",
    "totalPageViews": 500
  },
  "movie-3": {
    "title": "The Matrix",
    "id": "3",
    "totalPageViews": 30
  }
}
`
	if stdout.String() != want {
		t.Fatalf("unexpected report:\n%s\nwant:\n%s", stdout.String(), want)
	}
}

func TestApplicationArchiveAndTelemetry(t *testing.T) {
	t.Parallel()

	catalogURL, statsURL := newServers(t)
	cfg := testConfig(t, catalogURL, statsURL)

	dir := t.TempDir()
	cfg.Output.Path = filepath.Join(dir, "out", "ranking.json")
	cfg.Pipeline.Limit = 2
	cfg.Archive = config.ArchiveConfig{Driver: "sqlite", DSN: filepath.Join(dir, "archive.db")}
	cfg.Telemetry.TextfilePath = filepath.Join(dir, "mpv.prom")

	application, err := New(context.Background(), cfg, quietLogger(), Options{})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	report, err := application.pipeline.Process(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}
	if err := application.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	if len(report.Entries) != 2 {
		t.Fatalf("expected 2 entries after limit, got %d", len(report.Entries))
	}

	raw, err := os.ReadFile(cfg.Output.Path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !strings.Contains(string(raw), `"movie-2"`) || strings.Contains(string(raw), `"movie-3"`) {
		t.Fatalf("unexpected file report:\n%s", raw)
	}

	archived, err := ArchivedReport(context.Background(), cfg, report.RunID)
	if err != nil {
		t.Fatalf("ArchivedReport error: %v", err)
	}
	if len(archived.Entries) != 2 || archived.Entries[0].Movie.ID != "2" {
		t.Fatalf("unexpected archived report: %+v", archived)
	}

	metrics, err := os.ReadFile(cfg.Telemetry.TextfilePath)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	for _, want := range []string{
		"moviepageviews_movies_discovered 6",
		"moviepageviews_movies_scored 3",
		"moviepageviews_movies_reported 2",
		`moviepageviews_movies_excluded{reason="fetch"} 1`,
		`moviepageviews_movies_excluded{reason="parse"} 1`,
		`moviepageviews_movies_excluded{reason="encoding"} 1`,
	} {
		if !strings.Contains(string(metrics), want) {
			t.Fatalf("metrics missing %q:\n%s", want, metrics)
		}
	}
}

func TestApplicationCatalogFailureIsFatal(t *testing.T) {
	t.Parallel()

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer down.Close()

	cfg := testConfig(t, down.URL, down.URL+"/")
	var stdout bytes.Buffer
	application, err := New(context.Background(), cfg, quietLogger(), Options{Stdout: &stdout})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	if err := application.Run(context.Background()); err == nil {
		t.Fatalf("expected discovery failure to fail the run")
	}
	if stdout.Len() != 0 {
		t.Fatalf("no report expected on fatal failure, got %q", stdout.String())
	}
}

func TestApplicationIntervalStopsOnCancel(t *testing.T) {
	t.Parallel()

	catalogURL, statsURL := newServers(t)
	cfg := testConfig(t, catalogURL, statsURL)
	cfg.Scheduler.Interval = config.Duration{Duration: time.Hour}

	var stdout syncBuffer
	application, err := New(context.Background(), cfg, quietLogger(), Options{Stdout: &stdout})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- application.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(stdout.String(), "movie-3") {
		if time.Now().After(deadline) {
			t.Fatalf("first scheduled run did not produce a report")
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not return after cancellation")
	}
}

func TestArchivedReportRequiresDSN(t *testing.T) {
	t.Parallel()

	if _, err := ArchivedReport(context.Background(), config.Default(), "x"); err == nil {
		t.Fatalf("expected error without archive dsn")
	}
}
