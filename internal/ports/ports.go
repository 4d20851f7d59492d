package ports

import (
	"context"
	"time"

	"MoviePageViews/internal/domain"
)

// CatalogSource discovers the movies to rank.
type CatalogSource interface {
	FetchMovies(ctx context.Context) ([]domain.Movie, error)
}

// PageViewFetcher retrieves the raw stats document for one lookup key.
type PageViewFetcher interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
}

// ReportSink emits a finished ranking.
type ReportSink interface {
	Emit(ctx context.Context, report domain.Report) error
}

// ReportArchive keeps finished reports for later inspection.
type ReportArchive interface {
	SaveReport(ctx context.Context, report domain.Report) error
	LoadReport(ctx context.Context, runID string) (domain.Report, error)
}

// RunRecorder publishes per-run counters.
type RunRecorder interface {
	RecordRun(ctx context.Context, stats domain.RunStats) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
