package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"MoviePageViews/internal/domain"
	"MoviePageViews/internal/ports"
)

// PipelineDeps wires all driven adapters into the ranking pipeline.
type PipelineDeps struct {
	Source   ports.CatalogSource
	Fetcher  ports.PageViewFetcher
	Sink     ports.ReportSink
	Archive  ports.ReportArchive
	Recorder ports.RunRecorder

	Concurrency int
	Timeout     time.Duration
	Limit       int

	Logger   *slog.Logger
	NewRunID func() string
}

// Pipeline implements the discover, score, rank and report workflow.
type Pipeline struct {
	source   ports.CatalogSource
	scorer   *Scorer
	sink     ports.ReportSink
	archive  ports.ReportArchive
	recorder ports.RunRecorder
	limit    int
	logger   *slog.Logger
	newRunID func() string
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	newRunID := deps.NewRunID
	if newRunID == nil {
		newRunID = uuid.NewString
	}

	return &Pipeline{
		source:   deps.Source,
		scorer:   NewScorer(deps.Fetcher, deps.Concurrency, deps.Timeout, logger.With("component", "scorer")),
		sink:     deps.Sink,
		archive:  deps.Archive,
		recorder: deps.Recorder,
		limit:    deps.Limit,
		logger:   logger,
		newRunID: newRunID,
	}
}

// Process runs one complete ranking. Discovery and report emission failures
// fail the run, as does cancellation of ctx, which leaves every sink untouched.
// Archive and telemetry problems are logged.
func (p *Pipeline) Process(ctx context.Context, now time.Time) (domain.Report, error) {
	if p.source == nil || p.sink == nil {
		return domain.Report{}, fmt.Errorf("pipeline requires a catalog source and a report sink")
	}

	started := time.Now()
	runID := p.newRunID()
	logger := p.logger.With("run_id", runID)

	movies, err := p.source.FetchMovies(ctx)
	if err != nil {
		return domain.Report{}, fmt.Errorf("discover movies: %w", err)
	}
	logger.Info("catalog discovered", "movies", len(movies))

	outcome := p.scorer.Run(ctx, movies)
	if err := ctx.Err(); err != nil {
		return domain.Report{}, fmt.Errorf("score movies: %w", err)
	}
	for _, ex := range outcome.Excluded {
		logger.Debug("movie excluded", "id", ex.Movie.ID, "title", ex.Movie.Title, "reason", ex.Reason, "error", ex.Err)
	}

	report := domain.Report{
		RunID:       runID,
		GeneratedAt: now,
		Entries:     Rank(outcome.Scored, p.limit),
	}

	if err := p.sink.Emit(ctx, report); err != nil {
		return domain.Report{}, fmt.Errorf("emit report: %w", err)
	}

	if p.archive != nil {
		if err := p.archive.SaveReport(ctx, report); err != nil {
			logger.Warn("archive report failed", "error", err)
		}
	}

	stats := domain.RunStats{
		RunID:      runID,
		Discovered: len(movies),
		Scored:     len(outcome.Scored),
		Reported:   len(report.Entries),
		Excluded:   outcome.ExcludedByReason(),
		Duration:   time.Since(started),
		FinishedAt: time.Now(),
	}

	if p.recorder != nil {
		if err := p.recorder.RecordRun(ctx, stats); err != nil {
			logger.Warn("record run metrics failed", "error", err)
		}
	}

	logger.Info("ranking finished",
		"discovered", stats.Discovered,
		"scored", stats.Scored,
		"reported", stats.Reported,
		"excluded", len(outcome.Excluded),
		"duration", stats.Duration.Round(time.Millisecond),
	)

	return report, nil
}
