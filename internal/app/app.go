package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"MoviePageViews/internal/catalog"
	"MoviePageViews/internal/config"
	"MoviePageViews/internal/domain"
	"MoviePageViews/internal/infrastructure/output"
	"MoviePageViews/internal/infrastructure/parser"
	"MoviePageViews/internal/infrastructure/scheduler"
	"MoviePageViews/internal/infrastructure/stats"
	"MoviePageViews/internal/infrastructure/storage"
	"MoviePageViews/internal/infrastructure/telemetry"
	"MoviePageViews/internal/logging"
	"MoviePageViews/internal/ports"
	"MoviePageViews/internal/usecase"
)

// Options carries process-level collaborators; zero values mean os.Stdout and
// default HTTP clients.
type Options struct {
	Stdout      io.Writer
	CatalogHTTP *http.Client
	StatsHTTP   *http.Client
}

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	pipeline *usecase.Pipeline
	archive  *storage.SQLArchive
	logger   *slog.Logger
}

// New builds a runnable application instance.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger, opts Options) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}

	registry := catalog.NewRegistry()
	registry.Register(parser.NewWidgetScanner(opts.CatalogHTTP, baseLogger.With("component", "scanner.widget")))
	source := parser.NewStrategySource(registry, cfg.Catalog, baseLogger.With("component", "source"))

	fetcher := stats.NewClient(cfg.Stats.BaseURL,
		stats.WithTimeout(cfg.Stats.Timeout.Duration),
		stats.WithUserAgent(cfg.Stats.UserAgent),
		stats.WithHTTPClient(opts.StatsHTTP),
	)

	var sink ports.ReportSink
	if cfg.Output.Path == "-" {
		sink = output.NewWriterSink(opts.Stdout, cfg.Output.Format)
	} else {
		sink = output.NewFileSink(cfg.Output.Path, cfg.Output.Format)
	}

	application := &Application{cfg: cfg, logger: baseLogger}

	deps := usecase.PipelineDeps{
		Source:      source,
		Fetcher:     fetcher,
		Sink:        sink,
		Concurrency: cfg.Pipeline.Concurrency,
		Timeout:     fetcher.Timeout(),
		Limit:       cfg.Pipeline.Limit,
		Logger:      baseLogger.With("component", "pipeline"),
	}

	if cfg.Archive.DSN != "" {
		archive, err := storage.Open(ctx, cfg.Archive.Driver, cfg.Archive.DSN)
		if err != nil {
			return nil, fmt.Errorf("open report archive: %w", err)
		}
		application.archive = archive
		deps.Archive = archive
	}

	if cfg.Telemetry.TextfilePath != "" {
		deps.Recorder = telemetry.NewTextfileRecorder(cfg.Telemetry.TextfilePath)
	}

	application.pipeline = usecase.NewPipeline(deps)
	return application, nil
}

// Run performs a single ranking, or keeps ranking every scheduler interval
// until ctx is cancelled.
func (a *Application) Run(ctx context.Context) error {
	if a.pipeline == nil {
		return nil
	}

	interval := a.cfg.Scheduler.Interval.Duration
	if interval <= 0 {
		_, err := a.pipeline.Process(ctx, time.Now().In(a.cfg.Scheduler.Location()))
		return err
	}

	sched := usecase.NewScheduler(
		scheduler.NewTickerScheduler(interval),
		a.pipeline,
		a.cfg.Scheduler.Location(),
		a.logger.With("component", "scheduler"),
	)
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("scheduler started", "interval", interval)

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Stats.Timeout.Duration+5*time.Second)
	defer cancel()
	if err := sched.Stop(stopCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("stop scheduler: %w", err)
	}
	a.logger.Info("scheduler stopped")
	return nil
}

// Close releases the archive connection, if any.
func (a *Application) Close() error {
	if a.archive == nil {
		return nil
	}
	return a.archive.Close()
}

// ArchivedReport loads a previously archived run.
func ArchivedReport(ctx context.Context, cfg config.Config, runID string) (domain.Report, error) {
	if cfg.Archive.DSN == "" {
		return domain.Report{}, errors.New("report archive is not configured (set archive.dsn or MPV_ARCHIVE_DSN)")
	}

	archive, err := storage.Open(ctx, cfg.Archive.Driver, cfg.Archive.DSN)
	if err != nil {
		return domain.Report{}, fmt.Errorf("open report archive: %w", err)
	}
	defer archive.Close()

	return archive.LoadReport(ctx, runID)
}
