package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"MoviePageViews/internal/domain"
	"MoviePageViews/internal/ports"
)

// ErrReportNotFound is returned by LoadReport for unknown run ids.
var ErrReportNotFound = errors.New("report not found")

var schema = []string{
	`CREATE TABLE IF NOT EXISTS report_runs (
		run_id       TEXT PRIMARY KEY,
		generated_at TEXT NOT NULL,
		entries      INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS report_entries (
		run_id           TEXT NOT NULL REFERENCES report_runs (run_id),
		position         INTEGER NOT NULL,
		movie_id         TEXT NOT NULL,
		title            TEXT NOT NULL,
		total_page_views BIGINT NOT NULL,
		PRIMARY KEY (run_id, position)
	)`,
}

// SQLArchive stores finished reports in SQLite or Postgres.
type SQLArchive struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ ports.ReportArchive = (*SQLArchive)(nil)

// Open connects to the archive database and creates its tables. Driver is
// "sqlite" (DSN is a file path) or "postgres".
func Open(ctx context.Context, driver, dsn string) (*SQLArchive, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s archive: %w", driver, err)
	}

	if driver == "sqlite" {
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply sqlite pragma: %w", err)
		}
	}

	archive := NewSQLArchive(db, driver)
	if err := archive.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return archive, nil
}

// NewSQLArchive wires an existing sql.DB; postgres gets $n placeholders.
func NewSQLArchive(db *sql.DB, driver string) *SQLArchive {
	builder := sq.StatementBuilder.PlaceholderFormat(sq.Question)
	if driver == "postgres" {
		builder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return &SQLArchive{db: db, builder: builder}
}

// EnsureSchema creates the archive tables when missing.
func (a *SQLArchive) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := a.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create archive schema: %w", err)
		}
	}
	return nil
}

// SaveReport stores the run header and its ranked entries in one transaction.
func (a *SQLArchive) SaveReport(ctx context.Context, report domain.Report) error {
	if a.db == nil {
		return nil
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin archive tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query, args, err := a.builder.
		Insert("report_runs").
		Columns("run_id", "generated_at", "entries").
		Values(report.RunID, report.GeneratedAt.UTC().Format(time.RFC3339Nano), len(report.Entries)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build run insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert run %s: %w", report.RunID, err)
	}

	if len(report.Entries) > 0 {
		insert := a.builder.
			Insert("report_entries").
			Columns("run_id", "position", "movie_id", "title", "total_page_views")
		for i, entry := range report.Entries {
			insert = insert.Values(report.RunID, i+1, entry.Movie.ID, entry.Movie.Title, entry.TotalPageViews)
		}

		query, args, err = insert.ToSql()
		if err != nil {
			return fmt.Errorf("build entries insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert entries for run %s: %w", report.RunID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit archive tx: %w", err)
	}
	return nil
}

// LoadReport reads an archived report back in ranked order.
func (a *SQLArchive) LoadReport(ctx context.Context, runID string) (domain.Report, error) {
	query, args, err := a.builder.
		Select("generated_at").
		From("report_runs").
		Where(sq.Eq{"run_id": runID}).
		ToSql()
	if err != nil {
		return domain.Report{}, fmt.Errorf("build run query: %w", err)
	}

	var generatedAt string
	if err := a.db.QueryRowContext(ctx, query, args...).Scan(&generatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Report{}, fmt.Errorf("run %s: %w", runID, ErrReportNotFound)
		}
		return domain.Report{}, fmt.Errorf("query run %s: %w", runID, err)
	}

	report := domain.Report{RunID: runID}
	report.GeneratedAt, err = time.Parse(time.RFC3339Nano, generatedAt)
	if err != nil {
		return domain.Report{}, fmt.Errorf("parse generated_at of run %s: %w", runID, err)
	}

	query, args, err = a.builder.
		Select("movie_id", "title", "total_page_views").
		From("report_entries").
		Where(sq.Eq{"run_id": runID}).
		OrderBy("position").
		ToSql()
	if err != nil {
		return domain.Report{}, fmt.Errorf("build entries query: %w", err)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return domain.Report{}, fmt.Errorf("query entries of run %s: %w", runID, err)
	}

	for rows.Next() {
		var entry domain.ScoredMovie
		if err := rows.Scan(&entry.Movie.ID, &entry.Movie.Title, &entry.TotalPageViews); err != nil {
			_ = rows.Close()
			return domain.Report{}, fmt.Errorf("scan entry: %w", err)
		}
		report.Entries = append(report.Entries, entry)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return domain.Report{}, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return domain.Report{}, fmt.Errorf("close rows: %w", closeErr)
	}

	return report, nil
}

// Close releases the database handle.
func (a *SQLArchive) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}
