package output

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/mattn/go-isatty"

	"MoviePageViews/internal/config"
	"MoviePageViews/internal/domain"
	"MoviePageViews/internal/ports"
	"MoviePageViews/internal/report"
)

// Render encodes a report in the given concrete format (json or table).
func Render(r domain.Report, format string) ([]byte, error) {
	switch format {
	case config.FormatTable:
		return []byte(report.Table(r)), nil
	case config.FormatJSON:
		return report.JSON(r)
	default:
		return nil, fmt.Errorf("unsupported report format %q", format)
	}
}

// ResolveFormat turns "auto" into table for terminals and json for everything else.
func ResolveFormat(format string, w io.Writer) string {
	if format != config.FormatAuto {
		return format
	}
	if isTerminal(w) {
		return config.FormatTable
	}
	return config.FormatJSON
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// WriterSink writes reports to an io.Writer such as stdout.
type WriterSink struct {
	w      io.Writer
	format string
}

var _ ports.ReportSink = (*WriterSink)(nil)

// NewWriterSink builds a sink; "auto" is resolved against w once.
func NewWriterSink(w io.Writer, format string) *WriterSink {
	return &WriterSink{w: w, format: ResolveFormat(format, w)}
}

// Emit renders and writes the report.
func (s *WriterSink) Emit(_ context.Context, r domain.Report) error {
	payload, err := Render(r, s.format)
	if err != nil {
		return err
	}
	if _, err := s.w.Write(payload); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// FileSink replaces a report file atomically while holding <path>.lock, so two
// runs pointed at the same file cannot interleave.
type FileSink struct {
	path   string
	format string
}

var _ ports.ReportSink = (*FileSink)(nil)

// NewFileSink builds a file sink; "auto" means json for files.
func NewFileSink(path, format string) *FileSink {
	if format == config.FormatAuto {
		format = config.FormatJSON
	}
	return &FileSink{path: path, format: format}
}

// Emit renders the report into a temp file next to path and renames it into place.
func (s *FileSink) Emit(_ context.Context, r domain.Report) error {
	payload, err := Render(r, s.format)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}

	lock := flock.New(s.path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire report lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("report %s is locked by another run", s.path)
	}
	defer func() { _ = lock.Unlock() }()

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp report: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp report: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod temp report: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace report: %w", err)
	}

	return nil
}
