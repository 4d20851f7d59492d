package parser

import (
	"context"
	"fmt"
	"log/slog"

	"MoviePageViews/internal/catalog"
	"MoviePageViews/internal/config"
	"MoviePageViews/internal/domain"
	"MoviePageViews/internal/ports"
)

// StrategySource implements CatalogSource via a registered catalog scanner.
type StrategySource struct {
	registry *catalog.Registry
	cfg      config.CatalogConfig
	logger   *slog.Logger
}

var _ ports.CatalogSource = (*StrategySource)(nil)

// NewStrategySource wires the scanner registry with the configured catalog.
func NewStrategySource(reg *catalog.Registry, cfg config.CatalogConfig, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry: reg,
		cfg:      cfg,
		logger:   log,
	}
}

// FetchMovies resolves the configured scanner and runs it against the catalog URL.
func (s *StrategySource) FetchMovies(ctx context.Context) ([]domain.Movie, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("catalog registry is not configured")
	}

	strategy, err := s.registry.Resolve(s.cfg.Scanner)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", s.cfg.URL, err)
	}

	s.debug("discover catalog", "scanner", s.cfg.Scanner, "url", s.cfg.URL)
	movies, err := strategy.Scan(ctx, catalog.Request{URL: s.cfg.URL, Options: s.cfg.Options})
	if err != nil {
		return nil, fmt.Errorf("scan catalog %s: %w", s.cfg.URL, err)
	}

	s.debug("catalog discovered", "movies", len(movies))
	return movies, nil
}

func (s *StrategySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
