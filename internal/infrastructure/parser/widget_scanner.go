package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"MoviePageViews/internal/catalog"
	"MoviePageViews/internal/domain"
)

const (
	defaultSelector = "body > a"
	selectorOption  = "selector"
)

// WidgetScanner reads a movie widget document whose anchors carry the catalog:
// id, data-t (title) and href attributes.
type WidgetScanner struct {
	client *http.Client
	logger *slog.Logger
}

// NewWidgetScanner wires an HTTP client; nil gets a 20s default.
func NewWidgetScanner(client *http.Client, logger *slog.Logger) *WidgetScanner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &WidgetScanner{client: client, logger: logger}
}

// Name identifies the strategy inside the registry.
func (w *WidgetScanner) Name() string {
	return "widget"
}

// Scan downloads the widget document and returns its movies in document order.
func (w *WidgetScanner) Scan(ctx context.Context, req catalog.Request) ([]domain.Movie, error) {
	if strings.TrimSpace(req.URL) == "" {
		return nil, fmt.Errorf("catalog url is empty")
	}

	doc, err := w.fetchDocument(ctx, req.URL)
	if err != nil {
		return nil, err
	}

	selector := defaultSelector
	if v := strings.TrimSpace(req.Options[selectorOption]); v != "" {
		selector = v
	}

	return w.extractMovies(doc, selector), nil
}

func (w *WidgetScanner) fetchDocument(ctx context.Context, docURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, docURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "MoviePageViews/1.0")

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	return doc, nil
}

func (w *WidgetScanner) extractMovies(doc *goquery.Document, selector string) []domain.Movie {
	var (
		movies  []domain.Movie
		seen    = map[string]struct{}{}
		skipped int
	)

	doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		movie, ok := parseAnchor(sel)
		if !ok {
			skipped++
			return
		}
		if _, dup := seen[movie.ID]; dup {
			skipped++
			return
		}
		seen[movie.ID] = struct{}{}
		movies = append(movies, movie)
	})

	w.debug("catalog parsed", "movies", len(movies), "skipped", skipped)
	return movies
}

func parseAnchor(sel *goquery.Selection) (domain.Movie, bool) {
	id := strings.TrimSpace(sel.AttrOr("id", ""))
	if id == "" {
		return domain.Movie{}, false
	}

	return domain.Movie{
		ID:    id,
		Title: strings.TrimSpace(sel.AttrOr("data-t", "")),
		Href:  strings.TrimSpace(sel.AttrOr("href", "")),
	}, true
}

func (w *WidgetScanner) debug(msg string, args ...interface{}) {
	if w.logger != nil {
		w.logger.Debug(msg, args...)
	}
}
