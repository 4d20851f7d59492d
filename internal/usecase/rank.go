package usecase

import (
	"cmp"
	"slices"
	"strings"

	"MoviePageViews/internal/domain"
)

// Rank orders movies by total page views (highest first), breaking ties by
// title in code point order, and keeps at most limit entries when limit > 0.
// The input slice is left untouched; full ties keep their input order.
func Rank(scored []domain.ScoredMovie, limit int) []domain.ScoredMovie {
	ranked := slices.Clone(scored)
	slices.SortStableFunc(ranked, compareScored)

	if limit > 0 && limit < len(ranked) {
		ranked = ranked[:limit:limit]
	}
	return ranked
}

func compareScored(a, b domain.ScoredMovie) int {
	if c := cmp.Compare(b.TotalPageViews, a.TotalPageViews); c != 0 {
		return c
	}
	return strings.Compare(a.Movie.Title, b.Movie.Title)
}
