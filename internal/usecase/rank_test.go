package usecase

import (
	"math/rand"
	"slices"
	"strconv"
	"testing"

	"MoviePageViews/internal/domain"
)

func scored(id, title string, views int64) domain.ScoredMovie {
	return domain.ScoredMovie{Movie: domain.Movie{ID: id, Title: title}, TotalPageViews: views}
}

func TestRankTieBreakOnTitle(t *testing.T) {
	t.Parallel()

	ranked := Rank([]domain.ScoredMovie{scored("1", "B", 500), scored("2", "A", 500)}, 0)

	if len(ranked) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(ranked))
	}
	if ranked[0].Movie.ID != "2" || ranked[1].Movie.ID != "1" {
		t.Fatalf("expected A (id 2) before B (id 1), got %+v", ranked)
	}
}

func TestRankOrdersByViewsDescending(t *testing.T) {
	t.Parallel()

	in := []domain.ScoredMovie{
		scored("1", "Heat", 10),
		scored("2", "Alien", 3000),
		scored("3", "Zodiac", 3000),
		scored("4", "Up", 0),
		scored("5", "Brazil", 450),
	}

	got := Rank(in, 0)
	want := []string{"2", "3", "5", "1", "4"}
	for i, id := range want {
		if got[i].Movie.ID != id {
			t.Fatalf("position %d: expected id %s, got %s (%+v)", i, id, got[i].Movie.ID, got)
		}
	}
}

func TestRankCodePointOrder(t *testing.T) {
	t.Parallel()

	got := Rank([]domain.ScoredMovie{
		scored("1", "amélie", 1),
		scored("2", "Zulu", 1),
		scored("3", "alien", 1),
	}, 0)

	// Uppercase sorts before lowercase, and é (U+00E9) after every ASCII letter.
	want := []string{"Zulu", "alien", "amélie"}
	for i, title := range want {
		if got[i].Movie.Title != title {
			t.Fatalf("position %d: expected %q, got %q", i, title, got[i].Movie.Title)
		}
	}
}

func TestRankLimit(t *testing.T) {
	t.Parallel()

	in := []domain.ScoredMovie{
		scored("1", "A", 1),
		scored("2", "B", 5),
		scored("3", "C", 3),
		scored("4", "D", 4),
	}
	full := Rank(in, 0)

	top := Rank(in, 2)
	if len(top) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(top))
	}
	if !slices.Equal(top, full[:2]) {
		t.Fatalf("limited ranking %+v is not a prefix of %+v", top, full)
	}

	if all := Rank(in, 10); len(all) != len(in) {
		t.Fatalf("limit above count should return all, got %d", len(all))
	}
	if empty := Rank(nil, 3); len(empty) != 0 {
		t.Fatalf("expected empty ranking, got %+v", empty)
	}
}

func TestRankDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	in := []domain.ScoredMovie{scored("1", "A", 1), scored("2", "B", 2)}
	snapshot := slices.Clone(in)

	_ = Rank(in, 1)

	if !slices.Equal(in, snapshot) {
		t.Fatalf("input mutated: %+v", in)
	}
}

func TestRankProperties(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(42))
	titles := []string{"Alien", "Brazil", "Casablanca", "Dune", "Alien"}

	for round := 0; round < 50; round++ {
		n := rng.Intn(40)
		in := make([]domain.ScoredMovie, n)
		for i := range in {
			in[i] = scored(strconv.Itoa(i), titles[rng.Intn(len(titles))], int64(rng.Intn(5)*100))
		}

		ranked := Rank(in, 0)
		if len(ranked) != n {
			t.Fatalf("round %d: expected %d entries, got %d", round, n, len(ranked))
		}

		for i := 0; i+1 < len(ranked); i++ {
			a, b := ranked[i], ranked[i+1]
			if a.TotalPageViews < b.TotalPageViews {
				t.Fatalf("round %d: views not descending at %d: %+v", round, i, ranked)
			}
			if a.TotalPageViews == b.TotalPageViews && a.Movie.Title > b.Movie.Title {
				t.Fatalf("round %d: titles not ascending at %d: %+v", round, i, ranked)
			}
		}

		if again := Rank(ranked, 0); !slices.Equal(again, ranked) {
			t.Fatalf("round %d: rank is not idempotent", round)
		}
		if repeat := Rank(in, 0); !slices.Equal(repeat, ranked) {
			t.Fatalf("round %d: rank is not deterministic", round)
		}
	}
}
