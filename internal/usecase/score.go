package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"MoviePageViews/internal/domain"
	"MoviePageViews/internal/pageviews"
	"MoviePageViews/internal/ports"
)

// Outcome is what one scoring run produced. Both slices follow input order.
// Every input movie lands in exactly one of them.
type Outcome struct {
	Scored   []domain.ScoredMovie
	Excluded []domain.Exclusion
}

// ExcludedByReason counts exclusions per reason.
func (o Outcome) ExcludedByReason() map[domain.ExclusionReason]int {
	counts := make(map[domain.ExclusionReason]int)
	for _, ex := range o.Excluded {
		counts[ex.Reason]++
	}
	return counts
}

// Scorer fetches and sums page views for a batch of movies over a fixed pool of workers.
type Scorer struct {
	fetcher     ports.PageViewFetcher
	concurrency int
	timeout     time.Duration
	logger      *slog.Logger
}

// NewScorer builds a scorer; concurrency below 1 is treated as 1 and a
// non-positive timeout leaves deadlines to the fetcher.
func NewScorer(fetcher ports.PageViewFetcher, concurrency int, timeout time.Duration, logger *slog.Logger) *Scorer {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scorer{
		fetcher:     fetcher,
		concurrency: concurrency,
		timeout:     timeout,
		logger:      logger,
	}
}

type scoreJob struct {
	index int
	movie domain.Movie
	key   string
}

// Run scores every movie. Failures of single movies are recorded as exclusions
// and never stop the others; Run returns once all workers have drained.
func (s *Scorer) Run(ctx context.Context, movies []domain.Movie) Outcome {
	col := &collector{}

	jobs := make([]scoreJob, 0, len(movies))
	seen := make(map[string]struct{}, len(movies))
	for i, movie := range movies {
		if _, dup := seen[movie.ID]; dup {
			col.exclude(i, movie, domain.ReasonDuplicate, fmt.Errorf("movie id %s already queued", movie.ID))
			continue
		}
		seen[movie.ID] = struct{}{}

		key, err := pageviews.LookupKey(movie.Title)
		if err != nil {
			col.exclude(i, movie, reasonFor(err, domain.ReasonEncoding), err)
			continue
		}
		jobs = append(jobs, scoreJob{index: i, movie: movie, key: key})
	}

	queue := make(chan scoreJob)
	var wg sync.WaitGroup
	for w := 0; w < s.concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range queue {
				s.score(ctx, job, col)
			}
		}()
	}

	for _, job := range jobs {
		queue <- job
	}
	close(queue)
	wg.Wait()

	return col.outcome()
}

func (s *Scorer) score(ctx context.Context, job scoreJob, col *collector) {
	fetchCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	payload, err := s.fetcher.Fetch(fetchCtx, job.key)
	if err != nil {
		col.exclude(job.index, job.movie, reasonFor(err, domain.ReasonFetch), err)
		return
	}

	total, err := pageviews.Total(payload)
	if err != nil {
		col.exclude(job.index, job.movie, reasonFor(err, domain.ReasonParse), err)
		return
	}

	col.add(job.index, domain.ScoredMovie{Movie: job.movie, TotalPageViews: total})
	s.logger.Debug("processed movie", "id", job.movie.ID, "title", job.movie.Title, "total_page_views", total)
}

// reasonFor maps a sentinel in err's chain to its exclusion reason. Errors
// carrying no sentinel are attributed to the stage that produced them.
func reasonFor(err error, stage domain.ExclusionReason) domain.ExclusionReason {
	switch {
	case errors.Is(err, domain.ErrEncoding):
		return domain.ReasonEncoding
	case errors.Is(err, domain.ErrParse):
		return domain.ReasonParse
	case errors.Is(err, domain.ErrFetch):
		return domain.ReasonFetch
	default:
		return stage
	}
}

// collector is the only state shared between workers.
type collector struct {
	mu       sync.Mutex
	scored   []indexed[domain.ScoredMovie]
	excluded []indexed[domain.Exclusion]
}

type indexed[T any] struct {
	index int
	value T
}

func (c *collector) add(index int, scored domain.ScoredMovie) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scored = append(c.scored, indexed[domain.ScoredMovie]{index: index, value: scored})
}

func (c *collector) exclude(index int, movie domain.Movie, reason domain.ExclusionReason, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.excluded = append(c.excluded, indexed[domain.Exclusion]{
		index: index,
		value: domain.Exclusion{Movie: movie, Reason: reason, Err: err},
	})
}

func (c *collector) outcome() Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Outcome{
		Scored:   inInputOrder(c.scored),
		Excluded: inInputOrder(c.excluded),
	}
}

func inInputOrder[T any](items []indexed[T]) []T {
	sort.Slice(items, func(i, j int) bool { return items[i].index < items[j].index })
	out := make([]T, len(items))
	for i, item := range items {
		out[i] = item.value
	}
	return out
}
