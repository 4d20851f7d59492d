package domain

import (
	"errors"
	"time"
)

// Movie is a catalog entry discovered upstream. It is never mutated after discovery.
type Movie struct {
	ID    string
	Title string
	Href  string
}

// ScoredMovie pairs a movie with its summed daily page views.
type ScoredMovie struct {
	Movie          Movie
	TotalPageViews int64
}

// Report is the ranked, optionally truncated output of one run.
type Report struct {
	RunID       string
	GeneratedAt time.Time
	Entries     []ScoredMovie
}

// ExclusionReason explains why a movie did not make it into the report.
type ExclusionReason string

const (
	// ReasonEncoding marks a title that has no lookup key.
	ReasonEncoding ExclusionReason = "encoding"
	// ReasonFetch marks stats that could not be retrieved in time.
	ReasonFetch ExclusionReason = "fetch"
	// ReasonParse marks stats that were retrieved but not decodable.
	ReasonParse ExclusionReason = "parse"
	// ReasonDuplicate marks a repeated movie id; only the first is scored.
	ReasonDuplicate ExclusionReason = "duplicate"
)

// Exclusion records a movie dropped by the pipeline.
type Exclusion struct {
	Movie  Movie
	Reason ExclusionReason
	Err    error
}

// Sentinels wrapped by the scoring stages; errors.Is maps them to exclusion reasons.
var (
	// ErrEncoding is returned when a title cannot become a lookup key.
	ErrEncoding = errors.New("title cannot be encoded as lookup key")
	// ErrFetch is returned when the stats request fails, times out or is rejected.
	ErrFetch = errors.New("page view stats unavailable")
	// ErrParse is returned when a stats payload is not a JSON object.
	ErrParse = errors.New("page view stats cannot be decoded")
)

// RunStats summarizes one ranking run.
type RunStats struct {
	RunID      string
	Discovered int
	Scored     int
	Reported   int
	Excluded   map[ExclusionReason]int
	Duration   time.Duration
	FinishedAt time.Time
}
