package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates that the requested resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates that the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input")
)

// MaxRankedTags is the number of tags the ranking procedure accepts.
// Callers with more tags rank on the first MaxRankedTags.
const MaxRankedTags = 3

// RankQuery holds the inputs of the ranking procedure.
type RankQuery struct {
	// UserID is the searcher; they are never returned.
	UserID string

	// TagIDs are the selected tags, at most MaxRankedTags of them.
	TagIDs []string

	// Embedding is the query vector compared against each person's tag vectors.
	Embedding []float32

	// Limit caps the number of rows returned (0 means no limit).
	Limit int
}

// Validate checks the query is usable by a store.
func (q RankQuery) Validate() error {
	if q.UserID == "" {
		return fmt.Errorf("%w: user ID is required", ErrInvalidInput)
	}
	if len(q.TagIDs) == 0 || len(q.TagIDs) > MaxRankedTags {
		return fmt.Errorf("%w: between 1 and 3 tag IDs are required", ErrInvalidInput)
	}
	if len(q.Embedding) == 0 {
		return fmt.Errorf("%w: embedding is required", ErrInvalidInput)
	}
	if q.Limit < 0 {
		return fmt.Errorf("%w: limit must not be negative", ErrInvalidInput)
	}
	return nil
}

// HistoryListOptions controls search history listing.
type HistoryListOptions struct {
	// Limit is the maximum number of entries (default 20, max 100).
	Limit int
}

// Normalize applies defaults to the options.
func (o *HistoryListOptions) Normalize() {
	if o.Limit < 1 {
		o.Limit = 20
	}
	if o.Limit > 100 {
		o.Limit = 100
	}
}
