package engine

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/scrypster/refmatch/internal/storage"
	"github.com/scrypster/refmatch/pkg/types"
)

// SearchRequest is one people search.
type SearchRequest struct {
	UserID   string
	RefIDs   []string
	Page     int
	PageSize int
}

// SearchService runs the per-search pipeline: resolve tags, collect
// candidates from each source in order, assemble a page, and record the
// first page in history.
type SearchService struct {
	resolver  *TagResolver
	sources   []CandidateSource
	assembler *Assembler
	history   *HistoryRecorder
	metrics   *Metrics
}

// NewSearchService wires the pipeline. Sources run in the given order and
// each later source excludes the people earlier ones produced.
func NewSearchService(resolver *TagResolver, sources []CandidateSource, assembler *Assembler, history *HistoryRecorder, metrics *Metrics) *SearchService {
	return &SearchService{
		resolver:  resolver,
		sources:   sources,
		assembler: assembler,
		history:   history,
		metrics:   metrics,
	}
}

// Search returns the requested result page. It fails only when the user ID
// is missing or no requested tag exists (ErrNoValidTags).
func (s *SearchService) Search(ctx context.Context, req SearchRequest) (*types.SearchPage, error) {
	start := time.Now()
	defer s.metrics.observeSearch(start)

	if strings.TrimSpace(req.UserID) == "" {
		return nil, fmt.Errorf("%w: user ID is required", storage.ErrInvalidInput)
	}

	tags, err := s.resolver.Resolve(ctx, req.RefIDs)
	if err != nil {
		return nil, err
	}

	q := CandidateQuery{UserID: req.UserID, Tags: tags}
	lists := make([][]Candidate, 0, len(s.sources))
	for _, src := range s.sources {
		found := src.Candidates(ctx, q)
		lists = append(lists, found)
		q.Exclude = append(q.Exclude, candidateIDs(found)...)
	}

	page, size := s.assembler.NormalizePage(req.Page, req.PageSize)
	result := s.assembler.Assemble(ctx, lists, tagTitles(tags), page, size)
	log.Printf("engine: search for %s on %d refs found %d candidates", req.UserID, len(tags), result.TotalResults)

	if page == 1 && s.history != nil {
		s.history.Record(ctx, req.UserID, tags, result)
	}
	return result, nil
}

// ListHistory returns the person's search history, newest first.
func (s *SearchService) ListHistory(ctx context.Context, userID string, limit int) ([]*types.SearchHistory, error) {
	return s.history.List(ctx, userID, limit)
}

// Restore returns a stored first page exactly as it was recorded.
func (s *SearchService) Restore(ctx context.Context, userID string, historyID int64) (*types.SearchPage, error) {
	return s.history.Restore(ctx, userID, historyID)
}
