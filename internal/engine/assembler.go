package engine

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/scrypster/refmatch/pkg/types"
)

// SearchTitle heads every result page.
const SearchTitle = "People at the ⊕"

// Page size bounds.
const (
	DefaultPageSize = 20
	MaxPageSize     = 50
)

// PersonalityReader returns a display personality for a person.
type PersonalityReader interface {
	Get(ctx context.Context, userID string) string
}

// Assembler merges candidate lists into a result page.
type Assembler struct {
	personalities PersonalityReader
	concurrency   int
	maxPageSize   int
}

// NewAssembler creates an assembler. concurrency bounds parallel
// personality reads (values below 1 read sequentially); maxPageSize
// below 1 uses MaxPageSize.
func NewAssembler(personalities PersonalityReader, concurrency, maxPageSize int) *Assembler {
	if concurrency < 1 {
		concurrency = 1
	}
	if maxPageSize < 1 {
		maxPageSize = MaxPageSize
	}
	return &Assembler{
		personalities: personalities,
		concurrency:   concurrency,
		maxPageSize:   maxPageSize,
	}
}

// NormalizePage clamps page to at least 1 and size to [1, max page size].
func (a *Assembler) NormalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 1
	}
	if size > a.maxPageSize {
		size = a.maxPageSize
	}
	return page, size
}

// Assemble concatenates the lists in order, stable-sorts them by score
// descending and returns the requested page with personalities attached.
func (a *Assembler) Assemble(ctx context.Context, lists [][]Candidate, titles []string, page, size int) *types.SearchPage {
	page, size = a.NormalizePage(page, size)

	var all []Candidate
	for _, l := range lists {
		all = append(all, l...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Score > all[j].Score
	})

	total := len(all)
	start := (page - 1) * size
	end := start + size
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}
	window := all[start:end]

	people := make([]types.PersonResult, len(window))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, c := range window {
		people[i] = types.PersonResult{
			UserID:     c.UserID,
			Name:       c.Name,
			Username:   c.Username,
			AvatarURL:  c.AvatarURL,
			SharedRefs: c.ExactMatches,
			Score:      c.Score,
		}
		g.Go(func() error {
			people[i].PersonalityInsight = a.personalities.Get(gctx, c.UserID)
			return nil
		})
	}
	_ = g.Wait()

	return &types.SearchPage{
		People:       people,
		TotalResults: total,
		Page:         page,
		PageSize:     size,
		HasMore:      page*size < total,
		Title:        SearchTitle,
		Subtitle:     strings.Join(titles, ", "),
	}
}
