package engine

import (
	"context"

	"github.com/scrypster/refmatch/pkg/types"
)

// Candidate is a person proposed for a search, before pagination.
type Candidate struct {
	UserID       string
	Name         string
	Username     string
	AvatarURL    string
	ExactMatches int
	Similarity   float64
	Score        float64
}

// CandidateQuery is the input shared by every candidate source.
type CandidateQuery struct {
	// UserID is the searcher; never returned as a candidate.
	UserID string

	// Tags are the resolved tags, in request order.
	Tags []*types.Tag

	// Exclude lists people already proposed by an earlier source.
	Exclude []string
}

// CandidateSource produces candidates for a search. Sources degrade to an
// empty list instead of failing the search.
type CandidateSource interface {
	Candidates(ctx context.Context, q CandidateQuery) []Candidate
}

func candidateFromPerson(p types.Person) Candidate {
	return Candidate{
		UserID:    p.ID,
		Name:      p.DisplayName(),
		Username:  p.Handle(),
		AvatarURL: p.AvatarURL,
	}
}

func candidateIDs(cs []Candidate) []string {
	ids := make([]string, len(cs))
	for i, c := range cs {
		ids[i] = c.UserID
	}
	return ids
}
