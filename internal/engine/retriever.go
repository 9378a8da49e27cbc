package engine

import (
	"context"
	"log"
	"strings"

	"github.com/scrypster/refmatch/internal/llm"
	"github.com/scrypster/refmatch/internal/storage"
)

const (
	// RankingArity is how many resolved tags the ranking procedure needs.
	// Searches with fewer tags skip vector retrieval entirely.
	RankingArity = storage.MaxRankedTags

	// DefaultVectorLimit caps vector candidates per search.
	DefaultVectorLimit = 90
)

// VectorRetriever proposes people by exact tag overlap and embedding
// similarity, through the store's ranking procedure.
type VectorRetriever struct {
	ranker   storage.Ranker
	embedder llm.EmbeddingGenerator
	policy   ScoringPolicy
	limit    int
	metrics  *Metrics
}

// NewVectorRetriever creates a retriever. A limit below 1 uses DefaultVectorLimit.
func NewVectorRetriever(ranker storage.Ranker, embedder llm.EmbeddingGenerator, policy ScoringPolicy, limit int, metrics *Metrics) *VectorRetriever {
	if limit < 1 {
		limit = DefaultVectorLimit
	}
	return &VectorRetriever{
		ranker:   ranker,
		embedder: embedder,
		policy:   policy,
		limit:    limit,
		metrics:  metrics,
	}
}

// Candidates returns ranked candidates, or none when fewer than
// RankingArity tags resolved or any upstream call fails.
func (r *VectorRetriever) Candidates(ctx context.Context, q CandidateQuery) []Candidate {
	if len(q.Tags) < RankingArity {
		log.Printf("engine: %d refs resolved, skipping vector retrieval", len(q.Tags))
		return []Candidate{}
	}

	text := strings.Join(tagTitles(q.Tags), " ")
	embedding, err := r.embedder.Embed(ctx, text)
	if err != nil {
		log.Printf("engine: vector retrieval embedding failed: %v", err)
		r.metrics.degraded("vector_embedding")
		return []Candidate{}
	}

	rows, err := r.ranker.RankPeople(ctx, storage.RankQuery{
		UserID:    q.UserID,
		TagIDs:    tagIDs(q.Tags[:RankingArity]),
		Embedding: embedding,
		Limit:     r.limit,
	})
	if err != nil {
		log.Printf("engine: vector retrieval ranking failed: %v", err)
		r.metrics.degraded("vector_ranking")
		return []Candidate{}
	}

	out := make([]Candidate, 0, len(rows))
	for _, row := range rows {
		if row.ID == q.UserID {
			continue
		}
		c := candidateFromPerson(row.Person)
		c.ExactMatches = row.ExactMatches
		c.Similarity = r.policy.Similarity(row.Similarity)
		c.Score = r.policy.Score(row.ExactMatches, row.Similarity)
		out = append(out, c)
		if len(out) == r.limit {
			break
		}
	}

	r.metrics.candidates("vector", len(out))
	return out
}

var _ CandidateSource = (*VectorRetriever)(nil)
