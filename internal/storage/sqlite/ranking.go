package sqlite

import (
	"context"
	"fmt"
	"sort"

	"github.com/scrypster/refmatch/internal/storage"
	"github.com/scrypster/refmatch/pkg/types"
)

// RankPeople scores every other person by exact overlap with the query tags
// and by the best cosine similarity between the query embedding and any of
// their tag vectors. People with neither signal are not returned.
//
// Embeddings are loaded into Go memory; SQLite has no vector index.
func (s *Store) RankPeople(ctx context.Context, q storage.RankQuery) ([]*types.RankedPerson, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	exact, err := s.exactMatchCounts(ctx, q.UserID, q.TagIDs)
	if err != nil {
		return nil, err
	}

	similarity, err := s.bestSimilarities(ctx, q.UserID, q.Embedding)
	if err != nil {
		return nil, err
	}

	people, err := s.ListPeopleExcluding(ctx, []string{q.UserID})
	if err != nil {
		return nil, err
	}

	var ranked []*types.RankedPerson
	for _, p := range people {
		count, hasExact := exact[p.ID]
		sim, hasSim := similarity[p.ID]
		if !hasExact && !hasSim {
			continue
		}
		r := &types.RankedPerson{Person: *p, ExactMatches: count}
		if hasSim {
			v := sim
			r.Similarity = &v
		}
		ranked = append(ranked, r)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.ExactMatches != b.ExactMatches {
			return a.ExactMatches > b.ExactMatches
		}
		switch {
		case a.Similarity != nil && b.Similarity == nil:
			return true
		case a.Similarity == nil && b.Similarity != nil:
			return false
		case a.Similarity != nil && *a.Similarity != *b.Similarity:
			return *a.Similarity > *b.Similarity
		}
		return a.ID < b.ID
	})

	if q.Limit > 0 && len(ranked) > q.Limit {
		ranked = ranked[:q.Limit]
	}
	return ranked, nil
}

func (s *Store) exactMatchCounts(ctx context.Context, userID string, tagIDs []string) (map[string]int, error) {
	query := fmt.Sprintf(`
		SELECT user_id, COUNT(DISTINCT tag_id)
		FROM items
		WHERE user_id <> ? AND tag_id IN (%s)
		GROUP BY user_id
	`, placeholders(len(tagIDs)))

	args := append([]interface{}{userID}, stringArgs(tagIDs)...)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count exact matches: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			id    string
			count int
		)
		if err := rows.Scan(&id, &count); err != nil {
			return nil, fmt.Errorf("failed to scan exact match count: %w", err)
		}
		counts[id] = count
	}
	return counts, rows.Err()
}

func (s *Store) bestSimilarities(ctx context.Context, userID string, query []float32) (map[string]float64, error) {
	// Similarity per tag first so each vector is decoded once.
	vecRows, err := s.db.QueryContext(ctx, `
		SELECT v.tag_id, v.embedding
		FROM tag_vectors v
		WHERE v.tag_id IN (SELECT DISTINCT tag_id FROM items WHERE user_id <> ?)
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tag vectors: %w", err)
	}

	tagSim := make(map[string]float64)
	for vecRows.Next() {
		var (
			tagID string
			blob  []byte
		)
		if err := vecRows.Scan(&tagID, &blob); err != nil {
			vecRows.Close()
			return nil, fmt.Errorf("failed to scan tag vector: %w", err)
		}
		vec, err := storage.DecodeVector(blob)
		if err != nil {
			vecRows.Close()
			return nil, fmt.Errorf("tag %s: %w", tagID, err)
		}
		tagSim[tagID] = storage.CosineSimilarity(query, vec)
	}
	if err := vecRows.Err(); err != nil {
		vecRows.Close()
		return nil, err
	}
	vecRows.Close()

	if len(tagSim) == 0 {
		return map[string]float64{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT user_id, tag_id FROM items WHERE user_id <> ?
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load person tags: %w", err)
	}
	defer rows.Close()

	best := make(map[string]float64)
	for rows.Next() {
		var personID, tagID string
		if err := rows.Scan(&personID, &tagID); err != nil {
			return nil, fmt.Errorf("failed to scan person tag: %w", err)
		}
		sim, ok := tagSim[tagID]
		if !ok {
			continue
		}
		if cur, seen := best[personID]; !seen || sim > cur {
			best[personID] = sim
		}
	}
	return best, rows.Err()
}
