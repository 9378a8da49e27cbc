package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/scrypster/refmatch/internal/storage"
	"github.com/scrypster/refmatch/pkg/types"
)

// RankPeople calls the rank_people procedure. Unused tag slots are passed as
// NULL. Without pgvector it falls back to exact-overlap ranking and every
// similarity is NULL.
func (s *Store) RankPeople(ctx context.Context, q storage.RankQuery) ([]*types.RankedPerson, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	var (
		rows *sql.Rows
		err  error
	)
	if s.pgvectorAvailable {
		var refs [storage.MaxRankedTags]sql.NullString
		for i, id := range q.TagIDs {
			refs[i] = sql.NullString{String: id, Valid: true}
		}
		rows, err = s.db.QueryContext(ctx, `
			SELECT user_id, name, username, avatar_url, exact_matches, vector_similarity
			FROM rank_people($1, $2, $3, $4, $5)
			LIMIT $6
		`, q.UserID, refs[0], refs[1], refs[2], pgvector.NewVector(q.Embedding), nullableLimit(q.Limit))
	} else {
		rows, err = s.db.QueryContext(ctx, exactRankQuery+" LIMIT $3",
			q.UserID, pq.Array(q.TagIDs), nullableLimit(q.Limit))
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: rank_people failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ranked []*types.RankedPerson
	for rows.Next() {
		var (
			r   types.RankedPerson
			sim sql.NullFloat64
		)
		if err := rows.Scan(&r.ID, &r.Name, &r.Username, &r.AvatarURL, &r.ExactMatches, &sim); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan ranked person: %w", err)
		}
		if sim.Valid {
			v := sim.Float64
			r.Similarity = &v
		}
		ranked = append(ranked, &r)
	}
	return ranked, rows.Err()
}
