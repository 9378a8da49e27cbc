package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/scrypster/refmatch/internal/storage"
	"github.com/scrypster/refmatch/pkg/types"
)

// UpsertTagPersonality inserts or overwrites the sentence for (user, tag).
func (s *Store) UpsertTagPersonality(ctx context.Context, p *types.TagPersonality) error {
	if p == nil {
		return storage.ErrInvalidInput
	}
	if p.UserID == "" || p.TagID == "" {
		return fmt.Errorf("%w: user ID and tag ID are required", storage.ErrInvalidInput)
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO tag_personalities (user_id, tag_id, sentence)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, tag_id) DO UPDATE SET
			sentence = EXCLUDED.sentence,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`, p.UserID, p.TagID, p.Sentence).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: failed to upsert tag personality: %w", err)
	}
	return nil
}

// GetTagPersonalities returns the stored sentences for the user among tagIDs.
func (s *Store) GetTagPersonalities(ctx context.Context, userID string, tagIDs []string) (map[string]*types.TagPersonality, error) {
	out := make(map[string]*types.TagPersonality, len(tagIDs))
	if len(tagIDs) == 0 {
		return out, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, tag_id, sentence, created_at, updated_at
		FROM tag_personalities
		WHERE user_id = $1 AND tag_id = ANY($2)
	`, userID, pq.Array(tagIDs))
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query tag personalities: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var p types.TagPersonality
		if err := rows.Scan(&p.UserID, &p.TagID, &p.Sentence, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan tag personality: %w", err)
		}
		out[p.TagID] = &p
	}
	return out, rows.Err()
}

// ListRecentTagPersonalities returns up to limit sentences, most recently updated first.
func (s *Store) ListRecentTagPersonalities(ctx context.Context, userID string, limit int) ([]*types.TagPersonality, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, tag_id, sentence, created_at, updated_at
		FROM tag_personalities
		WHERE user_id = $1
		ORDER BY updated_at DESC, tag_id ASC
		LIMIT $2
	`, userID, nullableLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to list tag personalities: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*types.TagPersonality
	for rows.Next() {
		var p types.TagPersonality
		if err := rows.Scan(&p.UserID, &p.TagID, &p.Sentence, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan tag personality: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// UpsertPersonPersonality inserts or overwrites the composite summary.
func (s *Store) UpsertPersonPersonality(ctx context.Context, p *types.PersonPersonality) error {
	if p == nil {
		return storage.ErrInvalidInput
	}
	if p.UserID == "" {
		return fmt.Errorf("%w: user ID is required", storage.ErrInvalidInput)
	}
	if p.RefIDsUsed == nil {
		p.RefIDsUsed = []string{}
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO person_personalities (user_id, summary, ref_ids_used, ref_count)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			summary = EXCLUDED.summary,
			ref_ids_used = EXCLUDED.ref_ids_used,
			ref_count = EXCLUDED.ref_count,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`, p.UserID, p.Summary, pq.Array(p.RefIDsUsed), p.RefCount).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: failed to upsert person personality: %w", err)
	}
	return nil
}

// GetPersonPersonality returns the stored composite summary.
func (s *Store) GetPersonPersonality(ctx context.Context, userID string) (*types.PersonPersonality, error) {
	var p types.PersonPersonality
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, summary, ref_ids_used, ref_count, created_at, updated_at
		FROM person_personalities WHERE user_id = $1
	`, userID).Scan(&p.UserID, &p.Summary, pq.Array(&p.RefIDsUsed), &p.RefCount, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to get person personality: %w", err)
	}
	return &p, nil
}
