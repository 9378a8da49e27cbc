package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

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

	now := s.timestamp()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tag_personalities (user_id, tag_id, sentence, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, tag_id) DO UPDATE SET
			sentence = excluded.sentence,
			updated_at = excluded.updated_at
	`, p.UserID, p.TagID, p.Sentence, formatTime(p.CreatedAt), formatTime(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert tag personality: %w", err)
	}
	return nil
}

// GetTagPersonalities returns the stored sentences for the user among tagIDs.
func (s *Store) GetTagPersonalities(ctx context.Context, userID string, tagIDs []string) (map[string]*types.TagPersonality, error) {
	out := make(map[string]*types.TagPersonality, len(tagIDs))
	if len(tagIDs) == 0 {
		return out, nil
	}

	query := fmt.Sprintf(`
		SELECT user_id, tag_id, sentence, created_at, updated_at
		FROM tag_personalities
		WHERE user_id = ? AND tag_id IN (%s)
	`, placeholders(len(tagIDs)))

	args := append([]interface{}{userID}, stringArgs(tagIDs)...)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tag personalities: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanTagPersonality(rows)
		if err != nil {
			return nil, err
		}
		out[p.TagID] = p
	}
	return out, rows.Err()
}

// ListRecentTagPersonalities returns up to limit sentences, most recently updated first.
func (s *Store) ListRecentTagPersonalities(ctx context.Context, userID string, limit int) ([]*types.TagPersonality, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, tag_id, sentence, created_at, updated_at
		FROM tag_personalities
		WHERE user_id = ?
		ORDER BY updated_at DESC, rowid DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list tag personalities: %w", err)
	}
	defer rows.Close()

	var out []*types.TagPersonality
	for rows.Next() {
		p, err := scanTagPersonality(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
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

	refIDs, err := json.Marshal(p.RefIDsUsed)
	if err != nil {
		return fmt.Errorf("failed to marshal ref IDs: %w", err)
	}

	now := s.timestamp()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO person_personalities (user_id, summary, ref_ids_used, ref_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			summary = excluded.summary,
			ref_ids_used = excluded.ref_ids_used,
			ref_count = excluded.ref_count,
			updated_at = excluded.updated_at
	`, p.UserID, p.Summary, string(refIDs), p.RefCount, formatTime(p.CreatedAt), formatTime(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert person personality: %w", err)
	}
	return nil
}

// GetPersonPersonality returns the stored composite summary.
func (s *Store) GetPersonPersonality(ctx context.Context, userID string) (*types.PersonPersonality, error) {
	var (
		p                    types.PersonPersonality
		refIDs               string
		createdAt, updatedAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, summary, ref_ids_used, ref_count, created_at, updated_at
		FROM person_personalities WHERE user_id = ?
	`, userID).Scan(&p.UserID, &p.Summary, &refIDs, &p.RefCount, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get person personality: %w", err)
	}

	if err := json.Unmarshal([]byte(refIDs), &p.RefIDsUsed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ref IDs: %w", err)
	}
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}

func scanTagPersonality(row rowScanner) (*types.TagPersonality, error) {
	var (
		p                    types.TagPersonality
		createdAt, updatedAt string
	)
	if err := row.Scan(&p.UserID, &p.TagID, &p.Sentence, &createdAt, &updatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan tag personality: %w", err)
	}
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}
