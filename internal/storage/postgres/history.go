package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/scrypster/refmatch/internal/storage"
	"github.com/scrypster/refmatch/pkg/types"
)

const historyColumns = `id, user_id, ref_ids, ref_titles, search_title, search_subtitle,
	result_count, search_results, created_at, updated_at`

// FindRecentHistory returns the user's entries created at or after since, newest first.
func (s *Store) FindRecentHistory(ctx context.Context, userID string, since time.Time) ([]*types.SearchHistory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+historyColumns+`
		FROM search_history
		WHERE user_id = $1 AND created_at >= $2
		ORDER BY created_at DESC, id DESC
	`, userID, since)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to find recent history: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanHistoryRows(rows)
}

// InsertHistory stores a new entry and sets its ID and timestamps.
func (s *Store) InsertHistory(ctx context.Context, h *types.SearchHistory) error {
	if err := storage.PrepareHistory(h); err != nil {
		return err
	}

	snapshot, err := json.Marshal(h.Results)
	if err != nil {
		return fmt.Errorf("postgres: failed to marshal search results: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO search_history (user_id, ref_ids, ref_titles, search_title, search_subtitle,
			result_count, search_results)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`, h.UserID, pq.Array(h.RefIDs), pq.Array(h.RefTitles), h.SearchTitle, h.SearchSubtitle,
		h.ResultCount, string(snapshot)).Scan(&h.ID, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: failed to insert search history: %w", err)
	}
	return nil
}

// UpdateHistory overwrites the snapshot of an existing entry. created_at is kept.
func (s *Store) UpdateHistory(ctx context.Context, h *types.SearchHistory) error {
	if err := storage.PrepareHistory(h); err != nil {
		return err
	}
	if h.ID == 0 {
		return fmt.Errorf("%w: history ID is required", storage.ErrInvalidInput)
	}

	snapshot, err := json.Marshal(h.Results)
	if err != nil {
		return fmt.Errorf("postgres: failed to marshal search results: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		UPDATE search_history SET
			ref_ids = $1, ref_titles = $2, search_title = $3, search_subtitle = $4,
			result_count = $5, search_results = $6, updated_at = NOW()
		WHERE id = $7 AND user_id = $8
		RETURNING updated_at
	`, pq.Array(h.RefIDs), pq.Array(h.RefTitles), h.SearchTitle, h.SearchSubtitle,
		h.ResultCount, string(snapshot), h.ID, h.UserID).Scan(&h.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("postgres: failed to update search history: %w", err)
	}
	return nil
}

// ListHistory returns the user's entries, newest first by creation time.
func (s *Store) ListHistory(ctx context.Context, userID string, opts storage.HistoryListOptions) ([]*types.SearchHistory, error) {
	opts.Normalize()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+historyColumns+`
		FROM search_history
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, userID, opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to list search history: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanHistoryRows(rows)
}

// GetHistory returns one entry owned by userID.
func (s *Store) GetHistory(ctx context.Context, id int64, userID string) (*types.SearchHistory, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+historyColumns+`
		FROM search_history
		WHERE id = $1 AND user_id = $2
	`, id, userID)

	h, err := scanHistory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	return h, err
}

func scanHistoryRows(rows *sql.Rows) ([]*types.SearchHistory, error) {
	var out []*types.SearchHistory
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func scanHistory(row rowScanner) (*types.SearchHistory, error) {
	var (
		h        types.SearchHistory
		snapshot []byte
	)
	err := row.Scan(&h.ID, &h.UserID, pq.Array(&h.RefIDs), pq.Array(&h.RefTitles),
		&h.SearchTitle, &h.SearchSubtitle, &h.ResultCount, &snapshot, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("postgres: failed to scan search history: %w", err)
	}
	if err := json.Unmarshal(snapshot, &h.Results); err != nil {
		return nil, fmt.Errorf("postgres: failed to unmarshal search results: %w", err)
	}
	return &h, nil
}
