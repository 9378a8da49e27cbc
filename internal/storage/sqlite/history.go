package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

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
		WHERE user_id = ? AND created_at >= ?
		ORDER BY created_at DESC, id DESC
	`, userID, formatTime(since))
	if err != nil {
		return nil, fmt.Errorf("failed to find recent history: %w", err)
	}
	defer rows.Close()
	return scanHistoryRows(rows)
}

// InsertHistory stores a new entry and sets its ID and timestamps.
func (s *Store) InsertHistory(ctx context.Context, h *types.SearchHistory) error {
	if err := storage.PrepareHistory(h); err != nil {
		return err
	}

	refIDs, refTitles, results, err := marshalHistory(h)
	if err != nil {
		return err
	}

	now := s.timestamp()
	h.CreatedAt = now
	h.UpdatedAt = now

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO search_history (user_id, ref_ids, ref_titles, search_title, search_subtitle,
			result_count, search_results, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, h.UserID, refIDs, refTitles, h.SearchTitle, h.SearchSubtitle,
		h.ResultCount, results, formatTime(h.CreatedAt), formatTime(h.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert search history: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read search history ID: %w", err)
	}
	h.ID = id
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

	refIDs, refTitles, results, err := marshalHistory(h)
	if err != nil {
		return err
	}

	h.UpdatedAt = s.timestamp()

	res, err := s.db.ExecContext(ctx, `
		UPDATE search_history SET
			ref_ids = ?, ref_titles = ?, search_title = ?, search_subtitle = ?,
			result_count = ?, search_results = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`, refIDs, refTitles, h.SearchTitle, h.SearchSubtitle,
		h.ResultCount, results, formatTime(h.UpdatedAt), h.ID, h.UserID)
	if err != nil {
		return fmt.Errorf("failed to update search history: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListHistory returns the user's entries, newest first by creation time.
func (s *Store) ListHistory(ctx context.Context, userID string, opts storage.HistoryListOptions) ([]*types.SearchHistory, error) {
	opts.Normalize()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+historyColumns+`
		FROM search_history
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, userID, opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list search history: %w", err)
	}
	defer rows.Close()
	return scanHistoryRows(rows)
}

// GetHistory returns one entry owned by userID.
func (s *Store) GetHistory(ctx context.Context, id int64, userID string) (*types.SearchHistory, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+historyColumns+`
		FROM search_history
		WHERE id = ? AND user_id = ?
	`, id, userID)

	h, err := scanHistory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	return h, err
}

func marshalHistory(h *types.SearchHistory) (refIDs, refTitles, results string, err error) {
	ids, err := json.Marshal(h.RefIDs)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to marshal ref IDs: %w", err)
	}
	titles, err := json.Marshal(h.RefTitles)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to marshal ref titles: %w", err)
	}
	snapshot, err := json.Marshal(h.Results)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to marshal search results: %w", err)
	}
	return string(ids), string(titles), string(snapshot), nil
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
		h                           types.SearchHistory
		refIDs, refTitles, snapshot string
		createdAt, updatedAt        string
	)
	err := row.Scan(&h.ID, &h.UserID, &refIDs, &refTitles, &h.SearchTitle, &h.SearchSubtitle,
		&h.ResultCount, &snapshot, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan search history: %w", err)
	}

	if err := json.Unmarshal([]byte(refIDs), &h.RefIDs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ref IDs: %w", err)
	}
	if err := json.Unmarshal([]byte(refTitles), &h.RefTitles); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ref titles: %w", err)
	}
	if err := json.Unmarshal([]byte(snapshot), &h.Results); err != nil {
		return nil, fmt.Errorf("failed to unmarshal search results: %w", err)
	}
	h.CreatedAt = parseTime(createdAt)
	h.UpdatedAt = parseTime(updatedAt)
	return &h, nil
}
