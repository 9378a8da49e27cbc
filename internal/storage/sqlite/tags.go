package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/scrypster/refmatch/internal/storage"
	"github.com/scrypster/refmatch/pkg/types"
)

// UpsertTag creates a tag or refreshes its title, type and meta.
func (s *Store) UpsertTag(ctx context.Context, tag *types.Tag) error {
	if tag == nil {
		return storage.ErrInvalidInput
	}
	if tag.ID == "" {
		return fmt.Errorf("%w: tag ID is required", storage.ErrInvalidInput)
	}
	if tag.Title == "" {
		return fmt.Errorf("%w: tag title is required", storage.ErrInvalidInput)
	}

	var meta sql.NullString
	if len(tag.Meta) > 0 {
		data, err := json.Marshal(tag.Meta)
		if err != nil {
			return fmt.Errorf("failed to marshal tag meta: %w", err)
		}
		meta = sql.NullString{String: string(data), Valid: true}
	}

	now := s.timestamp()
	if tag.CreatedAt.IsZero() {
		tag.CreatedAt = now
	}
	tag.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tags (id, title, type, meta, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			type = excluded.type,
			meta = excluded.meta,
			updated_at = excluded.updated_at
	`, tag.ID, tag.Title, tag.Type, meta, formatTime(tag.CreatedAt), formatTime(tag.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert tag: %w", err)
	}
	return nil
}

// GetTags returns the tags that exist among ids, keyed by ID.
func (s *Store) GetTags(ctx context.Context, ids []string) (map[string]*types.Tag, error) {
	tags := make(map[string]*types.Tag, len(ids))
	if len(ids) == 0 {
		return tags, nil
	}

	query := fmt.Sprintf(`
		SELECT id, title, type, meta, created_at, updated_at
		FROM tags WHERE id IN (%s)
	`, placeholders(len(ids)))

	rows, err := s.db.QueryContext(ctx, query, stringArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		tag, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		tags[tag.ID] = tag
	}
	return tags, rows.Err()
}

// ListTagsWithoutVectors returns up to limit tags that have no stored embedding.
func (s *Store) ListTagsWithoutVectors(ctx context.Context, limit int) ([]*types.Tag, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.title, t.type, t.meta, t.created_at, t.updated_at
		FROM tags t
		LEFT JOIN tag_vectors v ON v.tag_id = t.id
		WHERE v.tag_id IS NULL
		ORDER BY t.created_at ASC, t.id ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags without vectors: %w", err)
	}
	defer rows.Close()

	var tags []*types.Tag
	for rows.Next() {
		tag, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// HasTagVector reports whether an embedding is stored for the tag.
func (s *Store) HasTagVector(ctx context.Context, tagID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tag_vectors WHERE tag_id = ?", tagID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check tag vector: %w", err)
	}
	return count > 0, nil
}

// StoreTagVector inserts or replaces the embedding for a tag.
func (s *Store) StoreTagVector(ctx context.Context, vec *types.TagVector) error {
	if vec == nil {
		return storage.ErrInvalidInput
	}
	if vec.TagID == "" {
		return fmt.Errorf("%w: tag ID is required", storage.ErrInvalidInput)
	}
	if len(vec.Embedding) == 0 {
		return fmt.Errorf("%w: embedding vector cannot be empty", storage.ErrInvalidInput)
	}
	if vec.Model == "" {
		return fmt.Errorf("%w: model is required", storage.ErrInvalidInput)
	}

	if vec.CreatedAt.IsZero() {
		vec.CreatedAt = s.timestamp()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tag_vectors (tag_id, title, embedding, dimension, model, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(tag_id) DO UPDATE SET
			title = excluded.title,
			embedding = excluded.embedding,
			dimension = excluded.dimension,
			model = excluded.model,
			created_at = excluded.created_at
	`, vec.TagID, vec.Title, storage.EncodeVector(vec.Embedding), len(vec.Embedding), vec.Model, formatTime(vec.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to store tag vector: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTag(row rowScanner) (*types.Tag, error) {
	var (
		tag                  types.Tag
		meta                 sql.NullString
		createdAt, updatedAt string
	)
	if err := row.Scan(&tag.ID, &tag.Title, &tag.Type, &meta, &createdAt, &updatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan tag: %w", err)
	}
	if meta.Valid && meta.String != "" {
		if err := json.Unmarshal([]byte(meta.String), &tag.Meta); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tag meta: %w", err)
		}
	}
	tag.CreatedAt = parseTime(createdAt)
	tag.UpdatedAt = parseTime(updatedAt)
	return &tag, nil
}
