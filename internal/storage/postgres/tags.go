package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"
	pgvector "github.com/pgvector/pgvector-go"

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

	// JSONB is sent as text; lib/pq would encode []byte as bytea.
	var meta sql.NullString
	if len(tag.Meta) > 0 {
		data, err := json.Marshal(tag.Meta)
		if err != nil {
			return fmt.Errorf("postgres: failed to marshal tag meta: %w", err)
		}
		meta = sql.NullString{String: string(data), Valid: true}
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO tags (id, title, type, meta)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			type = EXCLUDED.type,
			meta = EXCLUDED.meta,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`, tag.ID, tag.Title, tag.Type, meta).Scan(&tag.CreatedAt, &tag.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: failed to upsert tag: %w", err)
	}
	return nil
}

// GetTags returns the tags that exist among ids, keyed by ID.
func (s *Store) GetTags(ctx context.Context, ids []string) (map[string]*types.Tag, error) {
	tags := make(map[string]*types.Tag, len(ids))
	if len(ids) == 0 {
		return tags, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, type, meta, created_at, updated_at
		FROM tags WHERE id = ANY($1)
	`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query tags: %w", err)
	}
	defer func() { _ = rows.Close() }()

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
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.title, t.type, t.meta, t.created_at, t.updated_at
		FROM tags t
		LEFT JOIN tag_vectors v ON v.tag_id = t.id
		WHERE v.tag_id IS NULL
		ORDER BY t.created_at ASC, t.id ASC
		LIMIT $1
	`, nullableLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to list tags without vectors: %w", err)
	}
	defer func() { _ = rows.Close() }()

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
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM tag_vectors WHERE tag_id = $1)", tagID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("postgres: failed to check tag vector: %w", err)
	}
	return exists, nil
}

// StoreTagVector inserts or replaces the embedding for a tag. The BYTEA
// column is always written; embedding_vec only when pgvector is available.
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

	raw := storage.EncodeVector(vec.Embedding)

	var err error
	if s.pgvectorAvailable {
		err = s.db.QueryRowContext(ctx, `
			INSERT INTO tag_vectors (tag_id, title, embedding, dimension, model, embedding_vec)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (tag_id) DO UPDATE SET
				title = EXCLUDED.title,
				embedding = EXCLUDED.embedding,
				dimension = EXCLUDED.dimension,
				model = EXCLUDED.model,
				embedding_vec = EXCLUDED.embedding_vec,
				created_at = NOW()
			RETURNING created_at
		`, vec.TagID, vec.Title, raw, len(vec.Embedding), vec.Model, pgvector.NewVector(vec.Embedding)).Scan(&vec.CreatedAt)
	} else {
		err = s.db.QueryRowContext(ctx, `
			INSERT INTO tag_vectors (tag_id, title, embedding, dimension, model)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (tag_id) DO UPDATE SET
				title = EXCLUDED.title,
				embedding = EXCLUDED.embedding,
				dimension = EXCLUDED.dimension,
				model = EXCLUDED.model,
				created_at = NOW()
			RETURNING created_at
		`, vec.TagID, vec.Title, raw, len(vec.Embedding), vec.Model).Scan(&vec.CreatedAt)
	}
	if err != nil {
		return fmt.Errorf("postgres: failed to store tag vector: %w", err)
	}
	return nil
}

func scanTag(row rowScanner) (*types.Tag, error) {
	var (
		tag  types.Tag
		meta sql.NullString
	)
	if err := row.Scan(&tag.ID, &tag.Title, &tag.Type, &meta, &tag.CreatedAt, &tag.UpdatedAt); err != nil {
		return nil, fmt.Errorf("postgres: failed to scan tag: %w", err)
	}
	if meta.Valid && meta.String != "" {
		if err := json.Unmarshal([]byte(meta.String), &tag.Meta); err != nil {
			return nil, fmt.Errorf("postgres: failed to unmarshal tag meta: %w", err)
		}
	}
	return &tag, nil
}
